package filesys

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/flarco/g"
	"github.com/slingdata-io/rscopy/core/dbio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocalFile(t *testing.T, content string) string {
	filePath := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	return filePath
}

func TestFileSysLocal(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	fs, err := NewFileSysClient(dbio.TypeFileLocal, "root="+root)
	require.NoError(t, err)
	assert.Equal(t, dbio.TypeFileLocal, fs.FsType())
	assert.Equal(t, "file://bucket/a/b", fs.Prefix("bucket", "/a/b"))

	keys, err := fs.ListKeys(ctx, "bucket", "")
	g.AssertNoError(t, err)
	assert.Empty(t, keys)

	localPath := writeLocalFile(t, "a,b\n1,2\n")
	for _, key := range []string{"stage/x.csv.gz.0", "stage/x.csv.gz.1", "stage/y.csv.gz.0", "other.csv"} {
		g.AssertNoError(t, fs.Put(ctx, "bucket", key, localPath))
	}

	content, err := os.ReadFile(filepath.Join(root, "bucket", "stage", "x.csv.gz.1"))
	g.AssertNoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(content))

	keys, err = fs.ListKeys(ctx, "bucket", "stage/x.csv.gz")
	g.AssertNoError(t, err)
	assert.Equal(t, []string{"stage/x.csv.gz.0", "stage/x.csv.gz.1"}, keys)

	for _, key := range keys {
		g.AssertNoError(t, fs.Delete(ctx, "bucket", key))
	}

	keys, err = fs.ListKeys(ctx, "bucket", "stage/x.csv.gz")
	g.AssertNoError(t, err)
	assert.Empty(t, keys)

	keys, err = fs.ListKeys(ctx, "bucket", "")
	g.AssertNoError(t, err)
	assert.Equal(t, []string{"other.csv", "stage/y.csv.gz.0"}, keys)

	// deleting a missing key is not an error
	g.AssertNoError(t, fs.Delete(ctx, "bucket", "stage/missing"))

	// keys cannot escape the bucket
	assert.Error(t, fs.Put(ctx, "bucket", "../escape.csv", localPath))
	assert.Error(t, fs.Put(ctx, "", "key.csv", localPath))
	assert.Error(t, fs.Put(ctx, "bucket", "key.csv", filepath.Join(root, "missing.csv")))
}

func TestFileSysLocalBucketOutsideRoot(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	root := filepath.Join(parent, "store")

	fs, err := NewFileSysClient(dbio.TypeFileLocal, "root="+root)
	require.NoError(t, err)

	outside := filepath.Join(parent, "outside", "victim.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(outside), 0755))
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0644))

	localPath := writeLocalFile(t, "a,b\n1,2\n")
	for _, bucket := range []string{"../outside", "..", ".", "a/../../outside"} {
		assert.Error(t, fs.Put(ctx, bucket, "new.csv", localPath), bucket)
		assert.Error(t, fs.Delete(ctx, bucket, "victim.csv"), bucket)
		_, err = fs.ListKeys(ctx, bucket, "")
		assert.Error(t, err, bucket)
	}

	assert.FileExists(t, outside)
	assert.NoFileExists(t, filepath.Join(parent, "outside", "new.csv"))

	// nested bucket folders inside the root are fine
	g.AssertNoError(t, fs.Put(ctx, "team/bucket", "new.csv", localPath))
	assert.FileExists(t, filepath.Join(root, "team", "bucket", "new.csv"))
}

func TestFileSysLocalNoRoot(t *testing.T) {
	_, err := NewFileSysClient(dbio.TypeFileLocal)
	assert.Error(t, err)

	_, err = NewFileSysClient(dbio.Type("gs"))
	assert.Error(t, err)
}

func TestParseURL(t *testing.T) {
	bucket, key, err := ParseURL("s3://my_bucket/key/to/file.txt")
	g.AssertNoError(t, err)
	assert.Equal(t, "my_bucket", bucket)
	assert.Equal(t, "key/to/file.txt", key)

	bucket, key, err = ParseURL("s3://my_bucket")
	g.AssertNoError(t, err)
	assert.Equal(t, "my_bucket", bucket)
	assert.Equal(t, "", key)

	_, _, err = ParseURL("my_bucket/key")
	assert.Error(t, err)

	_, _, err = ParseURL("s3:///key")
	assert.Error(t, err)
}

// fakeS3 serves the subset of the S3 REST API used by S3FileSysClient
type fakeS3 struct {
	objects map[string][]byte
	mux     sync.Mutex
}

type fakeListResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	Prefix      string   `xml:"Prefix"`
	KeyCount    int      `xml:"KeyCount"`
	MaxKeys     int      `xml:"MaxKeys"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []struct {
		Key  string `xml:"Key"`
		Size int    `xml:"Size"`
	} `xml:"Contents"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mux.Lock()
	defer f.mux.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	fullKey := bucket + "/" + key

	switch {
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[fullKey] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		result := fakeListResult{Name: bucket, Prefix: prefix, MaxKeys: 1000}
		keys := []string{}
		for k := range f.objects {
			if strings.HasPrefix(k, bucket+"/"+prefix) {
				keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			result.Contents = append(result.Contents, struct {
				Key  string `xml:"Key"`
				Size int    `xml:"Size"`
			}{Key: k, Size: len(f.objects[bucket+"/"+k])})
		}
		result.KeyCount = len(keys)
		body, _ := xml.Marshal(result)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(xml.Header))
		w.Write(body)
	case r.Method == http.MethodDelete:
		delete(f.objects, fullKey)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestFileSysS3(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	fs, err := NewFileSysClient(
		dbio.TypeFileS3,
		"ENDPOINT="+server.URL,
		"REGION=us-east-1",
		"AWS_ACCESS_KEY_ID=AKID",
		"AWS_SECRET_ACCESS_KEY=SECRET",
	)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/key", fs.Prefix("bucket", "/key"))

	// session credentials come from the props
	provider, ok := fs.(CredentialsProvider)
	require.True(t, ok)
	creds, err := provider.Credentials()
	g.AssertNoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
	assert.Equal(t, "SECRET", creds.SecretAccessKey)

	localPath := writeLocalFile(t, "id,name\n1,a\n")
	for _, key := range []string{"stage/x.csv.gz.0", "stage/x.csv.gz.1", "keep.csv"} {
		g.AssertNoError(t, fs.Put(ctx, "bucket", key, localPath))
	}
	assert.Equal(t, "id,name\n1,a\n", string(fake.objects["bucket/stage/x.csv.gz.0"]))

	keys, err := fs.ListKeys(ctx, "bucket", "stage/x.csv.gz")
	g.AssertNoError(t, err)
	assert.Equal(t, []string{"stage/x.csv.gz.0", "stage/x.csv.gz.1"}, keys)

	for _, key := range keys {
		g.AssertNoError(t, fs.Delete(ctx, "bucket", key))
	}

	keys, err = fs.ListKeys(ctx, "bucket", "stage/")
	g.AssertNoError(t, err)
	assert.Empty(t, keys)
	assert.Contains(t, fake.objects, "bucket/keep.csv")
}

func TestS3EncryptionParams(t *testing.T) {
	fs := &S3FileSysClient{}
	sse, kms := fs.getEncryptionParams()
	assert.Nil(t, sse)
	assert.Nil(t, kms)

	fs.SetProp("encryption_algorithm", "aws:kms")
	fs.SetProp("encryption_kms_key", "key-id")
	sse, kms = fs.getEncryptionParams()
	if assert.NotNil(t, sse) && assert.NotNil(t, kms) {
		assert.Equal(t, "aws:kms", *sse)
		assert.Equal(t, "key-id", *kms)
	}

	fs.SetProp("encryption_algorithm", "AES256")
	sse, kms = fs.getEncryptionParams()
	if assert.NotNil(t, sse) {
		assert.Equal(t, "AES256", *sse)
	}
	assert.Nil(t, kms)
}
