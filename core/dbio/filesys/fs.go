package filesys

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/flarco/g"
	"github.com/slingdata-io/rscopy/core/dbio"
	"github.com/slingdata-io/rscopy/core/env"
	"github.com/spf13/cast"
)

// FileSysClient is a client to an object store holding staged files
type FileSysClient interface {
	Self() FileSysClient
	Init(ctx context.Context) (err error)
	Close() (err error)
	Client() *BaseFileSysClient
	FsType() dbio.Type
	Put(ctx context.Context, bucket, key, localPath string) (err error)
	ListKeys(ctx context.Context, bucket, prefix string) (keys []string, err error)
	Delete(ctx context.Context, bucket, key string) (err error)
	Prefix(bucket string, suffix ...string) string
	GetProp(key string, keys ...string) (val string)
	SetProp(key string, val string)
	Props() map[string]string
}

// CredentialsProvider is implemented by clients holding a session
// with cloud credentials
type CredentialsProvider interface {
	Credentials() (credentials.Value, error)
}

// NewFileSysClient create a file system client
// such as local or s3
// props are provided as `"Prop1=Value1", "Prop2=Value2", ...`
func NewFileSysClient(fst dbio.Type, props ...string) (fsClient FileSysClient, err error) {
	return NewFileSysClientContext(context.Background(), fst, props...)
}

// NewFileSysClientContext create a file system client with context
// props are provided as `"Prop1=Value1", "Prop2=Value2", ...`
func NewFileSysClientContext(ctx context.Context, fst dbio.Type, props ...string) (fsClient FileSysClient, err error) {
	switch fst {
	case dbio.TypeFileLocal:
		fsClient = &LocalFileSysClient{}
	case dbio.TypeFileS3:
		fsClient = &S3FileSysClient{}
	default:
		err = g.Error("Unrecognized File System: %s", fst)
		return
	}

	fsClient.Client().fsType = fst

	// set properties
	for k, v := range g.KVArrToMap(props...) {
		fsClient.SetProp(k, v)
	}

	for k, v := range env.Vars() {
		if fsClient.GetProp(k) == "" {
			fsClient.SetProp(k, v)
		}
	}

	err = fsClient.Init(ctx)
	if err != nil {
		err = g.Error(err, "Error initiating File Sys Client")
		return
	}

	if !cast.ToBool(fsClient.GetProp("silent")) {
		g.Debug(`opened "%s" connection`, fst)
	}

	return
}

// BaseFileSysClient is the base file system type.
type BaseFileSysClient struct {
	properties map[string]string
	instance   *FileSysClient
	fsType     dbio.Type
	mux        sync.Mutex
}

// Client provides a pointer to itself
func (fs *BaseFileSysClient) Client() *BaseFileSysClient {
	return fs
}

// Close closes the client
func (fs *BaseFileSysClient) Close() error {
	return nil
}

// Self returns the respective client Instance
func (fs *BaseFileSysClient) Self() FileSysClient {
	return *fs.instance
}

// FsType return the type of the client
func (fs *BaseFileSysClient) FsType() dbio.Type {
	return fs.fsType
}

// Prefix returns the url prefix for a bucket
func (fs *BaseFileSysClient) Prefix(bucket string, suffix ...string) string {
	return fs.fsType.URIPrefix() + bucket + strings.Join(suffix, "")
}

// GetProp returns the value of a property
func (fs *BaseFileSysClient) GetProp(key string, keys ...string) string {
	fs.mux.Lock()
	defer fs.mux.Unlock()
	val := fs.properties[strings.ToLower(key)]
	for _, key := range keys {
		if val != "" {
			break
		}
		val = fs.properties[strings.ToLower(key)]
	}
	return val
}

// SetProp sets the value of a property
func (fs *BaseFileSysClient) SetProp(key string, val string) {
	fs.mux.Lock()
	if fs.properties == nil {
		fs.properties = map[string]string{}
	}
	fs.properties[strings.ToLower(key)] = val
	fs.mux.Unlock()
}

// Props returns a copy of the properties map
func (fs *BaseFileSysClient) Props() map[string]string {
	m := map[string]string{}
	fs.mux.Lock()
	for k, v := range fs.properties {
		m[k] = v
	}
	fs.mux.Unlock()
	return m
}

// ParseURL returns the bucket and key of a URI such as
// `s3://my_bucket/key/to/file.txt`
func ParseURL(uri string) (bucket, key string, err error) {
	scheme, rest, found := strings.Cut(uri, "://")
	if !found || scheme == "" {
		return "", "", g.Error("invalid uri, expected scheme: %s", uri)
	}

	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", g.Error("invalid uri, missing bucket: %s", uri)
	}
	return bucket, key, nil
}

// fileSize returns the size of a local file
func fileSize(localPath string) (size int64, err error) {
	stat, err := os.Stat(filepath.Clean(localPath))
	if err != nil {
		return 0, g.Error(err, "could not stat %s", localPath)
	}
	return stat.Size(), nil
}
