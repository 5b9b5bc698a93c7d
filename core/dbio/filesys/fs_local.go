package filesys

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flarco/g"
)

// LocalFileSysClient is a file system client that stores objects in a
// local folder. Buckets are sub-folders of the `root` property.
type LocalFileSysClient struct {
	BaseFileSysClient
	root string
}

// Init initializes the fs client
func (fs *LocalFileSysClient) Init(ctx context.Context) (err error) {
	var instance FileSysClient
	instance = fs
	fs.BaseFileSysClient.instance = &instance

	fs.root = fs.GetProp("root")
	if fs.root == "" {
		return g.Error("need to provide the `root` property for a local file system")
	}

	if err = os.MkdirAll(fs.root, 0755); err != nil {
		return g.Error(err, "could not create root folder %s", fs.root)
	}
	return
}

func (fs *LocalFileSysClient) bucketPath(bucket string) (string, error) {
	if bucket == "" {
		return "", g.Error("bucket is required")
	}
	root := filepath.Clean(fs.root)
	bucketPath := filepath.Join(root, bucket)
	if !strings.HasPrefix(bucketPath, strings.TrimSuffix(root, string(os.PathSeparator))+string(os.PathSeparator)) {
		return "", g.Error("%s: illegal bucket name", bucket)
	}
	return bucketPath, nil
}

func (fs *LocalFileSysClient) objectPath(bucket, key string) (string, error) {
	bucketPath, err := fs.bucketPath(bucket)
	if err != nil {
		return "", err
	}
	objectPath := filepath.Join(bucketPath, filepath.FromSlash(key))
	if !strings.HasPrefix(objectPath, bucketPath+string(os.PathSeparator)) {
		return "", g.Error("%s: illegal object key", key)
	}
	return objectPath, nil
}

// Put copies the local file into the bucket folder
func (fs *LocalFileSysClient) Put(ctx context.Context, bucket, key, localPath string) (err error) {
	objectPath, err := fs.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(objectPath), 0755); err != nil {
		return g.Error(err, "could not create folder for %s", objectPath)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return g.Error(err, "could not open %s", localPath)
	}
	defer src.Close()

	dst, err := os.Create(objectPath)
	if err != nil {
		return g.Error(err, "could not create %s", objectPath)
	}

	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		return g.Error(err, "could not copy %s to %s", localPath, objectPath)
	}

	if err = dst.Close(); err != nil {
		return g.Error(err, "could not close %s", objectPath)
	}

	g.Trace("copied %s to %s", localPath, objectPath)
	return nil
}

// ListKeys lists the keys in the bucket folder starting with prefix
func (fs *LocalFileSysClient) ListKeys(ctx context.Context, bucket, prefix string) (keys []string, err error) {
	bucketPath, err := fs.bucketPath(bucket)
	if err != nil {
		return nil, err
	}
	if !g.PathExists(bucketPath) {
		return keys, nil
	}

	err = filepath.WalkDir(bucketPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		} else if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(bucketPath, p)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, g.Error(err, "could not list %s", bucketPath)
	}

	sort.Strings(keys)
	return keys, nil
}

// Delete removes the object file
func (fs *LocalFileSysClient) Delete(ctx context.Context, bucket, key string) (err error) {
	objectPath, err := fs.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err = os.Remove(objectPath); err != nil && !os.IsNotExist(err) {
		return g.Error(err, "Unable to delete "+objectPath)
	}
	return nil
}
