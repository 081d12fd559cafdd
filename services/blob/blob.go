// Package blobsvc stores uploaded documents on the local disk or in an S3 bucket.
package blobsvc

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
)

// NewBlobStorage returns the storage selected by conf.Storage.Driver.
func NewBlobStorage(conf *core.Config) (core.BlobStorage, error) {
	switch conf.Storage.Driver {
	case "", "local":
		return NewLocal(conf.Storage.RootDir), nil
	case "s3":
		return NewS3(conf.Storage)
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}

// objectKey builds a collision-free key under dir, keeping the extension of filename.
func objectKey(dir, filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	return path.Join(strings.Trim(dir, "/"), uuid.NewString()+ext)
}

func cleanKey(key string) (string, error) {
	key = path.Clean("/" + key)[1:]
	if key == "" || key == "." {
		return "", errors.New("empty blob path")
	}
	return key, nil
}
