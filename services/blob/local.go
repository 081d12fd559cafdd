package blobsvc

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
)

// Local keeps files below a root directory. Writes are atomic, so readers never see a partial document.
type Local struct {
	root string
}

var _ core.BlobStorage = (*Local)(nil) // interface compliance check

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) abs(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

func (l *Local) Store(_ context.Context, dir, filename string, r io.Reader) (string, error) {
	key := objectKey(dir, filename)
	dst, err := l.abs(key)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload dir")
	}
	if err = atomic.WriteFile(dst, r); err != nil {
		return "", errors.Wrapf(err, "writing %s", key)
	}
	return key, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	dst, err := l.abs(key)
	if err != nil {
		return err
	}
	if err = os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", key)
	}
	return nil
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	dst, err := l.abs(key)
	if err != nil {
		return false, err
	}
	if _, err = os.Stat(dst); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "checking %s", key)
	}
	return true, nil
}
