package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Get when no object is stored under the key.
var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// Service stores filename-keyed binary assets.
type Service interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// CleanKey reduces a client supplied filename to a single safe path element.
func CleanKey(name string) (string, error) {
	key := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if key == "" || key == "." || key == ".." || key == "/" {
		return "", fmt.Errorf("invalid asset name %q", name)
	}
	return key, nil
}
