// Package cache stores catalog snapshots and sanitized provider pages under
// string keys, backed by memory, local files, Redis or Azure Blob Storage.
package cache

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound      = errors.New("cache entry not found")
	ErrAlreadyExists = errors.New("cache entry already exists")
)

type PutCondition int

const (
	PutUnconditional PutCondition = iota
	// PutIfNoneMatch only writes keys that do not exist yet.
	PutIfNoneMatch
)

type PutOptions struct {
	Condition PutCondition
}

type Cache interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, value string, opts PutOptions) error
}

// ListCache can also enumerate keys under a prefix. Returned keys have the
// prefix trimmed and are sorted.
type ListCache interface {
	Cache
	List(ctx context.Context, prefix string, cursor string) ([]string, error)
}

// GetString reads a whole entry.
func GetString(ctx context.Context, c Cache, key string) (string, error) {
	rc, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = rc.Close()
	}()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func Unconditional() PutOptions { return PutOptions{Condition: PutUnconditional} }

func IfNoneMatch() PutOptions { return PutOptions{Condition: PutIfNoneMatch} }
