// Package storage 抽象对象存储：核心按key读写提交后的文档内容，
// 不关心底层是MinIO还是其他实现。
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// BlobStore 对象存储接口
type BlobStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Stat(ctx context.Context, key string) (int64, error)
}
