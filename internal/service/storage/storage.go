// Package storage 提供分层对象存储抽象
package storage

import (
	"context"
	"io"
)

// TieredStore 分层对象存储接口
// SetTier 发起层级变更；冷层对象取回前需先解冻，ObjectReady 轮询解冻进度
type TieredStore interface {
	// PutObject 按目标层级写入对象
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, tier string) (*ObjectInfo, error)
	// GetObject 读取对象内容
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	// StatObject 获取对象元数据
	StatObject(ctx context.Context, key string) (*ObjectInfo, error)
	// SetTier 变更对象层级，解冻由存储端异步完成
	SetTier(ctx context.Context, key string, tier string) error
	// ObjectReady 对象当前是否可直接读取
	ObjectReady(ctx context.Context, key string) (bool, error)
	// RemoveObject 删除对象
	RemoveObject(ctx context.Context, key string) error
}

// ObjectInfo 对象元数据
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
	Tier string
}
