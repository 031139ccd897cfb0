package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mspkit/tierkeep/internal/config"
	"github.com/mspkit/tierkeep/internal/model"
)

// tierStorageClass 内部层级到 S3 存储类别的映射
var tierStorageClass = map[string]string{
	model.TierHot:     "STANDARD",
	model.TierCool:    "STANDARD_IA",
	model.TierCold:    "GLACIER",
	model.TierArchive: "DEEP_ARCHIVE",
}

// storageClassTier 存储类别回内部层级
var storageClassTier = map[string]string{
	"STANDARD":     model.TierHot,
	"STANDARD_IA":  model.TierCool,
	"GLACIER":      model.TierCold,
	"DEEP_ARCHIVE": model.TierArchive,
}

// MinIOStore MinIO/S3 兼容的分层对象存储
type MinIOStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOStore 创建 MinIO 存储客户端
func NewMinIOStore(cfg *config.StorageConfig) (*MinIOStore, error) {
	// 初始化 MinIO 客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	// 检查 bucket 是否存在，不存在则创建
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStore{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

// PutObject 按目标层级写入对象
func (s *MinIOStore) PutObject(ctx context.Context, key string, reader io.Reader, size int64, tier string) (*ObjectInfo, error) {
	class, ok := tierStorageClass[tier]
	if !ok {
		return nil, fmt.Errorf("unsupported tier: %s", tier)
	}

	info, err := s.client.PutObject(ctx, s.bucketName, key, reader, size, minio.PutObjectOptions{
		StorageClass: class,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return &ObjectInfo{
		Key:  key,
		Size: info.Size,
		ETag: info.ETag,
		Tier: tier,
	}, nil
}

// GetObject 读取对象内容
func (s *MinIOStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj, nil
}

// StatObject 获取对象元数据
func (s *MinIOStore) StatObject(ctx context.Context, key string) (*ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	tier := storageClassTier[strings.ToUpper(stat.StorageClass)]
	if tier == "" {
		tier = model.TierHot
	}
	return &ObjectInfo{
		Key:  key,
		Size: stat.Size,
		ETag: stat.ETag,
		Tier: tier,
	}, nil
}

// SetTier 变更对象层级
// 升温冷层对象时走解冻请求，存储端异步恢复可读副本
func (s *MinIOStore) SetTier(ctx context.Context, key string, tier string) error {
	stat, err := s.StatObject(ctx, key)
	if err != nil {
		return err
	}

	if model.TierRequiresRehydration(stat.Tier) && !model.TierRequiresRehydration(tier) {
		req := minio.RestoreRequest{}
		req.SetDays(7)
		if err := s.client.RestoreObject(ctx, s.bucketName, key, "", req); err != nil {
			return fmt.Errorf("failed to restore object %s: %w", key, err)
		}
		return nil
	}

	class, ok := tierStorageClass[tier]
	if !ok {
		return fmt.Errorf("unsupported tier: %s", tier)
	}

	// 同桶自拷贝改写存储类别
	dst := minio.CopyDestOptions{
		Bucket:          s.bucketName,
		Object:          key,
		ReplaceMetadata: true,
		UserMetadata:    map[string]string{"x-amz-storage-class": class},
	}
	src := minio.CopySrcOptions{Bucket: s.bucketName, Object: key}
	if _, err := s.client.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("failed to change tier of %s: %w", key, err)
	}
	return nil
}

// ObjectReady 对象是否可直接读取
// 解冻进行中时 StatObject 的 Restore 标记为 ongoing
func (s *MinIOStore) ObjectReady(ctx context.Context, key string) (bool, error) {
	stat, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	tier := storageClassTier[strings.ToUpper(stat.StorageClass)]
	if !model.TierRequiresRehydration(tier) {
		return true, nil
	}
	if stat.Restore != nil {
		return !stat.Restore.OngoingRestore, nil
	}
	return false, nil
}

// RemoveObject 删除对象
func (s *MinIOStore) RemoveObject(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}
	return nil
}
