// Package source 定义源文档系统的外部契约
// 列举与上传下载的具体实现（Graph API 等）在引擎之外注入
package source

import (
	"context"
	"io"

	"github.com/mspkit/tierkeep/internal/model"
)

// FileSource 源文档系统接口
type FileSource interface {
	// ListFiles 列举租户站点下的文件元数据
	ListFiles(ctx context.Context, tenantID, siteID string) ([]*model.FileRecord, error)
	// ListSites 列举租户站点
	ListSites(ctx context.Context, tenantID string) ([]Site, error)
	// DownloadFile 下载文件内容
	DownloadFile(ctx context.Context, tenantID, driveID, itemID string) (io.ReadCloser, int64, error)
	// UploadFile 将文件内容写回源系统
	UploadFile(ctx context.Context, tenantID, driveID, itemID string, reader io.Reader, size int64) error
	// RemoveFile 归档成功后从源系统移除文件内容
	RemoveFile(ctx context.Context, tenantID, driveID, itemID string) error
}

// Site 源系统站点
type Site struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OwnerID    string `json:"owner_id"`
	OwnerEmail string `json:"owner_email"`
}
