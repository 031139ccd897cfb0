package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mspkit/tierkeep/internal/config"
	"github.com/mspkit/tierkeep/internal/model"
)

// HTTPSource 通过网关 REST API 访问源文档系统
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource 创建 HTTP 源客户端
func NewHTTPSource(cfg *config.SourceConfig) *HTTPSource {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSource{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// ListSites 列举租户站点
func (s *HTTPSource) ListSites(ctx context.Context, tenantID string) ([]Site, error) {
	var sites []Site
	endpoint := fmt.Sprintf("%s/tenants/%s/sites", s.baseURL, url.PathEscape(tenantID))
	if err := s.getJSON(ctx, endpoint, &sites); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

// ListFiles 列举站点下的文件元数据
func (s *HTTPSource) ListFiles(ctx context.Context, tenantID, siteID string) ([]*model.FileRecord, error) {
	var files []*model.FileRecord
	endpoint := fmt.Sprintf("%s/tenants/%s/sites/%s/files",
		s.baseURL, url.PathEscape(tenantID), url.PathEscape(siteID))
	if err := s.getJSON(ctx, endpoint, &files); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// DownloadFile 下载文件内容
func (s *HTTPSource) DownloadFile(ctx context.Context, tenantID, driveID, itemID string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.contentURL(tenantID, driveID, itemID), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

// UploadFile 将文件内容写回源系统
func (s *HTTPSource) UploadFile(ctx context.Context, tenantID, driveID, itemID string, reader io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.contentURL(tenantID, driveID, itemID), reader)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}
	return nil
}

// RemoveFile 从源系统移除文件内容
func (s *HTTPSource) RemoveFile(ctx context.Context, tenantID, driveID, itemID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.contentURL(tenantID, driveID, itemID), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("remove request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remove failed with status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSource) contentURL(tenantID, driveID, itemID string) string {
	return fmt.Sprintf("%s/tenants/%s/drives/%s/items/%s/content",
		s.baseURL, url.PathEscape(tenantID), url.PathEscape(driveID), url.PathEscape(itemID))
}

func (s *HTTPSource) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
