package oss

import (
	"context"
)

// Uploader 样图上传接口
type Uploader interface {
	// Upload 上传对象并返回可公开访问的 URL
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
