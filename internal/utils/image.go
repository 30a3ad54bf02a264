package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// 下载图片的最大字节数，防止误传超大文件
const maxDownloadBytes = 32 << 20

var downloadClient = &http.Client{
	Timeout: 30 * time.Second,
}

// DownloadImageFromURL 从 URL 下载图片，返回图片数据和 MIME 类型
func DownloadImageFromURL(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status code %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(imageData) > maxDownloadBytes {
		return nil, "", fmt.Errorf("failed to download image: larger than %d bytes", maxDownloadBytes)
	}

	// 优先使用 Content-Type，缺失时根据内容识别
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = DetectMimeType(imageData)
	}

	return imageData, mimeType, nil
}

// DetectMimeType 根据内容的 magic number 识别 MIME 类型，不带参数
func DetectMimeType(data []byte) string {
	return mediaType(mimetype.Detect(data).String())
}

// DetectFileMimeType 读取文件头识别 MIME 类型，不带参数
func DetectFileMimeType(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mediaType(mtype.String()), nil
}

func mediaType(s string) string {
	s, _, _ = strings.Cut(s, ";")
	return strings.TrimSpace(s)
}

// GenerateImageKey 生成样图在 OSS 中的对象 Key：samples/yyyy-MM-dd/{uuid}_{timestamp}.ext
func GenerateImageKey(mimeType string, now time.Time) string {
	return fmt.Sprintf("samples/%s/%s_%d%s",
		now.Format("2006-01-02"), uuid.New().String(), now.Unix(), GetExtensionFromMimeType(mimeType))
}

// GetExtensionFromMimeType 根据 MIME 类型获取文件扩展名（不区分大小写），未知时为 .png
func GetExtensionFromMimeType(mimeType string) string {
	if mtype := mimetype.Lookup(strings.ToLower(mediaType(mimeType))); mtype != nil && mtype.Extension() != "" {
		return mtype.Extension()
	}
	return ".png"
}

// TruncateForLog 截断长字符串用于日志，避免打印过长内容（如 base64）
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
