package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadImageFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cat.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	data, mimeType, err := DownloadImageFromURL(context.Background(), srv.URL+"/cat.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", mimeType)

	_, _, err = DownloadImageFromURL(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "status code 404")
}

func TestDownloadImageWithoutContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 显式置空，阻止 net/http 自动填充
		w.Header()["Content-Type"] = nil
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	// 扩展名与内容不符时以内容为准
	data, mimeType, err := DownloadImageFromURL(context.Background(), srv.URL+"/photo.jpg?v=1")
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Equal(t, "image/png", mimeType)
}

func TestDetectMimeType(t *testing.T) {
	tests := map[string]string{
		"\xff\xd8\xff\xe0\x00\x10JFIF": "image/jpeg",
		"\x89PNG\r\n\x1a\n":            "image/png",
		"GIF89a":                       "image/gif",
		"RIFF\x00\x00\x00\x00WEBPVP8 ": "image/webp",
		"plain words":                  "text/plain",
	}
	for content, want := range tests {
		assert.Equal(t, want, DetectMimeType([]byte(content)), want)
	}
}

func TestGetExtensionFromMimeType(t *testing.T) {
	assert.Equal(t, ".jpg", GetExtensionFromMimeType("image/jpeg"))
	assert.Equal(t, ".png", GetExtensionFromMimeType("IMAGE/PNG"))
	assert.Equal(t, ".webp", GetExtensionFromMimeType("image/webp; q=1"))
	assert.Equal(t, ".png", GetExtensionFromMimeType("application/x-unknown"))
	assert.Equal(t, ".png", GetExtensionFromMimeType(""))
}

func TestGenerateImageKey(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	key := GenerateImageKey("image/webp", now)
	assert.Regexp(t, regexp.MustCompile(`^samples/2026-10-19/[0-9a-f-]{36}_\d+\.webp$`), key)
	assert.NotEqual(t, key, GenerateImageKey("image/webp", now))
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "abc", TruncateForLog("abc", 5))
	assert.Equal(t, "ab...", TruncateForLog("abcdefgh", 5))
	assert.Equal(t, "ab", TruncateForLog("abcdefgh", 2))
}
