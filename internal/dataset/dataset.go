package dataset

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lora-studio/internal/codec"
	"lora-studio/internal/utils"

	"github.com/samber/lo"
)

// File 用户选择的一张训练图片
type File struct {
	Name string
	Type string // 声明的 MIME 类型，可能为空
	Size int64

	open func() (io.ReadCloser, error)
}

// MIMEType 实现 codec.File
func (f File) MIMEType() string {
	return f.Type
}

// Open 打开文件内容，每次调用返回新的 reader
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %q has no content", f.Name)
	}
	return f.open()
}

// IsImage 声明类型是否为 image/*
func (f File) IsImage() bool {
	return strings.HasPrefix(f.Type, "image/")
}

// FromBytes 从内存数据构造文件
func FromBytes(name, mimeType string, data []byte) File {
	return File{
		Name: name,
		Type: mimeType,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath 引用本地文件，内容在编码时才读取
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	mimeType, err := utils.DetectFileMimeType(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return File{
		Name: filepath.Base(path),
		Type: mimeType,
		Size: info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromURL 支持 http(s) 图片地址和 data URI
func FromURL(ctx context.Context, url string) (File, error) {
	if strings.HasPrefix(url, "data:") {
		payload, err := codec.SplitDataURI(url)
		if err != nil {
			return File{}, err
		}
		data, err := base64.StdEncoding.DecodeString(payload.Base64)
		if err != nil {
			return File{}, fmt.Errorf("failed to decode data URI: %w", err)
		}
		return FromBytes("inline"+utils.GetExtensionFromMimeType(payload.MIMEType), payload.MIMEType, data), nil
	}

	data, mimeType, err := utils.DownloadImageFromURL(ctx, url)
	if err != nil {
		return File{}, fmt.Errorf("failed to download %s: %w", utils.TruncateForLog(url, 80), err)
	}
	name := filepath.Base(strings.SplitN(url, "?", 2)[0])
	return FromBytes(name, mimeType, data), nil
}

// Load 根据引用的形式选择加载方式：http(s) 地址、data URI 或本地路径
func Load(ctx context.Context, ref string) (File, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "data:"):
		return FromURL(ctx, ref)
	default:
		return FromPath(ref)
	}
}

// FromPicker 文件选择器路径：不按类型过滤
func FromPicker(files []File) []File {
	return append([]File(nil), files...)
}

// FromDrop 拖拽路径：只保留 image/* 类型的文件
func FromDrop(files []File) []File {
	return lo.Filter(files, func(f File, _ int) bool {
		return f.IsImage()
	})
}

// Names 返回文件名列表，用于展示
func Names(files []File) []string {
	return lo.Map(files, func(f File, _ int) string {
		return f.Name
	})
}
