package codec

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var ErrInvalidDataURI = errors.New("invalid data URI")

// File 可被编码的二进制文件
type File interface {
	// MIMEType 文件声明的 MIME 类型，可能为空
	MIMEType() string
	Open() (io.ReadCloser, error)
}

// Payload 发送给 GenAI 接口的图片载荷
type Payload struct {
	MIMEType string
	Base64   string
}

// DataURI 还原为 data:<mime>;base64,<payload> 形式
func (p Payload) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + p.Base64
}

// Bytes 解码出原始二进制数据
func (p Payload) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(p.Base64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	return data, nil
}

// Encode 读取整个文件，生成 data URI 后拆分出 MIME 类型和 base64 载荷。
// 读取失败直接返回错误，不重试。
func Encode(ctx context.Context, f File) (Payload, error) {
	type readResult struct {
		data []byte
		err  error
	}

	done := make(chan readResult, 1)
	go func() {
		rc, err := f.Open()
		if err != nil {
			done <- readResult{err: err}
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		done <- readResult{data: data, err: err}
	}()

	var res readResult
	select {
	case <-ctx.Done():
		return Payload{}, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return Payload{}, fmt.Errorf("failed to read file: %w", res.err)
	}

	mimeType := f.MIMEType()
	if mimeType == "" {
		mimeType = mimetype.Detect(res.data).String()
	}
	// MIME 参数（如 charset）不进入 data URI
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}

	uri := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(res.data)
	return SplitDataURI(uri)
}

// SplitDataURI 拆分 data URI：MIME 类型取 ':' 与 ';' 之间的文本，载荷取第一个 ',' 之后的文本
func SplitDataURI(uri string) (Payload, error) {
	if !strings.HasPrefix(uri, "data:") {
		return Payload{}, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}

	header, data, ok := strings.Cut(uri, ",")
	if !ok {
		return Payload{}, fmt.Errorf("%w: missing ',' separator", ErrInvalidDataURI)
	}

	mimeType, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	return Payload{MIMEType: mimeType, Base64: data}, nil
}
