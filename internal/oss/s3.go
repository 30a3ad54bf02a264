package oss

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lora-studio/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const uploadTimeout = 60 * time.Second

// putObjectAPI s3.Client 中用到的方法，便于测试替换
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Client S3 兼容的 OSS 客户端实现
type S3Client struct {
	api      putObjectAPI
	presign  *s3.PresignClient
	http     *http.Client
	endpoint string
	region   string
	bucket   string
}

// S3Config S3 客户端配置
type S3Config struct {
	Endpoint  string // 服务端点，例如：s3.amazonaws.com 或 oss-cn-hangzhou.aliyuncs.com
	Region    string
	AccessKey string // 为空时走 AWS 默认凭证链
	SecretKey string
	Bucket    string
}

// NewS3Client 创建新的 S3 客户端
func NewS3Client(cfg S3Config) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("OSS bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String("https://" + cfg.Endpoint)
		}
	})

	return &S3Client{
		api:      client,
		presign:  s3.NewPresignClient(client),
		http:     &http.Client{Timeout: uploadTimeout},
		endpoint: cfg.Endpoint,
		region:   cfg.Region,
		bucket:   cfg.Bucket,
	}, nil
}

// Upload 上传样图并返回对象的公开 URL（不带签名）
func (c *S3Client) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	log := common.WithFields(map[string]interface{}{
		"bucket":       c.bucket,
		"key":          key,
		"content_type": contentType,
		"size":         len(data),
	})
	log.Debug("Uploading sample image to OSS")

	var err error
	if strings.Contains(c.endpoint, ".aliyuncs.com") {
		// 阿里云 OSS 不支持 SDK PutObject 的 aws-chunked 编码，改用预签名 PUT
		err = c.presignedPut(ctx, key, data, contentType)
	} else {
		_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(c.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
	}
	if err != nil {
		log.WithError(err).Error("Failed to upload sample image to OSS")
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	url := c.objectURL(key)
	log.WithField("url", url).Info("Sample image uploaded to OSS")
	return url, nil
}

func (c *S3Client) presignedPut(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	presigned, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to presign PUT URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presigned.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	for k, values := range presigned.SignedHeader {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("presigned PUT returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// objectURL 构造对象的公开 URL
func (c *S3Client) objectURL(key string) string {
	if c.endpoint != "" {
		return fmt.Sprintf("https://%s.%s/%s", c.bucket, c.endpoint, key)
	}
	if c.region != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.bucket, key)
}
