package oss

import (
	"lora-studio/common"
)

// NewUploaderFromConfig 从配置创建 OSS 上传客户端
func NewUploaderFromConfig(cfg *common.Config) (*S3Client, error) {
	return NewS3Client(S3Config{
		Endpoint:  cfg.OSSEndpoint,
		Region:    cfg.OSSRegion,
		AccessKey: cfg.OSSAccessKey,
		SecretKey: cfg.OSSSecretKey,
		Bucket:    cfg.OSSBucket,
	})
}
