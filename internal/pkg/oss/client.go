package oss

import (
	"bytes"
	"errors"
	"fmt"
	"path"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"

	"github.com/qs3c/fbads_go_server/config"
)

// ErrNotConfigured 未配置 OSS
var ErrNotConfigured = errors.New("oss: not configured")

type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

// Configured 配置是否完整
func Configured(cfg *config.OSSConfig) bool {
	return cfg != nil && cfg.Endpoint != "" && cfg.AccessKeyID != "" &&
		cfg.AccessKeySecret != "" && cfg.BucketName != ""
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	if !Configured(cfg) {
		return nil, ErrNotConfigured
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// ExportKey 导出文件的对象路径：exports/{user}/{uuid}{ext}
func ExportKey(userID int64, ext string) string {
	return path.Join("exports", fmt.Sprintf("%d", userID), uuid.NewString()+ext)
}

// Put 上传对象
func (c *Client) Put(objectKey string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = ContentType(path.Ext(objectKey))
	}
	err := c.bucket.PutObject(objectKey, bytes.NewReader(data), oss.ContentType(contentType))
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}
	return nil
}

// Delete 删除文件
func (c *Client) Delete(objectKey string) error {
	err := c.bucket.DeleteObject(objectKey)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetURL 获取文件公开访问 URL
func (c *Client) GetURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, c.client.Config.Endpoint, objectKey)
}

// SignedURL 生成带签名的临时下载 URL
func (c *Client) SignedURL(objectKey string, expireSeconds int64) (string, error) {
	if expireSeconds <= 0 {
		expireSeconds = 3600
	}

	signedURL, err := c.bucket.SignURL(objectKey, oss.HTTPGet, expireSeconds)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}

	return signedURL, nil
}

// ContentType 根据扩展名获取 Content-Type
func ContentType(ext string) string {
	switch ext {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".json":
		return "application/json"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
