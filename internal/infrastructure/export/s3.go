package export

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"evocoder/internal/domain/models"
	"evocoder/pkg/config"
	"evocoder/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3Exporter 每个文件作为一个对象上传到 <bucket>/<project-id>/<path>
type S3Exporter struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3Exporter 根据配置创建 S3 导出器
func NewS3Exporter(cfg config.S3Config) (*S3Exporter, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 导出需要 endpoint 和 bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 S3 客户端失败: %w", err)
	}
	return &S3Exporter{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// ObjectKey 返回文件对应的对象键
func ObjectKey(projectID, filePath string) string {
	return path.Join(projectID, cleanPath(filePath))
}

// Export 上传所有文件并返回 s3://bucket/project-id/ 前缀
func (s *S3Exporter) Export(ctx context.Context, project *models.Project) (string, error) {
	if project == nil || len(project.Files) == 0 {
		return "", ErrEmptyProject
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return "", fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return "", fmt.Errorf("创建存储桶失败: %w", err)
		}
	}

	for _, f := range project.Files {
		if cleanPath(f.Path) == "" {
			continue
		}
		key := ObjectKey(project.ID, f.Path)
		contentType := mime.TypeByExtension(path.Ext(f.Path))
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		_, err := s.client.PutObject(ctx, s.bucket, key, strings.NewReader(f.Content), int64(len(f.Content)),
			minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return "", fmt.Errorf("上传 %s 失败: %w", key, err)
		}
	}

	location := fmt.Sprintf("s3://%s/%s/", s.bucket, project.ID)
	logger.Info("项目已导出到对象存储",
		zap.String("project_id", project.ID),
		zap.String("location", location),
		zap.Int("files", len(project.Files)))
	return location, nil
}
