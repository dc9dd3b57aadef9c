package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Config はS3互換オブジェクトストレージの接続設定。
type S3Config struct {
	// Region はリージョン名。
	Region string
	// Endpoint はS3互換エンドポイント。空の場合はAWSのデフォルトを使用する。
	Endpoint string
	// Bucket はバケット名。
	Bucket string
	// AccessKey はアクセスキー。
	AccessKey string
	// SecretKey はシークレットキー。
	SecretKey string
}

// S3Storage はS3互換オブジェクトストレージへの保存を行う。
type S3Storage struct {
	// client はS3クライアント。削除に使用する。
	client *s3.S3
	// uploader はマルチパート対応のアップローダ。
	uploader *s3manager.Uploader
	// cfg は接続設定。
	cfg S3Config
}

// NewS3 はS3ストレージを生成する。
func NewS3(cfg S3Config) *S3Storage {
	awsConfig := &aws.Config{
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess := session.Must(session.NewSession(awsConfig))

	return &S3Storage{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		cfg:      cfg,
	}
}

// Upload はファイルをストリームのままアップロードし、公開URLを返す。
// ファイル全体をメモリに読み込まない。
func (s *S3Storage) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("オブジェクトストレージへのアップロードに失敗: %w", err)
	}
	return s.objectURL(key), nil
}

// Delete はキーに対応するオブジェクトを削除する。
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("オブジェクトストレージからの削除に失敗: %w", err)
	}
	return nil
}

// objectURL はキーに対応するパス形式の公開URLを返す。
func (s *S3Storage) objectURL(key string) string {
	endpoint := s.cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", s.cfg.Region)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(endpoint, "/"), s.cfg.Bucket, key)
}
