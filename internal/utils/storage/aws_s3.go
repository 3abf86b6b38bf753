package storage

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/internal/utils"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

const requestTimeout = 30 * time.Second

var AllowImage = []string{"image/jpeg", "image/png", "image/webp", "image/gif", "image/heic"}

type (
	AwsS3 interface {
		UploadFile(fileName string, file *multipart.FileHeader, folder string, allowed ...string) (string, error)
		GetFile(objectKey string) ([]byte, error)
		DeleteFile(objectKey string) error
		GetPublicLinkKey(objectKey string) string
		GetObjectKeyFromLink(link string) string
	}

	S3Config struct {
		Bucket    string
		Region    string
		AccessKey string
		SecretKey string
		// Endpoint overrides the AWS endpoint, e.g. for MinIO. Path-style
		// addressing is used when it is set.
		Endpoint string
	}

	awsS3 struct {
		client *s3.Client
		cfg    S3Config
	}
)

func LoadS3Config() S3Config {
	return S3Config{
		Bucket:    utils.GetConfig("AWS_S3_BUCKET"),
		Region:    utils.GetConfig("AWS_S3_REGION"),
		AccessKey: utils.GetConfig("AWS_ACCESS_KEY"),
		SecretKey: utils.GetConfig("AWS_SECRET_KEY"),
		Endpoint:  utils.GetConfig("AWS_S3_ENDPOINT"),
	}
}

func NewAwsS3(cfg S3Config) (AwsS3, error) {
	if cfg.Bucket == "" {
		return nil, domain.ErrImageStorageDisabled
	}
	if cfg.Region == "" {
		cfg.Region = "ap-southeast-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &awsS3{client: client, cfg: cfg}, nil
}

// DetectImage sniffs data and rejects anything outside allowed.
func DetectImage(data []byte, allowed ...string) (*mimetype.MIME, error) {
	mtype := mimetype.Detect(data)
	if len(allowed) > 0 && !mimetype.EqualsAny(mtype.String(), allowed...) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidImageFormat, mtype.String())
	}
	return mtype, nil
}

// ReadFile loads a multipart upload into memory.
func ReadFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *awsS3) UploadFile(fileName string, file *multipart.FileHeader, folder string, allowed ...string) (string, error) {
	data, err := ReadFile(file)
	if err != nil {
		return "", err
	}
	mtype, err := DetectImage(data, allowed...)
	if err != nil {
		return "", err
	}

	objectKey := fileName + mtype.Extension()
	if folder != "" {
		objectKey = folder + "/" + objectKey
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mtype.String()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}
	return objectKey, nil
}

func (s *awsS3) GetFile(objectKey string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", objectKey, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *awsS3) DeleteFile(objectKey string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", objectKey, err)
	}
	return nil
}

func (s *awsS3) GetPublicLinkKey(objectKey string) string {
	return publicBase(s.cfg) + objectKey
}

func (s *awsS3) GetObjectKeyFromLink(link string) string {
	base := publicBase(s.cfg)
	if !strings.HasPrefix(link, base) {
		return ""
	}
	return strings.TrimPrefix(link, base)
}

func publicBase(cfg S3Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket + "/"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", cfg.Bucket, cfg.Region)
}
