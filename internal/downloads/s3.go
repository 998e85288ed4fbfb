package downloads

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"filemart/internal/models"
)

type S3Config struct {
	Bucket     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	PresignTTL time.Duration
}

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, endpoint string) *s3.Client {
		return s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
	}
	presignGetObject = func(ctx context.Context, client *s3.PresignClient, in *s3.GetObjectInput, ttl time.Duration) (string, error) {
		req, err := client.PresignGetObject(ctx, in, s3.WithPresignExpires(ttl))
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}
)

// S3Resolver answers with a short-lived presigned GET URL.
type S3Resolver struct {
	bucket  string
	ttl     time.Duration
	presign *s3.PresignClient
}

func NewS3Resolver(ctx context.Context, cfg S3Config) (*S3Resolver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &S3Resolver{
		bucket:  cfg.Bucket,
		ttl:     ttl,
		presign: s3.NewPresignClient(newS3ClientFromConfig(awsCfg, cfg.Endpoint)),
	}, nil
}

func (r *S3Resolver) Resolve(ctx context.Context, file models.FileRef) (*Delivery, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(file.ID),
	}
	if file.Name != "" {
		in.ResponseContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", file.Name))
	}
	if file.ContentType != "" {
		in.ResponseContentType = aws.String(file.ContentType)
	}

	url, err := presignGetObject(ctx, r.presign, in, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", file.ID, err)
	}
	return &Delivery{RedirectURL: url, Name: file.Name, ContentType: file.ContentType}, nil
}
