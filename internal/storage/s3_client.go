package storage

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	appconfig "benome-realtime/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxAttachmentSize bounds presigned uploads.
const MaxAttachmentSize = 10 << 20

var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

type Client struct {
	cfg     appconfig.S3Config
	s3      *s3.Client
	presign *s3.PresignClient
}

func NewClient(ctx context.Context, cfg appconfig.S3Config) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	endpoint := ""
	if cfg.Endpoint != "" {
		parsed, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		endpoint = parsed.String()
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		cfg:     cfg,
		s3:      s3Client,
		presign: s3.NewPresignClient(s3Client),
	}, nil
}

func (c *Client) PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error) {
	if c == nil {
		return "", nil, errors.New("s3 client not initialized")
	}
	if key == "" {
		return "", nil, errors.New("object key is required")
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if sizeBytes > 0 {
		input.ContentLength = aws.Int64(sizeBytes)
	}

	presigned, err := c.presign.PresignPutObject(ctx, input, func(po *s3.PresignOptions) {
		if c.cfg.PresignTTL > 0 {
			po.Expires = c.cfg.PresignTTL
		}
	})
	if err != nil {
		return "", nil, err
	}

	headers := map[string]string{}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	if sizeBytes > 0 {
		headers["Content-Length"] = strconv.FormatInt(sizeBytes, 10)
	}

	return presigned.URL, headers, nil
}

// FileURL returns the public URL of key, or the bare key when no public base
// is configured.
func (c *Client) FileURL(key string) string {
	if c == nil || key == "" {
		return ""
	}
	if c.cfg.PublicBase != "" {
		return c.cfg.PublicBase + "/" + key
	}
	return key
}

func ValidateContentType(contentType string) error {
	if contentType == "" {
		return errors.New("content type is required")
	}
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !allowedContentTypes[base] {
		return errors.New("unsupported content type")
	}
	return nil
}
