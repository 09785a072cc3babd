// Package storage keeps uploaded property media on local disk or in S3.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/logger"
)

// Storage types
const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Config holds storage configuration
type Config struct {
	Type               string
	LocalPath          string
	PublicURL          string
	AWSRegion          string
	S3Bucket           string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	// Endpoint overrides the S3 endpoint (MinIO, tests). Enables path-style.
	Endpoint string
}

// New creates the store selected by cfg.Type
func New(ctx context.Context, cfg Config, log logger.Logger) (domain.MediaStore, error) {
	log = logger.OrNop(log)
	switch cfg.Type {
	case TypeS3:
		s, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("media storage on S3", "bucket", cfg.S3Bucket, "region", cfg.AWSRegion)
		return s, nil
	case TypeLocal, "":
		s, err := NewLocalStore(cfg.LocalPath, cfg.PublicURL)
		if err != nil {
			return nil, err
		}
		log.Info("media storage on local disk", "path", cfg.LocalPath)
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", cfg.Type)
	}
}

// Image is a validated upload ready to store.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// ReadImage reads at most MaxImageSize bytes from r and checks they are an image.
func ReadImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.NewBadRequestError("File is empty")
	}
	if len(data) > MaxImageSize {
		return nil, domain.NewBadRequestError("File is too large (max 10MB)")
	}
	mt := mimetype.Detect(data)
	ct := strings.SplitN(mt.String(), ";", 2)[0]
	if !allowedImageTypes[ct] {
		return nil, domain.NewBadRequestError("Only JPEG, PNG, WebP and GIF images are accepted")
	}
	return &Image{Data: data, ContentType: ct, Extension: mt.Extension()}, nil
}

// PropertyMediaKey builds a unique object key for a property image.
func PropertyMediaKey(propertyID uint, ext string) string {
	return fmt.Sprintf("properties/%d/%s%s", propertyID, uuid.NewString(), ext)
}

// cleanKey rejects keys escaping the store root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return k, nil
}

// LocalStore writes media under a directory served at PublicURL.
type LocalStore struct {
	root      string
	publicURL string
}

// NewLocalStore creates root if needed
func NewLocalStore(root, publicURL string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage path is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Root returns the directory media is written to.
func (s *LocalStore) Root() string { return s.root }

// Put writes body to key and returns its public URL.
func (s *LocalStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close media file: %w", err)
	}
	return s.publicURL + "/" + k, nil
}

// Delete removes key; missing files are ignored.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(k))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}

// S3Store writes media to an S3 bucket.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Store creates an S3 client from static credentials, or the default
// provider chain when none are configured.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for s3 storage")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.PublicURL
	switch {
	case strings.HasPrefix(publicURL, "http://"), strings.HasPrefix(publicURL, "https://"):
	case cfg.Endpoint != "":
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.S3Bucket
	default:
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.AWSRegion)
	}

	return &S3Store{client: client, bucket: cfg.S3Bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Put uploads body to key and returns its public URL.
func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	// A seekable body lets the SDK sign the payload without chunked encoding.
	rs, ok := body.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read media: %w", err)
		}
		rs = bytes.NewReader(data)
		size = int64(len(data))
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(k),
		Body:        rs,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return s.publicURL + "/" + k, nil
}

// Delete removes key from the bucket.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}
