package filerepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"webp-renditions/internal/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config configures the S3 adapter.
type S3Config struct {
	Region    string `mapstructure:"region" yaml:"region" default:"us-east-1"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	// Endpoint points at an S3 compatible service. Path style addressing is
	// used whenever it is set.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// S3 keeps each zone under "<prefix>/<zone>/" in one bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3 creates an S3 repository with static credentials.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 repository requires a bucket")
	}

	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	client := s3.New(opts)

	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Name implements Repository.
func (s *S3) Name() string { return "s3" }

func (s *S3) key(zone, rel string) (string, error) {
	if err := checkZone(zone); err != nil {
		return "", err
	}
	clean, err := cleanRel(rel)
	if err != nil {
		return "", err
	}
	return joinKey(s.prefix, zone, clean), nil
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}

// Exists implements Repository.
func (s *S3) Exists(ctx context.Context, zone, rel string) (bool, error) {
	key, err := s.key(zone, rel)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head %s: %w", key, err)
	}
	return true, nil
}

// Store implements Repository. Without overwrite the upload is conditional
// on the key being absent.
func (s *S3) Store(ctx context.Context, localPath, zone, rel string, overwrite bool) error {
	key, err := s.key(zone, rel)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(rel)),
	}
	if !overwrite {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
		}
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, s.bucket, err)
	}

	logging.Debug("Uploaded %s to s3://%s/%s", localPath, s.bucket, key)
	return nil
}

// LocalCopy implements Repository by downloading to a temp file.
func (s *S3) LocalCopy(ctx context.Context, zone, rel string) (string, func(), error) {
	key, err := s.key(zone, rel)
	if err != nil {
		return "", nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return "", nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	return downloadTemp(out.Body, path.Ext(rel))
}

// List implements Repository.
func (s *S3) List(ctx context.Context, zone, dir string) ([]string, error) {
	base, err := s.key(zone, "")
	if err != nil {
		return nil, err
	}
	prefix, err := s.key(zone, dir)
	if err != nil {
		return nil, err
	}
	if prefix != "" {
		prefix += "/"
	}

	var out []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if strings.HasSuffix(k, "/") {
				continue
			}
			out = append(out, strings.TrimPrefix(strings.TrimPrefix(k, base), "/"))
		}
	}
	return out, nil
}

// Delete implements Repository.
func (s *S3) Delete(ctx context.Context, zone, rel string) error {
	key, err := s.key(zone, rel)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Move implements Repository as a server side copy followed by a delete.
func (s *S3) Move(ctx context.Context, zone, from, to string) error {
	src, err := s.key(zone, from)
	if err != nil {
		return err
	}
	dst, err := s.key(zone, to)
	if err != nil {
		return err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String((&url.URL{Path: s.bucket + "/" + src}).EscapedPath()),
	})
	if err != nil {
		if isS3NotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, src)
		}
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return s.Delete(ctx, zone, from)
}

// CleanDir implements Repository. Buckets have no directories.
func (s *S3) CleanDir(context.Context, string, string) error { return nil }

// downloadTemp writes r to a new temp file and returns its path and a
// release function removing it.
func downloadTemp(r io.Reader, ext string) (string, func(), error) {
	f, err := os.CreateTemp("", "repo_*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()
	release := func() { os.Remove(name) }

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		release()
		return "", nil, fmt.Errorf("failed to download to %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", nil, err
	}
	return name, release, nil
}

// contentType guesses the stored MIME type from the rendition extension.
func contentType(rel string) string {
	switch strings.ToLower(path.Ext(rel)) {
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
