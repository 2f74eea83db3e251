package filerepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"webp-renditions/internal/logging"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSConfig configures the Google Cloud Storage adapter.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// CredentialsFile is a service account key. Application default
	// credentials are used when empty.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// GCS keeps each zone under "<prefix>/<zone>/" in one bucket.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCS creates a GCS repository. Close releases the client.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs repository requires a bucket")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}

	return &GCS{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Name implements Repository.
func (g *GCS) Name() string { return "gcs" }

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) object(zone, rel string) (*storage.ObjectHandle, string, error) {
	if err := checkZone(zone); err != nil {
		return nil, "", err
	}
	clean, err := cleanRel(rel)
	if err != nil {
		return nil, "", err
	}
	key := joinKey(g.prefix, zone, clean)
	return g.bucket.Object(key), key, nil
}

func isGCSPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// Exists implements Repository.
func (g *GCS) Exists(ctx context.Context, zone, rel string) (bool, error) {
	obj, key, err := g.object(zone, rel)
	if err != nil {
		return false, err
	}
	if _, err := obj.Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return true, nil
}

// Store implements Repository. Without overwrite the write is conditional
// on the object not existing.
func (g *GCS) Store(ctx context.Context, localPath, zone, rel string, overwrite bool) error {
	obj, key, err := g.object(zone, rel)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType(rel)

	if _, err := io.Copy(wc, f); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		if isGCSPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
		}
		return fmt.Errorf("Writer.Close: %w", err)
	}

	logging.Debug("Uploaded %s to gs://%s/%s", localPath, g.name, key)
	return nil
}

// LocalCopy implements Repository by downloading to a temp file.
func (g *GCS) LocalCopy(ctx context.Context, zone, rel string) (string, func(), error) {
	obj, key, err := g.object(zone, rel)
	if err != nil {
		return "", nil, err
	}

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer r.Close()

	return downloadTemp(r, path.Ext(rel))
}

// List implements Repository.
func (g *GCS) List(ctx context.Context, zone, dir string) ([]string, error) {
	if err := checkZone(zone); err != nil {
		return nil, err
	}
	clean, err := cleanRel(dir)
	if err != nil {
		return nil, err
	}
	base := joinKey(g.prefix, zone, "")
	prefix := joinKey(g.prefix, zone, clean) + "/"

	var out []string
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		out = append(out, strings.TrimPrefix(strings.TrimPrefix(attrs.Name, base), "/"))
	}
	return out, nil
}

// Delete implements Repository.
func (g *GCS) Delete(ctx context.Context, zone, rel string) error {
	obj, key, err := g.object(zone, rel)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Move implements Repository as a server side copy followed by a delete.
func (g *GCS) Move(ctx context.Context, zone, from, to string) error {
	src, srcKey, err := g.object(zone, from)
	if err != nil {
		return err
	}
	dst, _, err := g.object(zone, to)
	if err != nil {
		return err
	}

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, srcKey)
		}
		return fmt.Errorf("failed to copy %s: %w", srcKey, err)
	}
	return g.Delete(ctx, zone, from)
}

// CleanDir implements Repository. Buckets have no directories.
func (g *GCS) CleanDir(context.Context, string, string) error { return nil }
