package filerepo

import (
	"context"
	"fmt"
	"strings"

	"webp-renditions/internal/logging"
)

// LocalConfig holds the zone roots of the local adapter.
type LocalConfig struct {
	Public string `mapstructure:"public" yaml:"public" default:"/srv/images"`
	Thumb  string `mapstructure:"thumb" yaml:"thumb" default:"/srv/images/thumb"`
}

// Config selects and configures a repository adapter.
type Config struct {
	Backend    string `mapstructure:"backend" yaml:"backend" default:"local" validate:"oneof=local s3 gcs sftp"`
	HashLevels int    `mapstructure:"hash_levels" yaml:"hash_levels" default:"2" validate:"min=0,max=16"`

	Local LocalConfig `mapstructure:"local" yaml:"local"`
	S3    S3Config    `mapstructure:"s3" yaml:"s3"`
	GCS   GCSConfig   `mapstructure:"gcs" yaml:"gcs"`
	SFTP  SFTPConfig  `mapstructure:"sftp" yaml:"sftp"`
}

// Open builds the configured adapter. The returned close function releases
// network clients and is safe to call for adapters that hold none.
func Open(ctx context.Context, cfg Config) (Repository, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		logging.Info("Repository: local (public=%s, thumb=%s)", cfg.Local.Public, cfg.Local.Thumb)
		return NewLocal(map[string]string{
			ZonePublic: cfg.Local.Public,
			ZoneThumb:  cfg.Local.Thumb,
		}), noop, nil

	case "s3":
		repo, err := NewS3(cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("Repository: s3 (bucket=%s, prefix=%q)", cfg.S3.Bucket, cfg.S3.Prefix)
		return repo, noop, nil

	case "gcs":
		repo, err := NewGCS(ctx, cfg.GCS)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("Repository: gcs (bucket=%s, prefix=%q)", cfg.GCS.Bucket, cfg.GCS.Prefix)
		return repo, repo.Close, nil

	case "sftp":
		repo, err := NewSFTP(ctx, cfg.SFTP)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("Repository: sftp (addr=%s, root=%s)", cfg.SFTP.Addr, cfg.SFTP.Root)
		return repo, repo.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown repository backend %q", cfg.Backend)
	}
}
