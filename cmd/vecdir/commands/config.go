package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecdir"
	"github.com/hupe1980/vecdir/blobstore"
	miniostore "github.com/hupe1980/vecdir/blobstore/minio"
	s3store "github.com/hupe1980/vecdir/blobstore/s3"
	"github.com/hupe1980/vecdir/codec"
	"github.com/hupe1980/vecdir/index"
	"github.com/hupe1980/vecdir/index/flat"
	"github.com/hupe1980/vecdir/index/hnsw"
)

// Config is the YAML configuration of the CLI.
type Config struct {
	LogLevel            string        `yaml:"log_level"`
	LogFormat           string        `yaml:"log_format"`
	Durability          string        `yaml:"durability"`
	Compression         string        `yaml:"compression"`
	Codec               string        `yaml:"codec"`
	MaxConcurrentBuilds int           `yaml:"max_concurrent_builds"`
	IOLimitBytesPerSec  int64         `yaml:"io_limit_bytes_per_sec"`
	Index               IndexConfig   `yaml:"index"`
	Mirror              *MirrorConfig `yaml:"mirror"`
}

// IndexConfig selects and tunes the index builder.
type IndexConfig struct {
	Builder        string `yaml:"builder"`
	M              int    `yaml:"m"`
	EFConstruction int    `yaml:"ef_construction"`
	EFSearch       int    `yaml:"ef_search"`
	Seed           int64  `yaml:"seed"`
}

// MirrorConfig uploads every built index to a blob store.
type MirrorConfig struct {
	Type  string            `yaml:"type"` // local, s3 or minio
	Local LocalMirrorConfig `yaml:"local"`
	S3    S3MirrorConfig    `yaml:"s3"`
	MinIO MinIOMirrorConfig `yaml:"minio"`
}

type LocalMirrorConfig struct {
	Root string `yaml:"root"`
}

type S3MirrorConfig struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	// CommitTable enables versioned uploads committed through DynamoDB.
	CommitTable string `yaml:"commit_table"`
}

type MinIOMirrorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	d := hnsw.DefaultOptions
	return Config{
		LogLevel:    "warn",
		LogFormat:   "text",
		Durability:  "sync",
		Compression: "none",
		Codec:       "go-json",
		Index: IndexConfig{
			Builder:        hnsw.Name,
			M:              d.M,
			EFConstruction: d.EFConstruction,
			EFSearch:       d.EFSearch,
			Seed:           d.Seed,
		},
	}
}

// LoadConfig reads path over the defaults. An empty path yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) logger() (*vecdir.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	switch c.LogFormat {
	case "", "text":
		return vecdir.NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
	case "json":
		return vecdir.NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
	default:
		return nil, fmt.Errorf("log_format: unknown format %q", c.LogFormat)
	}
}

func (c IndexConfig) builder() (index.Builder, error) {
	switch c.Builder {
	case "", hnsw.Name:
		return hnsw.NewBuilder(func(o *hnsw.Options) {
			if c.M > 0 {
				o.M = c.M
			}
			if c.EFConstruction > 0 {
				o.EFConstruction = c.EFConstruction
			}
			if c.EFSearch > 0 {
				o.EFSearch = c.EFSearch
			}
			if c.Seed != 0 {
				o.Seed = c.Seed
			}
		}), nil
	case flat.Name:
		return flat.NewBuilder(), nil
	default:
		return nil, fmt.Errorf("index.builder: unknown builder %q", c.Builder)
	}
}

func (m *MirrorConfig) store(ctx context.Context) (blobstore.BlobStore, error) {
	switch m.Type {
	case "local":
		if m.Local.Root == "" {
			return nil, errors.New("mirror.local.root is required")
		}
		return blobstore.NewLocalStore(m.Local.Root), nil
	case "s3":
		if m.S3.Bucket == "" {
			return nil, errors.New("mirror.s3.bucket is required")
		}
		store, err := s3store.New(ctx, m.S3.Bucket,
			s3store.WithPrefix(m.S3.Prefix),
			s3store.WithRegion(m.S3.Region),
			s3store.WithEndpoint(m.S3.Endpoint),
			s3store.WithPathStyle(m.S3.PathStyle),
		)
		if err != nil {
			return nil, err
		}
		if m.S3.CommitTable == "" {
			return store, nil
		}
		var loadOpts []func(*awsconfig.LoadOptions) error
		if m.S3.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(m.S3.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3store.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), m.S3.CommitTable), nil
	case "minio":
		if m.MinIO.Endpoint == "" || m.MinIO.Bucket == "" {
			return nil, errors.New("mirror.minio.endpoint and mirror.minio.bucket are required")
		}
		return miniostore.New(miniostore.Config{
			Endpoint:  m.MinIO.Endpoint,
			AccessKey: m.MinIO.AccessKey,
			SecretKey: m.MinIO.SecretKey,
			Secure:    m.MinIO.Secure,
			Bucket:    m.MinIO.Bucket,
			Prefix:    m.MinIO.Prefix,
		})
	default:
		return nil, fmt.Errorf("mirror.type: unknown type %q", m.Type)
	}
}

// Options translates the configuration into registry options.
func (c Config) Options(ctx context.Context) ([]vecdir.Option, error) {
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	durability, err := vecdir.ParseDurability(c.Durability)
	if err != nil {
		return nil, fmt.Errorf("durability: %w", err)
	}
	compression, err := vecdir.ParseCompression(c.Compression)
	if err != nil {
		return nil, fmt.Errorf("compression: %w", err)
	}
	cd, err := codec.ByName(c.Codec)
	if err != nil {
		return nil, err
	}
	builder, err := c.Index.builder()
	if err != nil {
		return nil, err
	}

	opts := []vecdir.Option{
		vecdir.WithLogger(logger),
		vecdir.WithDurability(durability),
		vecdir.WithCompression(compression),
		vecdir.WithCodec(cd),
		vecdir.WithIndexBuilder(builder),
		vecdir.WithIOLimit(c.IOLimitBytesPerSec),
	}
	if c.MaxConcurrentBuilds > 0 {
		opts = append(opts, vecdir.WithMaxConcurrentBuilds(c.MaxConcurrentBuilds))
	}
	if c.Mirror != nil {
		store, err := c.Mirror.store(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vecdir.WithIndexMirror(store))
	}
	return opts, nil
}
