package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/redline"
	"github.com/hupe1980/redline/codec"
	"github.com/hupe1980/redline/lock"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of the CLI.
type Config struct {
	// Backend selects the blob store: memory, local, s3, s3+dynamodb,
	// minio, gcs or badger.
	Backend string `yaml:"backend"`

	Local  LocalConfig  `yaml:"local"`
	S3     S3Config     `yaml:"s3"`
	MinIO  MinIOConfig  `yaml:"minio"`
	GCS    GCSConfig    `yaml:"gcs"`
	Badger BadgerConfig `yaml:"badger"`

	Lock  LockConfig  `yaml:"lock"`
	Index IndexConfig `yaml:"index"`

	// Codec is "go-json" or "json".
	Codec string `yaml:"codec"`
	// Compression is "none", "zstd" or "lz4".
	Compression string `yaml:"compression"`

	Log LogConfig `yaml:"log"`
}

type LocalConfig struct {
	Root string `yaml:"root"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	// LockTable is the DynamoDB table for lock tokens (s3+dynamodb only).
	LockTable string `yaml:"lock_table"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type BadgerConfig struct {
	Path       string `yaml:"path"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

type LockConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	Timeout        time.Duration `yaml:"timeout"`
	PollsPerSecond float64       `yaml:"polls_per_second"`
	PollBurst      int           `yaml:"poll_burst"`
}

type IndexConfig struct {
	Workers       int `yaml:"workers"`
	DocumentCache int `yaml:"document_cache"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration for a local store in ./redline-data.
func DefaultConfig() Config {
	return Config{
		Backend: "local",
		Local:   LocalConfig{Root: "redline-data"},
		Lock: LockConfig{
			TTL:     lock.DefaultTTL,
			Timeout: lock.DefaultTimeout,
		},
		Index: IndexConfig{
			Workers:       8,
			DocumentCache: 128,
		},
		Codec:       codec.Default.Name(),
		Compression: codec.CompressionNone.String(),
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return cfg, nil
}

// storeOptions translates the configuration into redline options.
func (c Config) storeOptions() ([]redline.Option, error) {
	cd, ok := codec.ByName(c.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", c.Codec)
	}
	comp, err := codec.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	return []redline.Option{
		redline.WithCodec(cd),
		redline.WithCompression(comp),
		redline.WithLogger(logger),
		redline.WithLockTTL(c.Lock.TTL),
		redline.WithLockTimeout(c.Lock.Timeout),
		redline.WithPollRate(c.Lock.PollsPerSecond, c.Lock.PollBurst),
		redline.WithIndexWorkers(c.Index.Workers),
		redline.WithDocumentCacheSize(c.Index.DocumentCache),
	}, nil
}

func (c Config) logger() (*redline.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	switch c.Log.Format {
	case "", "text":
		return redline.NewTextLogger(level), nil
	case "json":
		return redline.NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Log.Format)
	}
}
