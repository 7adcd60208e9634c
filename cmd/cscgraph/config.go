package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/23skdu/cscgraph/internal/limiter"
	"github.com/23skdu/cscgraph/internal/serialize"
	"github.com/23skdu/cscgraph/internal/storage"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read into Config.
const EnvPrefix = "CSCGRAPH"

// Config is the process configuration. Values come from the environment
// (optionally seeded from a .env file) and are overridden by flags.
type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:"0.0.0.0:3000"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:"0.0.0.0:9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Codec and FormatVersion apply when writing graphs.
	Codec         string `envconfig:"CODEC" default:"none"`
	FormatVersion uint32 `envconfig:"FORMAT_VERSION" default:"2"`

	// DoGet record batch sizing.
	MinChunkRows int `envconfig:"MIN_CHUNK_ROWS" default:"4096"`
	MaxChunkRows int `envconfig:"MAX_CHUNK_ROWS" default:"65536"`

	KeepAliveTime                time.Duration `envconfig:"KEEPALIVE_TIME" default:"2h"`
	KeepAliveTimeout             time.Duration `envconfig:"KEEPALIVE_TIMEOUT" default:"20s"`
	KeepAliveMinTime             time.Duration `envconfig:"KEEPALIVE_MIN_TIME" default:"5m"`
	KeepAlivePermitWithoutStream bool          `envconfig:"KEEPALIVE_PERMIT_WITHOUT_STREAM" default:"false"`

	GRPCMaxConcurrentStreams  uint32 `envconfig:"GRPC_MAX_CONCURRENT_STREAMS" default:"250"`
	GRPCInitialWindowSize     int32  `envconfig:"GRPC_INITIAL_WINDOW_SIZE" default:"1048576"`
	GRPCInitialConnWindowSize int32  `envconfig:"GRPC_INITIAL_CONN_WINDOW_SIZE" default:"1048576"`
	GRPCMaxRecvMsgSize        int    `envconfig:"GRPC_MAX_RECV_MSG_SIZE" default:"67108864"`
	GRPCMaxSendMsgSize        int    `envconfig:"GRPC_MAX_SEND_MSG_SIZE" default:"67108864"`

	limiter.Config

	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix          string `envconfig:"S3_PREFIX"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
	S3PartSize        int    `envconfig:"S3_PART_SIZE" default:"5242880"`
}

// Config validation errors
var (
	ErrInvalidListenAddr    = errors.New("listen_addr cannot be empty")
	ErrInvalidMetricsAddr   = errors.New("metrics_addr cannot be empty")
	ErrInvalidLogFormat     = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel      = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidCodec         = errors.New("codec must be 'none' or 'snappy'")
	ErrInvalidFormatVersion = errors.New("format_version must be 1 or 2")
	ErrInvalidChunkRows     = errors.New("chunk rows must be positive with min <= max")
	ErrInvalidKeepAliveTime = errors.New("keepalive_time must be positive")
	ErrInvalidS3PartSize    = errors.New("s3_part_size must not be negative")
)

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return ErrInvalidListenAddr
	}
	if cfg.MetricsAddr == "" {
		return ErrInvalidMetricsAddr
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	if _, err := serialize.ParseCodec(cfg.Codec); err != nil {
		return ErrInvalidCodec
	}
	if cfg.FormatVersion != serialize.VersionRaw && cfg.FormatVersion != serialize.VersionChecked {
		return ErrInvalidFormatVersion
	}
	if cfg.MinChunkRows <= 0 || cfg.MaxChunkRows < cfg.MinChunkRows {
		return ErrInvalidChunkRows
	}
	if cfg.KeepAliveTime <= 0 {
		return ErrInvalidKeepAliveTime
	}
	if cfg.S3PartSize < 0 {
		return ErrInvalidS3PartSize
	}
	return cfg.ValidateGRPCConfig()
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		ListenAddr:                "0.0.0.0:3000",
		MetricsAddr:               "0.0.0.0:9090",
		LogFormat:                 "json",
		LogLevel:                  "info",
		Codec:                     serialize.CodecNone.String(),
		FormatVersion:             serialize.CurrentVersion,
		MinChunkRows:              4096,
		MaxChunkRows:              65536,
		KeepAliveTime:             2 * time.Hour,
		KeepAliveTimeout:          20 * time.Second,
		KeepAliveMinTime:          5 * time.Minute,
		GRPCMaxConcurrentStreams:  250,
		GRPCInitialWindowSize:     1 << 20,
		GRPCInitialConnWindowSize: 1 << 20,
		GRPCMaxRecvMsgSize:        64 << 20,
		GRPCMaxSendMsgSize:        64 << 20,
		Config:                    limiter.Config{MaxWait: time.Second},
		S3Region:                  "us-east-1",
		S3PartSize:                storage.DefaultPartSize,
	}
}

// LoadConfig reads envFile (or ./.env when envFile is empty and the file
// exists) into the environment, then processes CSCGRAPH_* variables.
// Variables already set in the environment win over the file.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

// SaveOptions returns the serializer options selected by the config.
func (c *Config) SaveOptions() []serialize.SaveOption {
	codec, _ := serialize.ParseCodec(c.Codec)
	return []serialize.SaveOption{serialize.WithVersion(c.FormatVersion), serialize.WithCodec(codec)}
}

// S3 returns the S3 backend settings. The bucket comes from each graph
// location.
func (c *Config) S3() storage.S3BackendConfig {
	return storage.S3BackendConfig{
		Endpoint:        c.S3Endpoint,
		Region:          c.S3Region,
		Prefix:          c.S3Prefix,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		UsePathStyle:    c.S3UsePathStyle,
		PartSize:        c.S3PartSize,
	}
}
