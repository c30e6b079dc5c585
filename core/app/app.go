// Package app builds the session context: every long-lived component wired
// from one Config, loaded once on cold start and closed together.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"LocalFM/config"
	"LocalFM/core/assets"
	"LocalFM/core/audio"
	"LocalFM/core/auth"
	"LocalFM/core/library"
	"LocalFM/core/player"
	"LocalFM/core/upload"
	"LocalFM/db"
	"LocalFM/logger"
	"LocalFM/repository"
	"LocalFM/storage"
)

// App owns the stores, the in-memory library and the playback engine.
type App struct {
	Config    *config.Config
	Blobs     storage.BlobStore
	Documents db.DocumentStore
	Meta      *repository.MetadataStore
	Resolver  *assets.Resolver
	Auth      *auth.Authenticator
	Processor *upload.Processor
	Library   *library.Library
	Engine    *player.Engine
	Report    repository.LoadReport

	output player.Output
}

// Option adjusts construction, mostly for tests.
type Option func(*options)

type options struct {
	output   player.Output
	authOpts []auth.Option
}

// WithOutput replaces the output chosen by cfg.AudioOutput.
func WithOutput(o player.Output) Option {
	return func(opts *options) { opts.output = o }
}

// WithAuthOptions forwards options to the authenticator.
func WithAuthOptions(o ...auth.Option) Option {
	return func(opts *options) { opts.authOpts = append(opts.authOpts, o...) }
}

// New opens the configured backends and loads the metadata document.
// Anything opened before a failure is closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	a = &App{Config: cfg}
	partial := a
	defer func() {
		if err != nil {
			_ = partial.Close()
			a = nil
		}
	}()

	if a.Blobs, err = OpenBlobs(cfg); err != nil {
		return nil, err
	}
	if cfg.MetadataBackend == "" || cfg.MetadataBackend == "file" {
		if err := os.MkdirAll(filepath.Dir(cfg.MetadataPath), 0o755); err != nil {
			return nil, fmt.Errorf("create metadata dir: %w", err)
		}
	}
	if a.Documents, err = db.Open(cfg); err != nil {
		return nil, fmt.Errorf("open metadata backend: %w", err)
	}

	secret := cfg.SessionSecret
	if secret == "" {
		logger.Warn("SESSION_SECRET 未设置, 使用临时密钥; 重启后令牌失效")
		secret = auth.RandomSecret()
	}
	a.Auth = auth.NewAuthenticator(secret, o.authOpts...)
	a.Meta = repository.NewMetadataStore(a.Documents, a.Auth, cfg.AdminPassword)

	doc, report, err := a.Meta.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	a.Report = report
	switch {
	case report.Healed:
		logger.Warn("元数据文档已重置为默认", logger.String("reason", report.Reason))
	case report.Migrated:
		logger.Info("元数据文档已迁移")
	}

	a.Processor = upload.NewProcessor(audio.NewFFprobe(cfg.FFmpegPath))
	a.Library = library.New(doc, a.Meta, a.Blobs, a.Auth, a.Processor)
	a.Resolver = assets.NewResolver(a.Blobs)

	a.output = o.output
	if a.output == nil {
		if a.output, err = NewOutput(cfg); err != nil {
			return nil, err
		}
	}
	a.Engine = player.NewEngine(a.output, a.Resolver, a.Library,
		player.WithSeekGuardDelay(cfg.SeekGuardDelay))

	logger.Info("LocalFM 已就绪",
		logger.String("blobs", cfg.BlobBackend),
		logger.String("metadata", cfg.MetadataBackend),
		logger.String("output", cfg.AudioOutput))
	return a, nil
}

// OpenBlobs returns the blob store selected by cfg.BlobBackend. Stores open
// lazily, so nothing touches disk or network here.
func OpenBlobs(cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.BlobBackend {
	case "", "bolt":
		if err := os.MkdirAll(filepath.Dir(cfg.BlobPath), 0o755); err != nil {
			return nil, fmt.Errorf("create blob dir: %w", err)
		}
		return storage.NewBoltStore(cfg.BlobPath), nil
	case "minio":
		return storage.NewMinioStore(storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

// NewOutput returns the hardware output selected by cfg.AudioOutput.
func NewOutput(cfg *config.Config) (player.Output, error) {
	switch cfg.AudioOutput {
	case "", "silent":
		return audio.NewSilentOutput(), nil
	case "ffplay":
		return audio.NewFFplayOutput(cfg.FFmpegPath, filepath.Join(cfg.DataDir, "playback")), nil
	default:
		return nil, fmt.Errorf("unknown audio output %q", cfg.AudioOutput)
	}
}

// Close stops playback, drops every live handle and closes the stores.
func (a *App) Close() error {
	var errs []error
	if a.Engine != nil {
		errs = append(errs, a.Engine.Close())
	} else if a.output != nil {
		errs = append(errs, a.output.Close())
	}
	if a.Resolver != nil {
		if n := a.Resolver.ReleaseAll(); n > 0 {
			logger.Debug("已释放资源句柄", logger.Int("count", n))
		}
	}
	if a.Blobs != nil {
		errs = append(errs, a.Blobs.Close())
	}
	if a.Documents != nil {
		errs = append(errs, a.Documents.Close())
	}
	return errors.Join(errs...)
}
