// Package api provides the core implementation for anitrakt operations.
// This package is used by both the CLI and the public library API.
package api

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/mydehq/anitrakt/internal/config"
	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/mapper"
	"github.com/mydehq/anitrakt/internal/parser"
	"github.com/mydehq/anitrakt/internal/report"
	"github.com/mydehq/anitrakt/internal/resolver"
	"github.com/mydehq/anitrakt/internal/syncer"
	"github.com/mydehq/anitrakt/internal/trakt"
	"github.com/mydehq/anitrakt/internal/types"
)

const (
	checkpointFile   = "checkpoint.json"
	mappingCacheFile = "anime_ids.json"
)

// Option is a functional option for configuring operations.
type Option func(*Options)

// Options holds configuration for anitrakt operations.
type Options struct {
	DryRun              bool
	Resume              bool
	OverrideFingerprint bool
	ForceRefresh        bool
	History             bool
	Ratings             bool
	ExcludeRestricted   bool
	SkipRemote          bool
	OutputDir           string
	ConfigPath          string
}

func buildOptions(opts []Option) *Options {
	options := &Options{
		History:   true,
		Ratings:   true,
		OutputDir: "anitrakt-reports",
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithDryRun previews the sync without submitting anything.
func WithDryRun() Option {
	return func(o *Options) { o.DryRun = true }
}

// WithResume continues from an existing checkpoint.
func WithResume() Option {
	return func(o *Options) { o.Resume = true }
}

// WithOverrideFingerprint allows resuming against a changed input file.
func WithOverrideFingerprint() Option {
	return func(o *Options) { o.OverrideFingerprint = true }
}

// WithForceRefresh re-downloads the mapping database regardless of cache age.
func WithForceRefresh() Option {
	return func(o *Options) { o.ForceRefresh = true }
}

// WithoutHistory skips watch-history submission.
func WithoutHistory() Option {
	return func(o *Options) { o.History = false }
}

// WithoutRatings skips ratings submission.
func WithoutRatings() Option {
	return func(o *Options) { o.Ratings = false }
}

// WithExcludeRestricted drops restricted entries from the export.
func WithExcludeRestricted() Option {
	return func(o *Options) { o.ExcludeRestricted = true }
}

// WithSkipRemote resolves without fetching existing Trakt data. Everything
// local is treated as new.
func WithSkipRemote() Option {
	return func(o *Options) { o.SkipRemote = true }
}

// WithOutputDir sets where reports and failed batches are written.
func WithOutputDir(dir string) Option {
	return func(o *Options) { o.OutputDir = dir }
}

// WithConfig specifies a custom config file path.
func WithConfig(path string) Option {
	return func(o *Options) { o.ConfigPath = path }
}

// ParseResult summarizes an export without touching Trakt.
type ParseResult struct {
	Stats    parser.Stats
	Mapped   []types.AnimeEntry
	Unmapped []types.AnimeEntry
	Reports  []string
}

// Parse reads an AniDB export, resolves IDs against the mapping database and
// writes review reports. No Trakt credentials are needed.
func Parse(ctx context.Context, path string, opts ...Option) (*ParseResult, error) {
	options := buildOptions(opts)

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return nil, err
	}

	p := parser.New(path)
	entries, err := p.WatchedAnime(options.ExcludeRestricted)
	if err != nil {
		return nil, err
	}
	stats, err := p.Stats()
	if err != nil {
		return nil, err
	}

	m, err := loadMapper(ctx, cfg, options.ForceRefresh)
	if err != nil {
		return nil, err
	}
	mapped, unmapped := m.MapAll(entries)

	resolutions := resolver.Resolve(mapped, nil)
	result := &ParseResult{Stats: stats, Mapped: mapped, Unmapped: unmapped}

	all := append(append([]types.AnimeEntry{}, mapped...), unmapped...)
	rows := report.Build(all, resolutions)
	if htmlPath, err := report.WriteHTML(rows, options.OutputDir); err != nil {
		logger.Warn("failed to write HTML report", "error", err)
	} else {
		result.Reports = append(result.Reports, htmlPath)
	}
	if csvPath, err := report.WriteCSV(rows, options.OutputDir); err != nil {
		logger.Warn("failed to write CSV report", "error", err)
	} else {
		result.Reports = append(result.Reports, csvPath)
	}
	if len(unmapped) > 0 {
		if unmappedPath, err := report.WriteUnmapped(unmapped, options.OutputDir); err != nil {
			logger.Warn("failed to write unmapped report", "error", err)
		} else {
			result.Reports = append(result.Reports, unmappedPath)
		}
	}

	payloadHistory := syncer.BuildHistory(resolutions)
	payloadRatings := syncer.BuildRatings(resolutions)
	if paths, err := report.WritePayloads(payloadHistory, payloadRatings, options.OutputDir); err != nil {
		logger.Warn("failed to write payload files", "error", err)
	} else {
		result.Reports = append(result.Reports, paths...)
	}

	return result, nil
}

// Sync runs the full pipeline: parse, map, compare with Trakt and submit in
// batches. The result is valid even when an error is returned.
func Sync(ctx context.Context, path string, opts ...Option) (*types.SyncResult, error) {
	options := buildOptions(opts)

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return nil, err
	}

	p := parser.New(path)
	entries, err := p.WatchedAnime(options.ExcludeRestricted)
	if err != nil {
		return nil, err
	}

	m, err := loadMapper(ctx, cfg, options.ForceRefresh)
	if err != nil {
		return nil, err
	}
	mapped, unmapped := m.MapAll(entries)

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if !client.IsAuthenticated() {
		return nil, types.ErrNotAuthenticated{}
	}

	var lookup resolver.RemoteLookup
	if !options.SkipRemote {
		fetcher := trakt.NewFetcher(client)
		if err := fetcher.Fetch(ctx); err != nil {
			return nil, err
		}
		lookup = fetcher.Existing
	}
	resolutions := resolver.Resolve(mapped, lookup)

	fingerprint, err := syncer.Fingerprint(path)
	if err != nil {
		return nil, err
	}
	cacheDir, err := cfg.CacheDir()
	if err != nil {
		return nil, err
	}

	s := syncer.New(client)
	result, syncErr := s.Sync(ctx, resolutions, syncer.Options{
		Ratings:             options.Ratings,
		History:             options.History,
		DryRun:              options.DryRun,
		Resume:              options.Resume,
		OverrideFingerprint: options.OverrideFingerprint,
		Fingerprint:         fingerprint,
		CheckpointPath:      filepath.Join(cacheDir, checkpointFile),
		OutputDir:           options.OutputDir,
		RemoteDeduped:       !options.SkipRemote,
	})
	if result != nil {
		result.Unmapped = len(unmapped)
	}

	if len(unmapped) > 0 {
		if _, err := report.WriteUnmapped(unmapped, options.OutputDir); err != nil {
			logger.Warn("failed to write unmapped report", "error", err)
		}
	}

	return result, syncErr
}

// Auth runs the OAuth device flow. display is called once with the code the
// user must enter before polling starts.
func Auth(ctx context.Context, display func(*trakt.DeviceCode), opts ...Option) (*trakt.UserProfile, error) {
	options := buildOptions(opts)

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	dc, err := client.StartDeviceAuth(ctx)
	if err != nil {
		return nil, err
	}
	if display != nil {
		display(dc)
	}
	if err := client.PollToken(ctx, dc); err != nil {
		return nil, err
	}
	return client.UserProfile(ctx)
}

// AuthStatus returns the authenticated user's profile.
func AuthStatus(ctx context.Context, opts ...Option) (*trakt.UserProfile, error) {
	options := buildOptions(opts)

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return client.UserProfile(ctx)
}

// AuthRevoke invalidates and removes the stored token.
func AuthRevoke(ctx context.Context, opts ...Option) error {
	options := buildOptions(opts)

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	return client.RevokeToken(ctx)
}

// CacheInfo reports the mapping cache location and contents.
func CacheInfo(ctx context.Context, opts ...Option) (mapper.Stats, string, error) {
	options := buildOptions(opts)

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return mapper.Stats{}, "", err
	}
	m, err := loadMapper(ctx, cfg, false)
	if err != nil {
		return mapper.Stats{}, "", err
	}
	return m.Stats(), m.CachePath(), nil
}

// CacheRefresh force-downloads the mapping database.
func CacheRefresh(ctx context.Context, opts ...Option) (mapper.Stats, error) {
	options := buildOptions(opts)

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return mapper.Stats{}, err
	}
	m, err := loadMapper(ctx, cfg, true)
	if err != nil {
		return mapper.Stats{}, err
	}
	return m.Stats(), nil
}

// CachePath returns where the mapping cache lives on disk.
func CachePath(opts ...Option) (string, error) {
	options := buildOptions(opts)

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return "", err
	}
	dir, err := cfg.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, mappingCacheFile), nil
}

func loadMapper(ctx context.Context, cfg *config.Config, force bool) (*mapper.Mapper, error) {
	dir, err := cfg.CacheDir()
	if err != nil {
		return nil, err
	}
	m := mapper.New(filepath.Join(dir, mappingCacheFile))
	if err := m.Load(ctx, force); err != nil {
		return nil, err
	}
	return m, nil
}

func newClient(cfg *config.Config) (*trakt.Client, error) {
	tokenDir, err := cfg.TokenDir()
	if err != nil {
		return nil, err
	}
	httpc := &http.Client{Timeout: time.Duration(cfg.API.Timeout) * time.Second}
	transport := trakt.NewTransport(httpc, cfg.API)
	return trakt.NewClient(cfg.Trakt.ClientID, cfg.Trakt.ClientSecret, tokenDir, transport)
}
