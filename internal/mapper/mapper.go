// Package mapper resolves AniDB IDs to Trakt-compatible external IDs using
// the Kometa-Team Anime-IDs database, with a file-backed local cache.
package mapper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/types"
)

// DatabaseURL is the upstream mapping database.
const DatabaseURL = "https://raw.githubusercontent.com/Kometa-Team/Anime-IDs/master/anime_ids.json"

// CacheExpiry is how long a cached database is considered fresh.
const CacheExpiry = 7 * 24 * time.Hour

// dbEntry mirrors one record of the upstream database.
type dbEntry struct {
	TVDBID      int    `json:"tvdb_id,omitempty"`
	IMDBID      string `json:"imdb_id,omitempty"`
	TMDBShowID  int    `json:"tmdb_show_id,omitempty"`
	TMDBMovieID int    `json:"tmdb_movie_id,omitempty"`
	TVDBSeason  *int   `json:"tvdb_season,omitempty"`
	TVDBOffset  int    `json:"tvdb_epoffset,omitempty"`
}

// cacheMeta is stored alongside the mappings under the "_meta" key.
type cacheMeta struct {
	CachedAt time.Time `json:"cached_at"`
	Source   string    `json:"source"`
}

// Stats summarizes the loaded mapping database.
type Stats struct {
	Total         int
	WithTVDB      int
	WithIMDB      int
	WithTMDBShow  int
	WithTMDBMovie int
	CachedAt      time.Time
}

// Mapper maps AniDB IDs to destination IDs. Construct with New, then call
// Load before any lookup. The HTTP client is injected so tests can stub the
// upstream fetch.
type Mapper struct {
	cachePath string
	client    *http.Client
	url       string

	mappings map[string]dbEntry
	cachedAt time.Time
	loaded   bool
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithHTTPClient overrides the HTTP client used for database downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Mapper) { m.client = c }
}

// WithDatabaseURL overrides the upstream database URL.
func WithDatabaseURL(url string) Option {
	return func(m *Mapper) { m.url = url }
}

// New returns a mapper backed by the cache file at cachePath.
func New(cachePath string, opts ...Option) *Mapper {
	m := &Mapper{
		cachePath: cachePath,
		client:    &http.Client{Timeout: 30 * time.Second},
		url:       DatabaseURL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load makes the mapping database available, refreshing from upstream when
// the cache is missing or stale. A corrupt cache file is fatal. A failed
// refresh with a usable stale cache is logged and tolerated.
func (m *Mapper) Load(ctx context.Context, forceRefresh bool) error {
	if m.loaded && !forceRefresh {
		return nil
	}

	fresh, err := m.loadCache()
	if err != nil {
		return err
	}

	if fresh && !forceRefresh {
		logger.Debug("mapping cache is fresh", "entries", len(m.mappings), "cached_at", m.cachedAt)
		return nil
	}

	if err := m.Refresh(ctx); err != nil {
		if m.loaded {
			logger.Warn("mapping database refresh failed, using stale cache",
				"error", err, "cached_at", m.cachedAt)
			return nil
		}
		return err
	}
	return nil
}

// Refresh downloads the database from upstream and persists it to the cache
// file on success.
func (m *Mapper) Refresh(ctx context.Context) error {
	logger.Info("downloading mapping database", "url", m.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build database request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download mapping database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.ErrAPIError{Service: "Anime-IDs", StatusCode: resp.StatusCode, Message: "database download failed"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read mapping database: %w", err)
	}

	var mappings map[string]dbEntry
	if err := json.Unmarshal(body, &mappings); err != nil {
		return fmt.Errorf("invalid mapping database JSON: %w", err)
	}
	delete(mappings, "_meta")

	m.mappings = mappings
	m.cachedAt = time.Now()
	m.loaded = true

	if err := m.saveCache(); err != nil {
		logger.Warn("failed to persist mapping cache", "error", err)
	} else {
		logger.Info("mapping database refreshed", "entries", len(m.mappings))
	}
	return nil
}

// loadCache reads the cache file. It reports whether the loaded cache is
// fresh. A missing file is not an error; an undecodable one is.
func (m *Mapper) loadCache() (bool, error) {
	data, err := os.ReadFile(m.cachePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read mapping cache: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return false, types.ErrCacheCorrupt{Path: m.cachePath, Reason: err.Error()}
	}

	var meta cacheMeta
	if rawMeta, ok := raw["_meta"]; ok {
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return false, types.ErrCacheCorrupt{Path: m.cachePath, Reason: "bad _meta: " + err.Error()}
		}
		delete(raw, "_meta")
	}

	mappings := make(map[string]dbEntry, len(raw))
	for k, v := range raw {
		var entry dbEntry
		if err := json.Unmarshal(v, &entry); err != nil {
			return false, types.ErrCacheCorrupt{Path: m.cachePath, Reason: fmt.Sprintf("entry %s: %v", k, err)}
		}
		mappings[k] = entry
	}

	m.mappings = mappings
	m.cachedAt = meta.CachedAt
	m.loaded = true

	fresh := !meta.CachedAt.IsZero() && time.Since(meta.CachedAt) <= CacheExpiry
	return fresh, nil
}

// saveCache writes the mappings plus metadata atomically: to a temp file in
// the same directory, then rename over the target.
func (m *Mapper) saveCache() error {
	out := make(map[string]any, len(m.mappings)+1)
	for k, v := range m.mappings {
		out[k] = v
	}
	out["_meta"] = cacheMeta{CachedAt: m.cachedAt, Source: m.url}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mapping cache: %w", err)
	}

	dir := filepath.Dir(m.cachePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".anime_ids-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.cachePath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// CachedAt returns when the loaded database was fetched. Zero when the cache
// carried no metadata.
func (m *Mapper) CachedAt() time.Time {
	return m.cachedAt
}

// CachePath returns the on-disk location of the cache file.
func (m *Mapper) CachePath() string {
	return m.cachePath
}

// Lookup returns the destination IDs for an AniDB ID, or nil when the
// database has no record for it.
func (m *Mapper) Lookup(anidbID int) *types.MappedIDs {
	entry, ok := m.mappings[strconv.Itoa(anidbID)]
	if !ok {
		return nil
	}

	season := 1
	if entry.TVDBSeason != nil {
		season = *entry.TVDBSeason
	}

	return &types.MappedIDs{
		TVDBID:            entry.TVDBID,
		IMDBID:            entry.IMDBID,
		TMDBShowID:        entry.TMDBShowID,
		TMDBMovieID:       entry.TMDBMovieID,
		TVDBSeason:        season,
		TVDBEpisodeOffset: entry.TVDBOffset,
	}
}

// MapAll resolves IDs for every entry, splitting the input into entries with
// at least one usable destination ID and entries without any.
func (m *Mapper) MapAll(entries []types.AnimeEntry) (mapped, unmapped []types.AnimeEntry) {
	for _, e := range entries {
		e.Mapped = m.Lookup(e.AniDBID)
		if e.IsMapped() {
			mapped = append(mapped, e)
		} else {
			unmapped = append(unmapped, e)
		}
	}
	logger.Info("resolved anime IDs",
		"mapped", len(mapped), "unmapped", len(unmapped), "total", len(entries))
	return mapped, unmapped
}

// EpisodeTarget converts an AniDB episode to destination season/episode
// numbering. Specials of any kind land in season 0 with their own number;
// regular episodes get the mapped season and episode offset applied.
func EpisodeTarget(ep types.WatchedEpisode, ids *types.MappedIDs) types.EpisodeRef {
	if ep.Kind.IsSpecial() {
		return types.EpisodeRef{Season: 0, Episode: ep.Number}
	}
	return types.EpisodeRef{Season: ids.TVDBSeason, Episode: ep.Number + ids.TVDBEpisodeOffset}
}

// Stats returns counts over the loaded database.
func (m *Mapper) Stats() Stats {
	s := Stats{Total: len(m.mappings), CachedAt: m.cachedAt}
	for _, v := range m.mappings {
		if v.TVDBID != 0 {
			s.WithTVDB++
		}
		if v.IMDBID != "" {
			s.WithIMDB++
		}
		if v.TMDBShowID != 0 {
			s.WithTMDBShow++
		}
		if v.TMDBMovieID != 0 {
			s.WithTMDBMovie++
		}
	}
	return s
}
