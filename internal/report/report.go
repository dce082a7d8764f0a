// Package report renders run results as HTML, CSV and JSON files for manual
// review: what mapped, what didn't, and where ratings disagree.
package report

import (
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/trakt"
	"github.com/mydehq/anitrakt/internal/types"
)

// Output file names inside the report directory.
const (
	HTMLFile     = "report.html"
	CSVFile      = "report.csv"
	UnmappedFile = "unmapped.json"
	HistoryFile  = "trakt_history.json"
	RatingsFile  = "trakt_ratings.json"
)

// Row is one anime in the review report.
type Row struct {
	Title        string
	TitleRomaji  string
	Type         string
	AniDBID      int
	LocalRating  string
	RemoteRating string
	Conflict     string
	Episodes     string
	Watched      int
	Status       string
	Mapped       bool
	HasConflict  bool
	Rated        bool
	Links        []Link
}

type Link struct {
	Name string
	URL  string
}

// Build assembles report rows from all entries and their resolutions.
// Entries are sorted by display title.
func Build(entries []types.AnimeEntry, resolutions []types.Resolution) []Row {
	byID := make(map[int]*types.Resolution, len(resolutions))
	for i := range resolutions {
		byID[resolutions[i].Entry.AniDBID] = &resolutions[i]
	}

	rows := make([]Row, 0, len(entries))
	for i := range entries {
		rows = append(rows, buildRow(&entries[i], byID[entries[i].AniDBID]))
	}
	sort.Slice(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Title) < strings.ToLower(rows[j].Title)
	})
	return rows
}

func buildRow(entry *types.AnimeEntry, res *types.Resolution) Row {
	row := Row{
		Title:       entry.DisplayTitle(),
		TitleRomaji: entry.Title,
		Type:        entry.Type.String(),
		AniDBID:     entry.AniDBID,
		Watched:     len(entry.Episodes),
		Mapped:      entry.IsMapped(),
		Rated:       entry.Rating != nil,
		Links:       buildLinks(entry),
		Status:      status(entry, res),
	}

	if entry.TotalEpisodes > 0 {
		row.Episodes = fmt.Sprintf("%d/%d", len(entry.Episodes), entry.TotalEpisodes)
	} else {
		row.Episodes = strconv.Itoa(len(entry.Episodes))
	}

	row.LocalRating = "-"
	if entry.Rating != nil {
		row.LocalRating = ratingDisplay(entry.Rating.Score, entry.Rating.RatedAt)
	}

	row.RemoteRating = "-"
	row.Conflict = "-"
	if res != nil && res.Remote != nil && res.Remote.Rating != 0 {
		row.RemoteRating = ratingDisplay(res.Remote.Rating, res.Remote.RatedAt)
	}
	if res != nil && res.RatingConflict {
		row.HasConflict = true
		if res.KeepLocalRating {
			row.Conflict = "keep local"
		} else {
			row.Conflict = "keep Trakt"
		}
	}

	return row
}

// StatusClass returns the CSS class for the status cell.
func (r Row) StatusClass() string {
	switch r.Status {
	case "unmapped":
		return "status-unmapped"
	case "new":
		return "status-new"
	default:
		return "status-mapped"
	}
}

func ratingDisplay(score int, at time.Time) string {
	if at.IsZero() {
		return strconv.Itoa(score)
	}
	return fmt.Sprintf("%d (%s)", score, at.Format("2006-01"))
}

func status(entry *types.AnimeEntry, res *types.Resolution) string {
	if !entry.IsMapped() {
		return "unmapped"
	}
	if res != nil {
		if res.IsNew() {
			return "new"
		}
		if !res.RatingConflict && len(res.EpisodesToSync) == 0 {
			return "synced"
		}
		return "to sync"
	}
	return "mapped"
}

func buildLinks(entry *types.AnimeEntry) []Link {
	links := []Link{
		{Name: "anidb", URL: "https://anidb.net/anime/" + strconv.Itoa(entry.AniDBID)},
	}
	if entry.Mapped == nil {
		return links
	}

	ids := entry.Mapped
	if ids.TVDBID != 0 {
		links = append(links, Link{"tvdb", "https://thetvdb.com/dereferrer/series/" + strconv.Itoa(ids.TVDBID)})
	}
	if ids.IMDBID != "" {
		links = append(links, Link{"imdb", "https://www.imdb.com/title/" + ids.IMDBID})
	}
	if ids.TMDBMovieID != 0 {
		links = append(links, Link{"tmdb", "https://www.themoviedb.org/movie/" + strconv.Itoa(ids.TMDBMovieID)})
	} else if ids.TMDBShowID != 0 {
		links = append(links, Link{"tmdb", "https://www.themoviedb.org/tv/" + strconv.Itoa(ids.TMDBShowID)})
	}

	kind := "shows"
	if entry.IsMovie() {
		kind = "movies"
	}
	links = append(links, Link{
		"trakt",
		fmt.Sprintf("https://trakt.tv/search/%s?query=%s", kind, url.QueryEscape(entry.DisplayTitle())),
	})
	return links
}

// WriteCSV writes the review table as CSV.
func WriteCSV(rows []Row, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, CSVFile)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"Title", "Title (Romaji)", "Type", "AniDB ID",
		"AniDB Rating", "Trakt Rating", "Conflict",
		"Watched Episodes", "Status", "AniDB URL",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, row := range rows {
		record := []string{
			row.Title, row.TitleRomaji, row.Type, strconv.Itoa(row.AniDBID),
			row.LocalRating, row.RemoteRating, row.Conflict,
			row.Episodes, row.Status, row.Links[0].URL,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write CSV report: %w", err)
	}
	logger.Info("wrote CSV report", "path", path, "rows", len(rows))
	return path, nil
}

// WriteUnmapped writes the unmapped entries as JSON for manual review.
func WriteUnmapped(unmapped []types.AnimeEntry, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, UnmappedFile)

	type unmappedEntry struct {
		AniDBID  int    `json:"anidb_id"`
		Title    string `json:"title"`
		Romaji   string `json:"title_romaji,omitempty"`
		Type     string `json:"type"`
		Episodes int    `json:"total_episodes,omitempty"`
		Watched  int    `json:"watched_episodes"`
		Rating   int    `json:"rating,omitempty"`
		URL      string `json:"anidb_url"`
	}

	out := make([]unmappedEntry, 0, len(unmapped))
	for _, e := range unmapped {
		item := unmappedEntry{
			AniDBID:  e.AniDBID,
			Title:    e.DisplayTitle(),
			Romaji:   e.Title,
			Type:     e.Type.String(),
			Episodes: e.TotalEpisodes,
			Watched:  len(e.Episodes),
			URL:      "https://anidb.net/anime/" + strconv.Itoa(e.AniDBID),
		}
		if e.Rating != nil {
			item.Rating = e.Rating.Score
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})

	if err := writeJSON(path, out); err != nil {
		return "", err
	}
	logger.Info("wrote unmapped report", "path", path, "entries", len(out))
	return path, nil
}

// WritePayloads exports the generated sync payloads so users can inspect (or
// manually submit) exactly what would be sent.
func WritePayloads(history trakt.HistoryPayload, ratings trakt.RatingsPayload, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var paths []string
	if !history.Empty() {
		path := filepath.Join(dir, HistoryFile)
		if err := writeJSON(path, history); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	if !ratings.Empty() {
		path := filepath.Join(dir, RatingsFile)
		if err := writeJSON(path, ratings); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
