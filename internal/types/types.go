// Package types defines core domain types used throughout anitrakt.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AnimeType represents the AniDB anime type code.
type AnimeType int

const (
	AnimeUnknown   AnimeType = 0
	AnimeTV        AnimeType = 2
	AnimeOVA       AnimeType = 3
	AnimeMovie     AnimeType = 4
	AnimeWeb       AnimeType = 6
	AnimeTVSpecial AnimeType = 7
)

func (t AnimeType) String() string {
	switch t {
	case AnimeTV:
		return "TV"
	case AnimeOVA:
		return "OVA"
	case AnimeMovie:
		return "Movie"
	case AnimeWeb:
		return "Web"
	case AnimeTVSpecial:
		return "TV Special"
	}
	return "Unknown"
}

// ParseAnimeType converts an AniDB type code string to an AnimeType.
// Unrecognized codes map to AnimeUnknown.
func ParseAnimeType(code string) AnimeType {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return AnimeUnknown
	}
	switch AnimeType(n) {
	case AnimeTV, AnimeOVA, AnimeMovie, AnimeWeb, AnimeTVSpecial:
		return AnimeType(n)
	}
	return AnimeUnknown
}

// EpisodeKind classifies an episode by its AniDB numbering prefix.
type EpisodeKind int

const (
	KindRegular EpisodeKind = iota // no prefix
	KindSpecial                    // S
	KindCredits                    // C
	KindTrailer                    // T
	KindParody                     // P
	KindOther                      // O
)

var kindPrefixes = map[byte]EpisodeKind{
	'S': KindSpecial,
	'C': KindCredits,
	'T': KindTrailer,
	'P': KindParody,
	'O': KindOther,
}

var kindDisplay = map[EpisodeKind]string{
	KindRegular: "",
	KindSpecial: "S",
	KindCredits: "C",
	KindTrailer: "T",
	KindParody:  "P",
	KindOther:   "O",
}

func (k EpisodeKind) String() string {
	if s, ok := kindDisplay[k]; ok && s != "" {
		return s
	}
	if k == KindRegular {
		return "regular"
	}
	return "unknown"
}

// IsSpecial reports whether the episode is anything other than a regular
// numbered episode. All such episodes land in season 0 on Trakt/TVDB.
func (k EpisodeKind) IsSpecial() bool {
	return k != KindRegular
}

// ParseEpisodeNumber parses an AniDB episode string like "1", "S1" or "C2"
// into its number and kind.
func ParseEpisodeNumber(s string) (int, EpisodeKind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, KindRegular, fmt.Errorf("empty episode number")
	}

	kind := KindRegular
	if k, ok := kindPrefixes[s[0]]; ok {
		kind = k
		s = s[1:]
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, KindRegular, fmt.Errorf("invalid episode number: %q", s)
	}
	return n, kind, nil
}

// WatchedEpisode is a single watched episode with its watch date.
// A zero WatchedAt means the export carried no view date.
type WatchedEpisode struct {
	Number    int         `json:"number"`
	Kind      EpisodeKind `json:"kind"`
	WatchedAt time.Time   `json:"watched_at,omitempty"`
}

// Display returns the AniDB display form, e.g. "12" or "S1".
func (e WatchedEpisode) Display() string {
	return kindDisplay[e.Kind] + strconv.Itoa(e.Number)
}

// AnimeRating is the user's vote for an anime.
type AnimeRating struct {
	Score     int       `json:"score"` // 1-10
	RatedAt   time.Time `json:"rated_at,omitempty"`
	Temporary bool      `json:"temporary,omitempty"` // from MyTempVote
}

// MappedIDs holds the Trakt-compatible external IDs for an anime, plus the
// season/offset corrections applied when AniDB and TVDB numbering diverge.
type MappedIDs struct {
	TVDBID            int    `json:"tvdb_id,omitempty"`
	IMDBID            string `json:"imdb_id,omitempty"`
	TMDBShowID        int    `json:"tmdb_show_id,omitempty"`
	TMDBMovieID       int    `json:"tmdb_movie_id,omitempty"`
	TVDBSeason        int    `json:"tvdb_season"`
	TVDBEpisodeOffset int    `json:"tvdb_epoffset"`
}

// HasAnyID reports whether at least one destination ID slot is populated.
// Entries without any ID are unmapped and must never be submitted.
func (m MappedIDs) HasAnyID() bool {
	return m.TVDBID != 0 || m.IMDBID != "" || m.TMDBShowID != 0 || m.TMDBMovieID != 0
}

// IsMovie reports whether the entry should be submitted as a movie.
func (m MappedIDs) IsMovie() bool {
	return m.TMDBMovieID != 0 && m.TVDBID == 0
}

// TraktIDs returns the IDs in Trakt API format, preferring tvdb > imdb > tmdb.
type TraktIDs struct {
	TVDB int    `json:"tvdb,omitempty"`
	IMDB string `json:"imdb,omitempty"`
	TMDB int    `json:"tmdb,omitempty"`
}

func (m MappedIDs) TraktIDs() TraktIDs {
	ids := TraktIDs{}
	if m.TVDBID != 0 {
		ids.TVDB = m.TVDBID
	}
	if m.IMDBID != "" {
		ids.IMDB = m.IMDBID
	}
	if m.TVDBID == 0 {
		if m.TMDBMovieID != 0 {
			ids.TMDB = m.TMDBMovieID
		} else if m.TMDBShowID != 0 {
			ids.TMDB = m.TMDBShowID
		}
	}
	return ids
}

// AnimeEntry is one anime record from an AniDB export.
type AnimeEntry struct {
	AniDBID       int              `json:"anidb_id"`
	Title         string           `json:"title"`
	TitleEnglish  string           `json:"title_english,omitempty"`
	Type          AnimeType        `json:"type"`
	TotalEpisodes int              `json:"total_episodes,omitempty"`
	TotalSpecials int              `json:"total_specials,omitempty"`
	Episodes      []WatchedEpisode `json:"episodes,omitempty"`
	Rating        *AnimeRating     `json:"rating,omitempty"`
	Restricted    bool             `json:"restricted,omitempty"`
	Mapped        *MappedIDs       `json:"mapped,omitempty"`
}

// DisplayTitle returns the English title when available.
func (a *AnimeEntry) DisplayTitle() string {
	if a.TitleEnglish != "" {
		return a.TitleEnglish
	}
	return a.Title
}

// IsMapped reports whether the entry resolved to at least one destination ID.
func (a *AnimeEntry) IsMapped() bool {
	return a.Mapped != nil && a.Mapped.HasAnyID()
}

// IsMovie reports whether the entry is submitted to Trakt as a movie.
func (a *AnimeEntry) IsMovie() bool {
	if a.Type == AnimeMovie {
		return true
	}
	return a.Mapped != nil && a.Mapped.IsMovie()
}

// EpisodeRef identifies one episode within a show by destination numbering.
type EpisodeRef struct {
	Season  int
	Episode int
}

// TraktEntry is an existing record fetched from Trakt for comparison.
type TraktEntry struct {
	TraktID int
	Title   string
	Rating  int
	RatedAt time.Time
	Watched map[EpisodeRef]bool
	IsMovie bool
}

// Resolution is the outcome of comparing one local entry against its remote
// counterpart. It is constructed purely from the two inputs.
type Resolution struct {
	Entry           *AnimeEntry
	Remote          *TraktEntry
	KeepLocalRating bool
	RatingConflict  bool
	EpisodesToSync  []WatchedEpisode
}

// IsNew reports whether the anime has no record on Trakt yet.
func (r *Resolution) IsNew() bool {
	return r.Remote == nil
}

// Checkpoint records sync progress so an interrupted run can resume.
// Fingerprint ties the checkpoint to one specific input file.
type Checkpoint struct {
	Fingerprint    string    `json:"fingerprint"`
	RatingsBatches int       `json:"ratings_batches"`
	HistoryBatches int       `json:"history_batches"`
	Timestamp      time.Time `json:"timestamp"`
}

// SyncResult summarizes a sync run for reporting. Every entry ends up in
// exactly one of the counted categories; nothing is dropped silently.
type SyncResult struct {
	HistoryAdded    int      `json:"history_added"`
	HistoryExisting int      `json:"history_existing"`
	RatingsAdded    int      `json:"ratings_added"`
	RatingsExisting int      `json:"ratings_existing"`
	Unmapped        int      `json:"unmapped"`
	Skipped         int      `json:"skipped"` // no-op conflict resolutions
	Errors          []string `json:"errors,omitempty"`
	FailedBatches   int      `json:"failed_batches,omitempty"`
	Aborted         bool     `json:"aborted,omitempty"`
	DryRun          bool     `json:"dry_run,omitempty"`
}
