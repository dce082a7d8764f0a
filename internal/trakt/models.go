package trakt

import (
	json "github.com/goccy/go-json"

	"github.com/mydehq/anitrakt/internal/types"
)

// Sync payload shapes, matching POST /sync/history and /sync/ratings.

type HistoryEpisode struct {
	Number    int    `json:"number"`
	WatchedAt string `json:"watched_at,omitempty"`
}

type HistorySeason struct {
	Number   int              `json:"number"`
	Episodes []HistoryEpisode `json:"episodes"`
}

type HistoryShow struct {
	IDs     types.TraktIDs  `json:"ids"`
	Seasons []HistorySeason `json:"seasons"`
}

type HistoryMovie struct {
	IDs       types.TraktIDs `json:"ids"`
	WatchedAt string         `json:"watched_at,omitempty"`
}

type HistoryPayload struct {
	Shows  []HistoryShow  `json:"shows,omitempty"`
	Movies []HistoryMovie `json:"movies,omitempty"`
}

// Empty reports whether the payload has nothing to submit.
func (p HistoryPayload) Empty() bool {
	return len(p.Shows) == 0 && len(p.Movies) == 0
}

// EpisodeCount returns the number of episode records across all shows.
func (p HistoryPayload) EpisodeCount() int {
	n := 0
	for _, s := range p.Shows {
		for _, season := range s.Seasons {
			n += len(season.Episodes)
		}
	}
	return n
}

type RatingItem struct {
	IDs     types.TraktIDs `json:"ids"`
	Rating  int            `json:"rating"`
	RatedAt string         `json:"rated_at,omitempty"`
}

type RatingsPayload struct {
	Shows  []RatingItem `json:"shows,omitempty"`
	Movies []RatingItem `json:"movies,omitempty"`
}

func (p RatingsPayload) Empty() bool {
	return len(p.Shows) == 0 && len(p.Movies) == 0
}

func (p RatingsPayload) Count() int {
	return len(p.Shows) + len(p.Movies)
}

// SyncResponse is the summary Trakt returns for a sync submission.
type SyncResponse struct {
	Added    SyncCounts   `json:"added"`
	Updated  SyncCounts   `json:"updated"`
	Existing SyncCounts   `json:"existing"`
	NotFound SyncNotFound `json:"not_found"`
}

type SyncCounts struct {
	Shows    int `json:"shows"`
	Seasons  int `json:"seasons"`
	Episodes int `json:"episodes"`
	Movies   int `json:"movies"`
}

type SyncNotFound struct {
	Shows    []json.RawMessage `json:"shows"`
	Movies   []json.RawMessage `json:"movies"`
	Episodes []json.RawMessage `json:"episodes"`
}

// Read-side shapes for /users/me endpoints.

type ExternalIDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
}

type ShowRef struct {
	Title string      `json:"title"`
	Year  int         `json:"year,omitempty"`
	IDs   ExternalIDs `json:"ids"`
}

type MovieRef struct {
	Title string      `json:"title"`
	Year  int         `json:"year,omitempty"`
	IDs   ExternalIDs `json:"ids"`
}

// RatedItem is one element of /users/me/ratings/{shows,movies}.
type RatedItem struct {
	Rating  int       `json:"rating"`
	RatedAt string    `json:"rated_at"`
	Show    *ShowRef  `json:"show,omitempty"`
	Movie   *MovieRef `json:"movie,omitempty"`
}

// WatchedItem is one element of /users/me/watched/{shows,movies}.
type WatchedItem struct {
	Plays   int             `json:"plays"`
	Show    *ShowRef        `json:"show,omitempty"`
	Movie   *MovieRef       `json:"movie,omitempty"`
	Seasons []WatchedSeason `json:"seasons,omitempty"`
}

type WatchedSeason struct {
	Number   int              `json:"number"`
	Episodes []WatchedEpisode `json:"episodes"`
}

type WatchedEpisode struct {
	Number int `json:"number"`
	Plays  int `json:"plays"`
}

// UserProfile is the authenticated user, from /users/me.
type UserProfile struct {
	Username string      `json:"username"`
	Name     string      `json:"name,omitempty"`
	Private  bool        `json:"private"`
	VIP      bool        `json:"vip"`
	IDs      ExternalIDs `json:"ids"`
}
