package trakt

import (
	"context"
	"strconv"
	"time"

	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/types"
)

// Fetcher downloads the user's existing ratings and watch state and indexes
// them for per-anime lookup. Entries are keyed by "show_<tvdb>" or
// "movie_<tmdb>", matching how mapped anime address their remote records.
type Fetcher struct {
	client *Client

	ratings map[string]remoteRating
	watched map[string]remoteWatched
	fetched bool
}

type remoteRating struct {
	traktID int
	title   string
	rating  int
	ratedAt time.Time
}

type remoteWatched struct {
	traktID  int
	title    string
	episodes map[types.EpisodeRef]bool
	plays    int
}

// NewFetcher returns a fetcher bound to an authenticated client.
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{
		client:  client,
		ratings: map[string]remoteRating{},
		watched: map[string]remoteWatched{},
	}
}

// Fetch loads ratings and watch state from Trakt. Individual endpoint
// failures are logged and tolerated: a missing view of remote state means
// more data gets resubmitted, which the additive sync absorbs.
func (f *Fetcher) Fetch(ctx context.Context) error {
	if !f.client.IsAuthenticated() {
		return types.ErrNotAuthenticated{}
	}
	if f.fetched {
		return nil
	}

	logger.Info("fetching existing Trakt data")

	if items, err := f.client.UserRatings(ctx, "shows"); err != nil {
		logger.Warn("failed to fetch show ratings", "error", err)
	} else {
		for _, item := range items {
			if item.Show == nil || item.Show.IDs.TVDB == 0 {
				continue
			}
			f.ratings["show_"+strconv.Itoa(item.Show.IDs.TVDB)] = remoteRating{
				traktID: item.Show.IDs.Trakt,
				title:   item.Show.Title,
				rating:  item.Rating,
				ratedAt: parseISO(item.RatedAt),
			}
		}
	}

	if items, err := f.client.UserRatings(ctx, "movies"); err != nil {
		logger.Warn("failed to fetch movie ratings", "error", err)
	} else {
		for _, item := range items {
			if item.Movie == nil || item.Movie.IDs.TMDB == 0 {
				continue
			}
			f.ratings["movie_"+strconv.Itoa(item.Movie.IDs.TMDB)] = remoteRating{
				traktID: item.Movie.IDs.Trakt,
				title:   item.Movie.Title,
				rating:  item.Rating,
				ratedAt: parseISO(item.RatedAt),
			}
		}
	}

	if items, err := f.client.UserWatched(ctx, "shows"); err != nil {
		logger.Warn("failed to fetch watched shows", "error", err)
	} else {
		for _, item := range items {
			if item.Show == nil || item.Show.IDs.TVDB == 0 {
				continue
			}
			eps := map[types.EpisodeRef]bool{}
			for _, season := range item.Seasons {
				for _, ep := range season.Episodes {
					eps[types.EpisodeRef{Season: season.Number, Episode: ep.Number}] = true
				}
			}
			f.watched["show_"+strconv.Itoa(item.Show.IDs.TVDB)] = remoteWatched{
				traktID:  item.Show.IDs.Trakt,
				title:    item.Show.Title,
				episodes: eps,
			}
		}
	}

	if items, err := f.client.UserWatched(ctx, "movies"); err != nil {
		logger.Warn("failed to fetch watched movies", "error", err)
	} else {
		for _, item := range items {
			if item.Movie == nil || item.Movie.IDs.TMDB == 0 {
				continue
			}
			f.watched["movie_"+strconv.Itoa(item.Movie.IDs.TMDB)] = remoteWatched{
				traktID: item.Movie.IDs.Trakt,
				title:   item.Movie.Title,
				plays:   item.Plays,
			}
		}
	}

	f.fetched = true
	logger.Info("loaded remote state", "ratings", len(f.ratings), "watched", len(f.watched))
	return nil
}

// Existing returns the remote record for a mapped entry, or nil when Trakt
// has none.
func (f *Fetcher) Existing(entry *types.AnimeEntry) *types.TraktEntry {
	if entry.Mapped == nil {
		return nil
	}

	var key string
	switch {
	case entry.IsMovie() && entry.Mapped.TMDBMovieID != 0:
		key = "movie_" + strconv.Itoa(entry.Mapped.TMDBMovieID)
	case entry.Mapped.TVDBID != 0:
		key = "show_" + strconv.Itoa(entry.Mapped.TVDBID)
	default:
		return nil
	}

	rating, hasRating := f.ratings[key]
	watched, hasWatched := f.watched[key]
	if !hasRating && !hasWatched {
		return nil
	}

	remote := &types.TraktEntry{IsMovie: entry.IsMovie()}
	if hasRating {
		remote.TraktID = rating.traktID
		remote.Title = rating.title
		remote.Rating = rating.rating
		remote.RatedAt = rating.ratedAt
	}
	if hasWatched {
		if remote.TraktID == 0 {
			remote.TraktID = watched.traktID
		}
		if remote.Title == "" {
			remote.Title = watched.title
		}
		remote.Watched = watched.episodes
		if remote.IsMovie && watched.plays > 0 {
			// A watched movie is modeled as the single "episode" 0x0 so the
			// resolver can treat shows and movies uniformly.
			remote.Watched = map[types.EpisodeRef]bool{{}: true}
		}
	}
	return remote
}

// parseISO parses Trakt's ISO 8601 timestamps. Failures return the zero time.
func parseISO(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
