package syncer

import (
	"sort"
	"time"

	"github.com/mydehq/anitrakt/internal/mapper"
	"github.com/mydehq/anitrakt/internal/trakt"
	"github.com/mydehq/anitrakt/internal/types"
)

// traktTime is the timestamp format the sync endpoints accept.
const traktTime = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(traktTime)
}

// BuildRatings assembles the ratings payload from resolutions. Only entries
// whose local rating won (or had no opposition) are included.
func BuildRatings(resolutions []types.Resolution) trakt.RatingsPayload {
	var payload trakt.RatingsPayload

	for _, res := range resolutions {
		entry := res.Entry
		if entry.Rating == nil || !res.KeepLocalRating {
			continue
		}

		item := trakt.RatingItem{
			IDs:     entry.Mapped.TraktIDs(),
			Rating:  entry.Rating.Score,
			RatedAt: formatTime(entry.Rating.RatedAt),
		}
		if entry.IsMovie() {
			payload.Movies = append(payload.Movies, item)
		} else {
			payload.Shows = append(payload.Shows, item)
		}
	}
	return payload
}

// BuildHistory assembles the watch-history payload from resolutions. Only
// episodes absent from the remote record are included; movies carry their
// earliest watch date.
func BuildHistory(resolutions []types.Resolution) trakt.HistoryPayload {
	var payload trakt.HistoryPayload

	for _, res := range resolutions {
		entry := res.Entry
		if len(res.EpisodesToSync) == 0 {
			continue
		}

		if entry.IsMovie() {
			payload.Movies = append(payload.Movies, buildMovieHistory(entry, res.EpisodesToSync))
		} else {
			payload.Shows = append(payload.Shows, buildShowHistory(entry, res.EpisodesToSync))
		}
	}
	return payload
}

func buildMovieHistory(entry *types.AnimeEntry, eps []types.WatchedEpisode) trakt.HistoryMovie {
	var earliest time.Time
	for _, ep := range eps {
		if !ep.WatchedAt.IsZero() && (earliest.IsZero() || ep.WatchedAt.Before(earliest)) {
			earliest = ep.WatchedAt
		}
	}
	return trakt.HistoryMovie{
		IDs:       entry.Mapped.TraktIDs(),
		WatchedAt: formatTime(earliest),
	}
}

func buildShowHistory(entry *types.AnimeEntry, eps []types.WatchedEpisode) trakt.HistoryShow {
	bySeason := map[int][]trakt.HistoryEpisode{}
	for _, ep := range eps {
		ref := mapper.EpisodeTarget(ep, entry.Mapped)
		bySeason[ref.Season] = append(bySeason[ref.Season], trakt.HistoryEpisode{
			Number:    ref.Episode,
			WatchedAt: formatTime(ep.WatchedAt),
		})
	}

	seasons := make([]trakt.HistorySeason, 0, len(bySeason))
	for num, episodes := range bySeason {
		seasons = append(seasons, trakt.HistorySeason{Number: num, Episodes: episodes})
	}
	sort.Slice(seasons, func(i, j int) bool { return seasons[i].Number < seasons[j].Number })

	return trakt.HistoryShow{
		IDs:     entry.Mapped.TraktIDs(),
		Seasons: seasons,
	}
}

// ratingsBatches splits the ratings payload into submission batches. Shows
// and movies are flattened into one sequence so every batch is full except
// possibly the last.
func ratingsBatches(payload trakt.RatingsPayload, size int) []trakt.RatingsPayload {
	type tagged struct {
		item  trakt.RatingItem
		movie bool
	}
	all := make([]tagged, 0, payload.Count())
	for _, item := range payload.Shows {
		all = append(all, tagged{item: item})
	}
	for _, item := range payload.Movies {
		all = append(all, tagged{item: item, movie: true})
	}

	var batches []trakt.RatingsPayload
	for i := 0; i < len(all); i += size {
		end := i + size
		if end > len(all) {
			end = len(all)
		}
		var batch trakt.RatingsPayload
		for _, t := range all[i:end] {
			if t.movie {
				batch.Movies = append(batch.Movies, t.item)
			} else {
				batch.Shows = append(batch.Shows, t.item)
			}
		}
		batches = append(batches, batch)
	}
	return batches
}

// historyBatches splits the history payload into submission batches. A show
// entry is never split across batches, so one batch holds at most size
// shows or size movies.
func historyBatches(payload trakt.HistoryPayload, size int) []trakt.HistoryPayload {
	var batches []trakt.HistoryPayload

	for i := 0; i < len(payload.Shows); i += size {
		end := i + size
		if end > len(payload.Shows) {
			end = len(payload.Shows)
		}
		batches = append(batches, trakt.HistoryPayload{Shows: payload.Shows[i:end]})
	}
	for i := 0; i < len(payload.Movies); i += size {
		end := i + size
		if end > len(payload.Movies) {
			end = len(payload.Movies)
		}
		batches = append(batches, trakt.HistoryPayload{Movies: payload.Movies[i:end]})
	}
	return batches
}
