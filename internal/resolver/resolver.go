// Package resolver decides what to submit for each anime by comparing local
// export data against the user's existing Trakt records.
//
// The rules are conservative: ratings keep whichever side was set first, and
// watch history only ever grows. Nothing is removed from the remote side.
package resolver

import (
	"time"

	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/mapper"
	"github.com/mydehq/anitrakt/internal/types"
)

// RemoteLookup returns the existing Trakt record for an entry, or nil when
// there is none.
type RemoteLookup func(*types.AnimeEntry) *types.TraktEntry

// Resolve compares each mapped entry against its remote record. Unmapped
// entries are skipped; the caller routes them separately.
func Resolve(entries []types.AnimeEntry, lookup RemoteLookup) []types.Resolution {
	resolutions := make([]types.Resolution, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		if !entry.IsMapped() {
			continue
		}
		var remote *types.TraktEntry
		if lookup != nil {
			remote = lookup(entry)
		}
		resolutions = append(resolutions, ResolveOne(entry, remote))
	}
	logger.Debug("resolved entries against remote state", "count", len(resolutions))
	return resolutions
}

// ResolveOne builds the resolution for a single entry. It is pure: no I/O,
// no mutation of its inputs beyond attaching the results.
func ResolveOne(entry *types.AnimeEntry, remote *types.TraktEntry) types.Resolution {
	res := types.Resolution{Entry: entry, Remote: remote}

	if entry.Rating != nil {
		if remote != nil && remote.Rating != 0 {
			res.RatingConflict = entry.Rating.Score != remote.Rating
			if res.RatingConflict {
				res.KeepLocalRating = olderRatingWins(entry.Rating.RatedAt, remote.RatedAt)
			}
		} else {
			res.KeepLocalRating = true
		}
	}

	res.EpisodesToSync = missingEpisodes(entry, remote)
	return res
}

// olderRatingWins reports whether the local rating should replace the remote
// one. The earlier timestamp wins; a side with a timestamp beats a side
// without one; two undated ratings keep the remote (no-op).
func olderRatingWins(local, remote time.Time) bool {
	if !local.IsZero() && !remote.IsZero() {
		return local.Before(remote)
	}
	return !local.IsZero()
}

// missingEpisodes returns the watched episodes not yet present remotely,
// compared in destination season/episode numbering. With no remote record
// everything qualifies.
func missingEpisodes(entry *types.AnimeEntry, remote *types.TraktEntry) []types.WatchedEpisode {
	if len(entry.Episodes) == 0 {
		return nil
	}

	// A watched movie needs no further history.
	if entry.IsMovie() && remote != nil && len(remote.Watched) > 0 {
		return nil
	}

	var missing []types.WatchedEpisode
	for _, ep := range entry.Episodes {
		if remote != nil && !entry.IsMovie() {
			ref := mapper.EpisodeTarget(ep, entry.Mapped)
			if remote.Watched[ref] {
				continue
			}
		}
		missing = append(missing, ep)
	}
	return missing
}
