// Package syncer is the batch submission engine: it turns resolutions into
// Trakt sync payloads, submits them in order, and checkpoints progress so an
// interrupted run can resume without resubmitting completed batches.
package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/trakt"
	"github.com/mydehq/anitrakt/internal/types"
)

const (
	// BatchSize is the number of items submitted per sync call.
	BatchSize = 50

	// MaxConsecutiveFailures aborts the run when this many batches fail
	// back to back.
	MaxConsecutiveFailures = 3

	failedBatchesFile = "failed_batches.json"
)

// API is the slice of the Trakt client the engine needs.
type API interface {
	SyncRatings(ctx context.Context, payload trakt.RatingsPayload) (*trakt.SyncResponse, error)
	SyncHistory(ctx context.Context, payload trakt.HistoryPayload) (*trakt.SyncResponse, error)
}

// Options controls one sync run.
type Options struct {
	Ratings bool
	History bool
	DryRun  bool

	// Resume picks up from an existing checkpoint. Fingerprint must match
	// the checkpoint's unless OverrideFingerprint is set.
	Resume              bool
	OverrideFingerprint bool
	Fingerprint         string
	CheckpointPath      string

	// RemoteDeduped marks resolutions built against freshly fetched remote
	// state. Batches the prior run completed are then already excluded
	// from the payload, so the checkpoint's batch counters no longer line
	// up with it; a resume still validates the fingerprint but submits
	// from the first batch.
	RemoteDeduped bool

	// OutputDir receives failed_batches.json when batches fail.
	OutputDir string
}

// FailedBatch is one batch that could not be submitted, preserved for manual
// replay.
type FailedBatch struct {
	Type    string                `json:"type"` // "ratings" or "history"
	Ratings *trakt.RatingsPayload `json:"ratings,omitempty"`
	History *trakt.HistoryPayload `json:"history,omitempty"`
}

// Syncer submits resolutions to Trakt in ordered batches.
type Syncer struct {
	api         API
	batchSize   int
	maxFailures int
}

// New returns a syncer with production batch settings.
func New(a API) *Syncer {
	return &Syncer{api: a, batchSize: BatchSize, maxFailures: MaxConsecutiveFailures}
}

// Sync runs the whole submission. Batches go out strictly in order, one at a
// time; the checkpoint only ever records fully completed batches. The
// returned result is valid even when err is non-nil.
func (s *Syncer) Sync(ctx context.Context, resolutions []types.Resolution, opts Options) (*types.SyncResult, error) {
	result := &types.SyncResult{DryRun: opts.DryRun}
	countExisting(resolutions, result)

	var ratings trakt.RatingsPayload
	var history trakt.HistoryPayload
	if opts.Ratings {
		ratings = BuildRatings(resolutions)
	}
	if opts.History {
		history = BuildHistory(resolutions)
	}

	if opts.DryRun {
		result.RatingsAdded = ratings.Count()
		result.HistoryAdded = history.EpisodeCount() + len(history.Movies)
		logger.Info("dry run, nothing submitted",
			"ratings", result.RatingsAdded, "episodes", history.EpisodeCount(), "movies", len(history.Movies))
		return result, nil
	}

	cp, err := s.prepareCheckpoint(opts)
	if err != nil {
		return result, err
	}

	var failed []FailedBatch
	defer func() {
		if err := s.writeFailedBatches(failed, opts.OutputDir); err != nil {
			logger.Warn("failed to save failed batches", "error", err)
		}
		result.FailedBatches = len(failed)
	}()

	if !ratings.Empty() {
		if err := s.syncRatings(ctx, ratings, cp, opts, result, &failed); err != nil {
			return result, err
		}
	}
	if !history.Empty() {
		if err := s.syncHistory(ctx, history, cp, opts, result, &failed); err != nil {
			return result, err
		}
	}

	if err := RemoveCheckpoint(opts.CheckpointPath); err != nil {
		logger.Warn("failed to remove checkpoint", "error", err)
	}
	return result, nil
}

// prepareCheckpoint loads or initializes the checkpoint for this run.
func (s *Syncer) prepareCheckpoint(opts Options) (*types.Checkpoint, error) {
	fresh := &types.Checkpoint{Fingerprint: opts.Fingerprint}

	if opts.CheckpointPath == "" {
		return fresh, nil
	}

	cp, err := LoadCheckpoint(opts.CheckpointPath)
	if err != nil {
		return nil, err
	}
	if cp == nil || !opts.Resume {
		return fresh, nil
	}

	if cp.Fingerprint != opts.Fingerprint {
		if !opts.OverrideFingerprint {
			return nil, types.ErrCheckpointMismatch{Path: opts.CheckpointPath}
		}
		logger.Warn("checkpoint fingerprint mismatch overridden, starting fresh")
		return fresh, nil
	}

	if opts.RemoteDeduped {
		logger.Info("resuming against refreshed remote state, submitting all remaining batches",
			"written", cp.Timestamp)
		return fresh, nil
	}

	logger.Info("resuming from checkpoint",
		"ratings_batches", cp.RatingsBatches, "history_batches", cp.HistoryBatches,
		"written", cp.Timestamp)
	return cp, nil
}

func (s *Syncer) syncRatings(ctx context.Context, payload trakt.RatingsPayload, cp *types.Checkpoint, opts Options, result *types.SyncResult, failed *[]FailedBatch) error {
	batches := ratingsBatches(payload, s.batchSize)
	consecutive := 0

	for i, batch := range batches {
		if i < cp.RatingsBatches {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := s.api.SyncRatings(ctx, batch)
		if err != nil {
			consecutive++
			*failed = append(*failed, FailedBatch{Type: "ratings", Ratings: &batch})
			result.Errors = append(result.Errors, fmt.Sprintf("ratings batch %d/%d: %v", i+1, len(batches), err))
			logger.Error("ratings batch failed",
				"batch", i+1, "total", len(batches), "consecutive", consecutive, "error", err)
			if consecutive >= s.maxFailures {
				result.Aborted = true
				return types.ErrSyncAborted{Failures: consecutive}
			}
			continue
		}

		consecutive = 0
		result.RatingsAdded += resp.Added.Shows + resp.Added.Movies
		logger.Info("ratings batch submitted",
			"batch", i+1, "total", len(batches), "added", resp.Added.Shows+resp.Added.Movies)

		cp.RatingsBatches = i + 1
		if err := s.saveProgress(cp, opts); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) syncHistory(ctx context.Context, payload trakt.HistoryPayload, cp *types.Checkpoint, opts Options, result *types.SyncResult, failed *[]FailedBatch) error {
	batches := historyBatches(payload, s.batchSize)
	consecutive := 0

	for i, batch := range batches {
		if i < cp.HistoryBatches {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := s.api.SyncHistory(ctx, batch)
		if err != nil {
			consecutive++
			*failed = append(*failed, FailedBatch{Type: "history", History: &batch})
			result.Errors = append(result.Errors, fmt.Sprintf("history batch %d/%d: %v", i+1, len(batches), err))
			logger.Error("history batch failed",
				"batch", i+1, "total", len(batches), "consecutive", consecutive, "error", err)
			if consecutive >= s.maxFailures {
				result.Aborted = true
				return types.ErrSyncAborted{Failures: consecutive}
			}
			continue
		}

		consecutive = 0
		result.HistoryAdded += resp.Added.Episodes + resp.Added.Movies
		logger.Info("history batch submitted",
			"batch", i+1, "total", len(batches),
			"episodes", resp.Added.Episodes, "movies", resp.Added.Movies)

		cp.HistoryBatches = i + 1
		if err := s.saveProgress(cp, opts); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) saveProgress(cp *types.Checkpoint, opts Options) error {
	if opts.CheckpointPath == "" {
		return nil
	}
	return SaveCheckpoint(cp, opts.CheckpointPath)
}

// countExisting attributes the entries that need no submission: ratings kept
// on the remote side and episodes already present remotely.
func countExisting(resolutions []types.Resolution, result *types.SyncResult) {
	for _, res := range resolutions {
		if res.Entry.Rating != nil && !res.KeepLocalRating {
			result.RatingsExisting++
			if res.RatingConflict {
				result.Skipped++
			}
		}
		already := len(res.Entry.Episodes) - len(res.EpisodesToSync)
		if already > 0 {
			result.HistoryExisting += already
		}
	}
}

func (s *Syncer) writeFailedBatches(failed []FailedBatch, outputDir string) error {
	if len(failed) == 0 || outputDir == "" {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	path := filepath.Join(outputDir, failedBatchesFile)
	data, err := json.MarshalIndent(failed, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	logger.Info("saved failed batches for replay", "count", len(failed), "path", path)
	return nil
}
