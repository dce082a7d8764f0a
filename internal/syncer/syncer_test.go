package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mydehq/anitrakt/internal/trakt"
	"github.com/mydehq/anitrakt/internal/types"
)

// fakeAPI records submissions and fails on demand.
type fakeAPI struct {
	ratingsCalls []trakt.RatingsPayload
	historyCalls []trakt.HistoryPayload
	failRatings  map[int]error // call index -> error
	failHistory  map[int]error
}

func (f *fakeAPI) SyncRatings(ctx context.Context, p trakt.RatingsPayload) (*trakt.SyncResponse, error) {
	idx := len(f.ratingsCalls)
	f.ratingsCalls = append(f.ratingsCalls, p)
	if err, ok := f.failRatings[idx]; ok {
		return nil, err
	}
	return &trakt.SyncResponse{
		Added: trakt.SyncCounts{Shows: len(p.Shows), Movies: len(p.Movies)},
	}, nil
}

func (f *fakeAPI) SyncHistory(ctx context.Context, p trakt.HistoryPayload) (*trakt.SyncResponse, error) {
	idx := len(f.historyCalls)
	f.historyCalls = append(f.historyCalls, p)
	if err, ok := f.failHistory[idx]; ok {
		return nil, err
	}
	return &trakt.SyncResponse{
		Added: trakt.SyncCounts{Episodes: p.EpisodeCount(), Movies: len(p.Movies)},
	}, nil
}

func makeResolutions(n int) []types.Resolution {
	resolutions := make([]types.Resolution, 0, n)
	for i := 0; i < n; i++ {
		entry := &types.AnimeEntry{
			AniDBID: 1000 + i,
			Title:   fmt.Sprintf("Show %d", i),
			Rating:  &types.AnimeRating{Score: 7, RatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
			Episodes: []types.WatchedEpisode{
				{Number: 1, Kind: types.KindRegular},
			},
			Mapped: &types.MappedIDs{TVDBID: 5000 + i, TVDBSeason: 1},
		}
		resolutions = append(resolutions, types.Resolution{
			Entry:           entry,
			KeepLocalRating: true,
			EpisodesToSync:  entry.Episodes,
		})
	}
	return resolutions
}

func testOpts(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		Ratings:        true,
		History:        true,
		Fingerprint:    "abc123",
		CheckpointPath: filepath.Join(dir, "checkpoint.json"),
		OutputDir:      dir,
	}
}

func TestBatchPartitioning(t *testing.T) {
	api := &fakeAPI{}
	s := New(api)

	opts := testOpts(t)

	// 120 rated shows -> ceil(120/50) = 3 ratings batches; 120 show history
	// entries -> 3 history batches.
	result, err := s.Sync(context.Background(), makeResolutions(120), opts)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if len(api.ratingsCalls) != 3 {
		t.Errorf("ratings batches = %d; want 3", len(api.ratingsCalls))
	}
	for i, call := range api.ratingsCalls {
		want := 50
		if i == 2 {
			want = 20
		}
		if call.Count() != want {
			t.Errorf("ratings batch %d size = %d; want %d", i, call.Count(), want)
		}
	}
	if len(api.historyCalls) != 3 {
		t.Errorf("history batches = %d; want 3", len(api.historyCalls))
	}

	if result.RatingsAdded != 120 || result.HistoryAdded != 120 {
		t.Errorf("added = %d ratings, %d history; want 120, 120", result.RatingsAdded, result.HistoryAdded)
	}

	// Full success removes the checkpoint.
	if _, err := os.Stat(opts.CheckpointPath); !os.IsNotExist(err) {
		t.Error("checkpoint still present after full success")
	}
}

func TestAbortAfterConsecutiveFailures(t *testing.T) {
	apiErr := types.ErrAPIError{Service: "Trakt", StatusCode: 502, Message: "bad gateway"}
	api := &fakeAPI{failRatings: map[int]error{0: apiErr, 1: apiErr, 2: apiErr}}
	s := New(api)
	opts := testOpts(t)

	result, err := s.Sync(context.Background(), makeResolutions(200), opts)
	if err == nil {
		t.Fatal("expected abort error")
	}
	var aborted types.ErrSyncAborted
	if !errors.As(err, &aborted) || aborted.Failures != 3 {
		t.Errorf("error = %v; want ErrSyncAborted with 3 failures", err)
	}
	if !result.Aborted {
		t.Error("result.Aborted = false")
	}
	if len(api.ratingsCalls) != 3 {
		t.Errorf("ratings calls = %d; want exactly 3 before abort", len(api.ratingsCalls))
	}
	if len(api.historyCalls) != 0 {
		t.Errorf("history calls = %d; history must not start after abort", len(api.historyCalls))
	}

	// The failed batches are preserved for replay.
	data, err := os.ReadFile(filepath.Join(opts.OutputDir, failedBatchesFile))
	if err != nil {
		t.Fatalf("failed batches not written: %v", err)
	}
	var failed []FailedBatch
	if err := json.Unmarshal(data, &failed); err != nil {
		t.Fatal(err)
	}
	if len(failed) != 3 || failed[0].Type != "ratings" {
		t.Errorf("failed batches = %+v", failed)
	}
}

func TestFailureCounterResets(t *testing.T) {
	apiErr := types.ErrAPIError{Service: "Trakt", StatusCode: 503, Message: "unavailable"}
	// Failures on calls 0 and 2, but a success in between: never 3 in a row.
	api := &fakeAPI{failRatings: map[int]error{0: apiErr, 2: apiErr}}
	s := New(api)

	result, err := s.Sync(context.Background(), makeResolutions(200), testOpts(t))
	if err != nil {
		t.Fatalf("Sync() error = %v; run should survive isolated failures", err)
	}
	if result.Aborted {
		t.Error("result.Aborted = true")
	}
	if result.FailedBatches != 2 {
		t.Errorf("FailedBatches = %d; want 2", result.FailedBatches)
	}
}

func TestResumeSkipsCompletedBatches(t *testing.T) {
	opts := testOpts(t)
	opts.Resume = true

	// A prior run completed 2 ratings batches and 1 history batch.
	cp := &types.Checkpoint{Fingerprint: opts.Fingerprint, RatingsBatches: 2, HistoryBatches: 1}
	if err := SaveCheckpoint(cp, opts.CheckpointPath); err != nil {
		t.Fatal(err)
	}

	api := &fakeAPI{}
	s := New(api)
	if _, err := s.Sync(context.Background(), makeResolutions(200), opts); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	// 200 entries -> 4 batches per kind; 2 and 3 remain.
	if len(api.ratingsCalls) != 2 {
		t.Errorf("ratings calls = %d; want 2 after resume", len(api.ratingsCalls))
	}
	if len(api.historyCalls) != 3 {
		t.Errorf("history calls = %d; want 3 after resume", len(api.historyCalls))
	}
}

func TestResumeRemoteDedupedSubmitsAllBatches(t *testing.T) {
	opts := testOpts(t)

	// First run: batch 0 lands, then three consecutive failures abort.
	api := &fakeAPI{failRatings: map[int]error{
		1: errors.New("boom"), 2: errors.New("boom"), 3: errors.New("boom"),
	}}
	_, err := New(api).Sync(context.Background(), makeResolutions(200), opts)
	var aborted types.ErrSyncAborted
	if !errors.As(err, &aborted) {
		t.Fatalf("Sync() error = %v; want ErrSyncAborted", err)
	}
	cp, err := LoadCheckpoint(opts.CheckpointPath)
	if err != nil || cp == nil || cp.RatingsBatches != 1 {
		t.Fatalf("checkpoint = %+v, err = %v; want 1 completed ratings batch", cp, err)
	}

	// Second run resumes after refetching remote state: the 50 entries
	// batch 0 submitted are now present remotely and drop out of the
	// resolutions, shifting every batch boundary. The recorded batch count
	// must not be used to skip what was never submitted.
	opts.Resume = true
	opts.RemoteDeduped = true
	remaining := makeResolutions(200)[50:]

	api = &fakeAPI{}
	result, err := New(api).Sync(context.Background(), remaining, opts)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	// 150 entries -> 3 batches per kind, all submitted.
	if len(api.ratingsCalls) != 3 {
		t.Errorf("ratings calls = %d; want 3", len(api.ratingsCalls))
	}
	if got := api.ratingsCalls[0].Shows[0].IDs.TVDB; got != 5050 {
		t.Errorf("first resubmitted show TVDB = %d; want 5050", got)
	}
	if result.RatingsAdded != 150 {
		t.Errorf("RatingsAdded = %d; want 150", result.RatingsAdded)
	}
	if len(api.historyCalls) != 3 {
		t.Errorf("history calls = %d; want 3", len(api.historyCalls))
	}

	if _, err := os.Stat(opts.CheckpointPath); !os.IsNotExist(err) {
		t.Errorf("checkpoint not removed after completed run: %v", err)
	}
}

func TestResumeRemoteDedupedStillChecksFingerprint(t *testing.T) {
	opts := testOpts(t)
	opts.Resume = true
	opts.RemoteDeduped = true

	cp := &types.Checkpoint{Fingerprint: "different", RatingsBatches: 1}
	if err := SaveCheckpoint(cp, opts.CheckpointPath); err != nil {
		t.Fatal(err)
	}

	api := &fakeAPI{}
	_, err := New(api).Sync(context.Background(), makeResolutions(10), opts)
	var mismatch types.ErrCheckpointMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v; want ErrCheckpointMismatch", err)
	}
	if len(api.ratingsCalls) != 0 {
		t.Errorf("ratings calls = %d; want 0", len(api.ratingsCalls))
	}
}

func TestResumeFingerprintMismatch(t *testing.T) {
	opts := testOpts(t)
	opts.Resume = true

	cp := &types.Checkpoint{Fingerprint: "different", RatingsBatches: 1}
	if err := SaveCheckpoint(cp, opts.CheckpointPath); err != nil {
		t.Fatal(err)
	}

	api := &fakeAPI{}
	s := New(api)

	_, err := s.Sync(context.Background(), makeResolutions(10), opts)
	if err == nil {
		t.Fatal("expected fingerprint mismatch error")
	}
	var mismatch types.ErrCheckpointMismatch
	if !errors.As(err, &mismatch) {
		t.Errorf("error type = %T; want ErrCheckpointMismatch", err)
	}
	if len(api.ratingsCalls) != 0 {
		t.Error("batches submitted despite fingerprint mismatch")
	}

	// Explicit override starts fresh instead.
	opts.OverrideFingerprint = true
	if _, err := s.Sync(context.Background(), makeResolutions(10), opts); err != nil {
		t.Fatalf("Sync() with override error = %v", err)
	}
	if len(api.ratingsCalls) != 1 {
		t.Errorf("ratings calls = %d; want 1 fresh batch", len(api.ratingsCalls))
	}
}

func TestDryRunSubmitsNothing(t *testing.T) {
	api := &fakeAPI{}
	s := New(api)
	opts := testOpts(t)
	opts.DryRun = true

	result, err := s.Sync(context.Background(), makeResolutions(30), opts)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(api.ratingsCalls) != 0 || len(api.historyCalls) != 0 {
		t.Error("dry run reached the API")
	}
	if !result.DryRun {
		t.Error("result.DryRun = false")
	}
	if result.RatingsAdded != 30 || result.HistoryAdded != 30 {
		t.Errorf("dry run counts = %d ratings, %d history; want 30, 30", result.RatingsAdded, result.HistoryAdded)
	}
	if _, err := os.Stat(opts.CheckpointPath); !os.IsNotExist(err) {
		t.Error("dry run touched the checkpoint")
	}
}

func TestCancellationPreservesCheckpoint(t *testing.T) {
	opts := testOpts(t)

	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{}
	canceling := &cancelAfter{inner: api, cancel: cancel, after: 1}
	s := New(canceling)

	_, err := s.Sync(ctx, makeResolutions(200), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v; want context.Canceled", err)
	}

	// Only the completed batch is recorded.
	cp, loadErr := LoadCheckpoint(opts.CheckpointPath)
	if loadErr != nil || cp == nil {
		t.Fatalf("checkpoint missing after cancellation: %v", loadErr)
	}
	if cp.RatingsBatches != 1 {
		t.Errorf("RatingsBatches = %d; want 1", cp.RatingsBatches)
	}
}

// cancelAfter cancels the context after n successful ratings calls.
type cancelAfter struct {
	inner  *fakeAPI
	cancel context.CancelFunc
	after  int
}

func (c *cancelAfter) SyncRatings(ctx context.Context, p trakt.RatingsPayload) (*trakt.SyncResponse, error) {
	resp, err := c.inner.SyncRatings(ctx, p)
	if len(c.inner.ratingsCalls) >= c.after {
		c.cancel()
	}
	return resp, err
}

func (c *cancelAfter) SyncHistory(ctx context.Context, p trakt.HistoryPayload) (*trakt.SyncResponse, error) {
	return c.inner.SyncHistory(ctx, p)
}

func TestExistingCounts(t *testing.T) {
	remoteRated := &types.AnimeEntry{
		AniDBID: 1,
		Rating:  &types.AnimeRating{Score: 5},
		Episodes: []types.WatchedEpisode{
			{Number: 1}, {Number: 2}, {Number: 3},
		},
		Mapped: &types.MappedIDs{TVDBID: 1, TVDBSeason: 1},
	}
	resolutions := []types.Resolution{
		{
			Entry:           remoteRated,
			KeepLocalRating: false,
			RatingConflict:  true,
			// Two of three episodes already remote.
			EpisodesToSync: remoteRated.Episodes[:1],
		},
	}

	api := &fakeAPI{}
	s := New(api)
	result, err := s.Sync(context.Background(), resolutions, testOpts(t))
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if result.RatingsExisting != 1 {
		t.Errorf("RatingsExisting = %d; want 1", result.RatingsExisting)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d; want 1", result.Skipped)
	}
	if result.HistoryExisting != 2 {
		t.Errorf("HistoryExisting = %d; want 2", result.HistoryExisting)
	}
}
