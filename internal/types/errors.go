// Package types defines custom error types for anitrakt.
package types

import "fmt"

// ErrParse indicates an AniDB export file could not be parsed.
type ErrParse struct {
	Path   string
	Reason string
}

func (e ErrParse) Error() string {
	return fmt.Sprintf("failed to parse export %s: %s", e.Path, e.Reason)
}

// ErrAPIError indicates an error response from a remote API.
type ErrAPIError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e ErrAPIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Service, e.StatusCode, e.Message)
}

// Transient reports whether the error is worth retrying. Rate-limit and
// server-side failures are transient; other client errors are not.
func (e ErrAPIError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ErrNotAuthenticated indicates no usable Trakt token is available.
type ErrNotAuthenticated struct{}

func (e ErrNotAuthenticated) Error() string {
	return "not authenticated with Trakt: run 'anitrakt auth' first"
}

// ErrAuthFailed indicates the OAuth device flow did not complete.
type ErrAuthFailed struct {
	Reason string
}

func (e ErrAuthFailed) Error() string {
	return fmt.Sprintf("Trakt authentication failed: %s", e.Reason)
}

// ErrCacheCorrupt indicates the mapping cache file exists but cannot be
// decoded. A silently empty mapping would mark every entry unmapped, so this
// is fatal at load time.
type ErrCacheCorrupt struct {
	Path   string
	Reason string
}

func (e ErrCacheCorrupt) Error() string {
	return fmt.Sprintf("mapping cache corrupt at %s: %s", e.Path, e.Reason)
}

// ErrCheckpointMismatch indicates a resume was attempted against an input
// file other than the one the checkpoint was written for.
type ErrCheckpointMismatch struct {
	Path string
}

func (e ErrCheckpointMismatch) Error() string {
	return fmt.Sprintf("checkpoint at %s was written for a different input file", e.Path)
}

// ErrSyncAborted indicates the batch engine stopped after too many
// consecutive batch failures. The last checkpoint remains valid.
type ErrSyncAborted struct {
	Failures int
}

func (e ErrSyncAborted) Error() string {
	return fmt.Sprintf("sync aborted after %d consecutive batch failures", e.Failures)
}
