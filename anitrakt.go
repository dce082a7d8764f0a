// Package anitrakt provides high-level functions for syncing an AniDB
// MyList export to a Trakt.tv account.
//
// This package mirrors the CLI functionality and provides a compatible API
// for integrating anitrakt into other Go applications.

package anitrakt

import "github.com/mydehq/anitrakt/internal/api"

// Re-export all types from internal/api
type (
	Option      = api.Option
	Options     = api.Options
	ParseResult = api.ParseResult
)

// Re-export all option constructors
var (
	WithDryRun              = api.WithDryRun
	WithResume              = api.WithResume
	WithOverrideFingerprint = api.WithOverrideFingerprint
	WithForceRefresh        = api.WithForceRefresh
	WithoutHistory          = api.WithoutHistory
	WithoutRatings          = api.WithoutRatings
	WithExcludeRestricted   = api.WithExcludeRestricted
	WithSkipRemote          = api.WithSkipRemote
	WithOutputDir           = api.WithOutputDir
	WithConfig              = api.WithConfig
)

// Re-export all core functions
var (
	Parse        = api.Parse
	Sync         = api.Sync
	Auth         = api.Auth
	AuthStatus   = api.AuthStatus
	AuthRevoke   = api.AuthRevoke
	CacheInfo    = api.CacheInfo
	CacheRefresh = api.CacheRefresh
	CachePath    = api.CachePath
)
