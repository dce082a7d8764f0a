package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mydehq/anitrakt"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Mapping database cache commands",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache age and contents",
	Run: func(cmd *cobra.Command, args []string) {
		runCacheInfo(cmd.Context())
	},
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force-download the mapping database",
	Run: func(cmd *cobra.Command, args []string) {
		runCacheRefresh(cmd.Context())
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the cache file path",
	Run: func(cmd *cobra.Command, args []string) {
		runCachePath()
	},
}

func init() {
	RootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd, cacheRefreshCmd, cachePathCmd)
}

func runCacheInfo(ctx context.Context) {
	stats, path, err := anitrakt.CacheInfo(ctx, commonOpts()...)
	if err != nil {
		logger.Error("Cache unavailable", "error", err)
		os.Exit(1)
	}
	logger.Info("Mapping cache",
		"path", StylePath.Render(path),
		"cached at", StyleValue.Render(stats.CachedAt.Format("2006-01-02 15:04")),
	)
	logger.Info("Mappings",
		"total", StyleValue.Render(fmt.Sprint(stats.Total)),
		"tvdb", StyleDim.Render(fmt.Sprint(stats.WithTVDB)),
		"imdb", StyleDim.Render(fmt.Sprint(stats.WithIMDB)),
		"tmdb movie", StyleDim.Render(fmt.Sprint(stats.WithTMDBMovie)),
	)
}

func runCacheRefresh(ctx context.Context) {
	stats, err := anitrakt.CacheRefresh(ctx, commonOpts()...)
	if err != nil {
		logger.Error("Refresh failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Mapping database refreshed", "total", StyleValue.Render(fmt.Sprint(stats.Total)))
}

func runCachePath() {
	path, err := anitrakt.CachePath(commonOpts()...)
	if err != nil {
		logger.Error("Cache path unavailable", "error", err)
		os.Exit(1)
	}
	fmt.Println(path)
}
