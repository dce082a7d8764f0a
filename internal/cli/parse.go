package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mydehq/anitrakt"
	"github.com/spf13/cobra"
)

var (
	flagParseExcludeRestricted bool
	flagParseForceRefresh      bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <export-file>",
	Short: "Parse an export and generate review reports without syncing",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runParse(cmd.Context(), args[0])
	},
}

func init() {
	RootCmd.AddCommand(parseCmd)

	parseCmd.Flags().BoolVarP(&flagParseExcludeRestricted, "exclude-restricted", "x", false, "Skip restricted entries")
	parseCmd.Flags().BoolVarP(&flagParseForceRefresh, "force-refresh", "f", false, "Re-download the ID mapping database")
}

func runParse(ctx context.Context, path string) {
	opts := commonOpts()
	if flagParseExcludeRestricted {
		opts = append(opts, anitrakt.WithExcludeRestricted())
	}
	if flagParseForceRefresh {
		opts = append(opts, anitrakt.WithForceRefresh())
	}

	result, err := anitrakt.Parse(ctx, path, opts...)
	if err != nil {
		logger.Error("Parse failed", "error", err)
		os.Exit(1)
	}

	if flagQuiet {
		return
	}

	fmt.Println(StyleHeader.Render("Export parsed"))
	logger.Info("Entries",
		"format", StyleValue.Render(result.Stats.Format),
		"anime", StyleValue.Render(fmt.Sprint(result.Stats.TotalAnime)),
		"rated", StyleValue.Render(fmt.Sprint(result.Stats.WithRatings)),
		"episodes watched", StyleValue.Render(fmt.Sprint(result.Stats.WatchedEpisodes)),
	)
	logger.Info("Mapping",
		"mapped", StyleValue.Render(fmt.Sprint(len(result.Mapped))),
		"unmapped", StyleValue.Render(fmt.Sprint(len(result.Unmapped))),
	)
	for _, p := range result.Reports {
		logger.Info("Report written", "path", StylePath.Render(p))
	}
}
