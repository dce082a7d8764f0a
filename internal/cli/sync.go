package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mydehq/anitrakt"
	"github.com/mydehq/anitrakt/internal/types"
	"github.com/spf13/cobra"
)

var (
	flagDryRun            bool
	flagResume            bool
	flagOverride          bool
	flagRatingsOnly       bool
	flagHistoryOnly       bool
	flagExcludeRestricted bool
	flagForceRefresh      bool
	flagSkipRemote        bool
	flagYes               bool
)

var syncCmd = &cobra.Command{
	Use:   "sync <export-file>",
	Short: "Sync watch history and ratings to Trakt",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSync(cmd.Context(), args[0])
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVarP(&flagDryRun, "dry-run", "d", false, "Preview the sync without submitting")
	syncCmd.Flags().BoolVarP(&flagResume, "resume", "r", false, "Resume from the last checkpoint")
	syncCmd.Flags().BoolVar(&flagOverride, "override-fingerprint", false, "Resume even if the input file changed")
	syncCmd.Flags().BoolVar(&flagRatingsOnly, "ratings-only", false, "Submit ratings only")
	syncCmd.Flags().BoolVar(&flagHistoryOnly, "history-only", false, "Submit watch history only")
	syncCmd.Flags().BoolVarP(&flagExcludeRestricted, "exclude-restricted", "x", false, "Skip restricted entries")
	syncCmd.Flags().BoolVarP(&flagForceRefresh, "force-refresh", "f", false, "Re-download the ID mapping database")
	syncCmd.Flags().BoolVar(&flagSkipRemote, "skip-remote", false, "Do not compare against existing Trakt data")
	syncCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Answer yes to all prompts")
}

func syncOpts() []anitrakt.Option {
	opts := commonOpts()

	if flagDryRun {
		opts = append(opts, anitrakt.WithDryRun())
	}
	if flagResume {
		opts = append(opts, anitrakt.WithResume())
	}
	if flagOverride {
		opts = append(opts, anitrakt.WithOverrideFingerprint())
	}
	if flagRatingsOnly {
		opts = append(opts, anitrakt.WithoutHistory())
	}
	if flagHistoryOnly {
		opts = append(opts, anitrakt.WithoutRatings())
	}
	if flagExcludeRestricted {
		opts = append(opts, anitrakt.WithExcludeRestricted())
	}
	if flagForceRefresh {
		opts = append(opts, anitrakt.WithForceRefresh())
	}
	if flagSkipRemote {
		opts = append(opts, anitrakt.WithSkipRemote())
	}
	return opts
}

func commonOpts() []anitrakt.Option {
	var opts []anitrakt.Option
	if flagConfig != "" {
		opts = append(opts, anitrakt.WithConfig(flagConfig))
	}
	if flagOutput != "" {
		opts = append(opts, anitrakt.WithOutputDir(flagOutput))
	}
	return opts
}

func runSync(ctx context.Context, path string) {
	if flagRatingsOnly && flagHistoryOnly {
		logger.Error("--ratings-only and --history-only are mutually exclusive")
		os.Exit(1)
	}

	result, err := anitrakt.Sync(ctx, path, syncOpts()...)

	var mismatch types.ErrCheckpointMismatch
	if errors.As(err, &mismatch) {
		if !confirmOverride() {
			logger.Warn(StyleDim.Render("Sync cancelled"))
			return
		}
		opts := append(syncOpts(), anitrakt.WithOverrideFingerprint())
		result, err = anitrakt.Sync(ctx, path, opts...)
	}

	if result != nil {
		printSummary(result)
	}
	if err != nil {
		logger.Error("Sync failed", "error", err)
		os.Exit(1)
	}
}

// confirmOverride asks before discarding a checkpoint written for a
// different input file.
func confirmOverride() bool {
	if flagYes {
		return true
	}
	confirmed := false
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Input file changed").
				Description("The checkpoint was written for a different export file.\nDiscard it and start over?").
				Value(&confirmed),
		),
	).WithTheme(huh.ThemeCatppuccin()).Run()
	if err != nil {
		return false
	}
	return confirmed
}

func printSummary(r *types.SyncResult) {
	if flagQuiet {
		return
	}

	head := "Sync summary"
	if flagDryRun {
		head += StyleAccent.Render("  [dry run]")
	}
	fmt.Println()
	fmt.Println(StyleHeader.Render(head))

	green := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("192"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("204"))

	logger.Info("Ratings",
		"added", green.Render(fmt.Sprint(r.RatingsAdded)),
		"existing", StyleDim.Render(fmt.Sprint(r.RatingsExisting)),
		"kept remote", StyleDim.Render(fmt.Sprint(r.Skipped)),
	)
	logger.Info("History",
		"episodes added", green.Render(fmt.Sprint(r.HistoryAdded)),
		"already watched", StyleDim.Render(fmt.Sprint(r.HistoryExisting)),
	)
	if r.Unmapped > 0 {
		logger.Warn("Unmapped entries", "count", yellow.Render(fmt.Sprint(r.Unmapped)))
	}
	if r.FailedBatches > 0 {
		logger.Warn("Failed batches", "count", red.Render(fmt.Sprint(r.FailedBatches)))
	}
	if r.Aborted {
		logger.Error(red.Render("Sync aborted, run again with --resume to continue"))
	}
}
