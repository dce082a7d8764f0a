package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	ilog "github.com/mydehq/anitrakt/internal/logger"
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
	flagQuiet   bool
	flagOutput  string

	logger *log.Logger

	// Styles
	StyleHeader  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("34"))
	StyleCommand = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	StylePath    = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	StyleValue   = lipgloss.NewStyle().Foreground(lipgloss.Color("192"))
	StyleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
	StyleAccent  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("204"))
)

var RootCmd = &cobra.Command{
	Use:           "anitrakt",
	Short:         "Sync AniDB watch history and ratings to Trakt.tv",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ilog.SetLevel(flagQuiet, flagVerbose)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error(err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to config file")
	RootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")
	RootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress output except errors")
	RootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Directory for reports and payload files")

	logger = ilog.L()
}
