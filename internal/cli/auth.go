package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mydehq/anitrakt"
	"github.com/mydehq/anitrakt/internal/trakt"
	"github.com/spf13/cobra"
)

var flagAuthYes bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with Trakt using the device flow",
	Run: func(cmd *cobra.Command, args []string) {
		runAuth(cmd.Context())
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the authenticated Trakt account",
	Run: func(cmd *cobra.Command, args []string) {
		runAuthStatus(cmd.Context())
	},
}

var authRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke and delete the stored token",
	Run: func(cmd *cobra.Command, args []string) {
		runAuthRevoke(cmd.Context())
	},
}

func init() {
	RootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStatusCmd, authRevokeCmd)

	authRevokeCmd.Flags().BoolVarP(&flagAuthYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runAuth(ctx context.Context) {
	profile, err := anitrakt.Auth(ctx, func(dc *trakt.DeviceCode) {
		fmt.Println(StyleHeader.Render("Trakt device authorization"))
		fmt.Println()
		fmt.Printf("  Visit %s\n", StylePath.Render(dc.VerificationURL))
		fmt.Printf("  Enter code %s\n", StyleCommand.Render(dc.UserCode))
		fmt.Println()
		fmt.Println(StyleDim.Render("  Waiting for approval..."))
	}, commonOpts()...)
	if err != nil {
		logger.Error("Authentication failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Authenticated", "user", StyleCommand.Render(profile.Username))
}

func runAuthStatus(ctx context.Context) {
	profile, err := anitrakt.AuthStatus(ctx, commonOpts()...)
	if err != nil {
		logger.Error("Not authenticated", "error", err)
		os.Exit(1)
	}
	logger.Info("Authenticated",
		"user", StyleCommand.Render(profile.Username),
		"vip", StyleDim.Render(fmt.Sprint(profile.VIP)),
	)
}

func runAuthRevoke(ctx context.Context) {
	if !flagAuthYes {
		confirmed := false
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Revoke Trakt access").
					Description("The stored token will be invalidated and deleted.").
					Value(&confirmed),
			),
		).WithTheme(huh.ThemeCatppuccin()).Run()
		if err != nil || !confirmed {
			logger.Warn(StyleDim.Render("Revoke cancelled"))
			return
		}
	}
	if err := anitrakt.AuthRevoke(ctx, commonOpts()...); err != nil {
		logger.Error("Revoke failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Token revoked")
}
