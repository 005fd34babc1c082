// Command gogate runs a reference server that puts the goGate session gate in
// front of a small set of routes.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "gogate",
		Short: "Session authentication gate with OAuth2 token refresh",
		Long: `gogate serves the login, callback and logout routes of an OIDC
authorization-code flow and guards application routes with a session gate
that renews expired access tokens through the refresh-token grant.

Configuration is read from the environment; run "gogate config check" to
validate it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	newLogger := func() (*slog.Logger, error) {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
			return nil, fmt.Errorf("invalid --log-level %q", logLevel)
		}
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
	}

	rootCmd.AddCommand(
		serveCmd(newLogger),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gogate %s (%s)\n", version, commit)
		},
	}
}
