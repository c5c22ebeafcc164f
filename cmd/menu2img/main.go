package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/menu2img-desktop/pkg/client"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
}

// StatusFlags holds flags for the status and logs commands.
type StatusFlags struct {
	URL     string
	Timeout time.Duration
	JSON    bool
	Lines   int
	Since   int64
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	statusFlags := &StatusFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createBackendCommand(globalFlags),
		createStatusCommand(statusFlags),
		createLogsCommand(statusFlags),
		createVersionCommand(),
	)
	return root
}

// createRootCommand creates the root command; running it opens the desktop window.
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "menu2img",
		Short: "Desktop host for the Menu2Img web app",
		Long: `Menu2Img launches the Python backend, waits until it is serving and
opens it in a native window with file dialogs and window controls.

Examples:
  menu2img                              # Open the desktop app
  menu2img --config menu2img.toml       # Use a config file
  menu2img backend                      # Run only the backend, headless
  menu2img status --url http://127.0.0.1:7071`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDesktop(flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	return root
}

func createBackendCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Run the backend without a window",
		Long: `Run the Python backend under supervision until SIGINT or SIGTERM.
The diagnostics router is served when [diagnostics].listen is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackend(cmd.Context(), flags)
		},
	}
}

func createStatusCommand(flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the backend status of a running host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	addClientFlags(cmd, flags)
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the raw status as JSON")
	return cmd
}

func createLogsCommand(flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent backend output of a running host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	addClientFlags(cmd, flags)
	cmd.Flags().IntVarP(&flags.Lines, "lines", "n", 100, "number of lines")
	cmd.Flags().Int64Var(&flags.Since, "since", 0, "only lines after this sequence number")
	return cmd
}

func addClientFlags(cmd *cobra.Command, flags *StatusFlags) {
	cmd.Flags().StringVar(&flags.URL, "url", client.DefaultBaseURL, "diagnostics base URL")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 5*time.Second, "request timeout")
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "menu2img %s\n", version)
		},
	}
}
