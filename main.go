package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nudger/internal/config"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const exitInvalidConfig = 2

var envFile string

var rootCmd = &cobra.Command{
	Use:   "nudger",
	Short: "nudger - tone-aware push reminder scheduler",
	Long: `nudger schedules one-shot and recurring push reminders and picks each
message body from the recipient's preferred tone.

Configuration comes from the environment (DATABASE_URL, HTTP_ADDR, LOG_LEVEL,
FCM_SERVICE_ACCOUNT_FILE, FCM_PROJECT_ID, DISPATCH_WORKERS, ...), optionally
loaded from a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration (no connections made)",
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Load().Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInvalidConfig)
		}
		fmt.Println("configuration valid")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print effective configuration as JSON (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Load().MaskedJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nudger version %s (commit: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
