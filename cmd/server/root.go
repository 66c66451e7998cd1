package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/config"
)

var (
	// Version is set at build time
	Version = "dev"
	// GitCommit is set at build time
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "try-automation",
	Short:         "Run untrusted browser automation scripts",
	Long:          `try-automation executes user-submitted puppeteer-style scripts against headless Chrome inside a sandboxed JavaScript runtime and returns their console output and the screenshot or PDF they produced.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "try-automation %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Git commit: %s\n", GitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "  Go version: %s\n", runtime.Version())
		fmt.Fprintf(cmd.OutOrStdout(), "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("dev", false, "Development logging (colored, debug level)")
	rootCmd.PersistentFlags().String("chrome", "", "Chrome binary (overrides CHROME_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the environment and applies the common flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("dev") {
		dev, _ := cmd.Flags().GetBool("dev")
		cfg.Logging.Development = dev
		if dev {
			cfg.Logging.Level = "debug"
		}
	}
	if cmd.Flags().Changed("chrome") {
		cfg.Browser.ChromePath, _ = cmd.Flags().GetString("chrome")
	}
	return cfg, nil
}
