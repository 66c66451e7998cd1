package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP server that accepts scripts on POST /run. Configuration comes from the environment; flags override it.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Server port (overrides PORT)")
	serveCmd.Flags().Bool("reuse", false, "Share one browser between runs (overrides BROWSER_REUSE)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("reuse") {
		cfg.Browser.Reuse, _ = cmd.Flags().GetBool("reuse")
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// in-flight runs are bounded by the sandbox timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Sandbox.Timeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
