package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/server"
	"github.com/GriffinCanCode/TryAutomation/internal/sandbox"
)

var runCmd = &cobra.Command{
	Use:   "run <script.js>",
	Short: "Execute one script locally",
	Long:  "Execute a script file the way POST /run would and print its log. The artifact, if any, is written to --out.",
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func init() {
	runCmd.Flags().StringP("out", "o", "", "Write the artifact to this file")
	runCmd.Flags().Bool("json", false, "Print the full response as JSON")
	runCmd.Flags().Duration("timeout", 0, "Run timeout (overrides SANDBOX_TIMEOUT)")
}

func runScript(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.Sandbox.Timeout = timeout
	}

	script, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	logger := server.NewLogger(cfg)
	defer func() { _ = logger.Sync() }()

	service, executor, err := server.NewSandbox(cfg, nil, nil, logger)
	if err != nil {
		return err
	}
	defer executor.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := service.Execute(ctx, string(script), sandbox.Options{})
	if err != nil {
		return fmt.Errorf("%s: %w", sandbox.KindOf(err), err)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := sonic.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else if result.Log != "" {
		fmt.Fprintln(out, result.Log)
	}

	if result.Result == nil {
		return nil
	}
	path, _ := cmd.Flags().GetString("out")
	if path == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "artifact %s (%d bytes) discarded, use --out to keep it\n", result.Result.Type, len(result.Result.Buffer))
		return nil
	}
	if err := os.WriteFile(path, result.Result.Buffer, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "artifact %s written to %s\n", result.Result.Type, path)
	return nil
}
