package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/dbbackup/internal/config"
	"github.com/fgeck/dbbackup/internal/dsn"
	"github.com/fgeck/dbbackup/internal/models"
	"github.com/fgeck/dbbackup/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	req := models.BackupRequest{
		OutputDirectory: cfg.OutputDirectory,
		BaseName:        baseName,
		GZip:            gzipOut,
		DryRun:          dryRun,
	}

	log.Debug().
		Str("schema", cfg.SchemaPath).
		Str("output", req.OutputDirectory).
		Bool("dry_run", req.DryRun).
		Bool("gzip", req.GZip).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	runnerSvc := runner.New(log.Logger, *cfg)
	outcome, err := runnerSvc.Run(ctx, req)
	if err != nil {
		return err
	}

	if req.DryRun {
		return printPlan(cmd.OutOrStdout(), outcome.Plan)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), outcome.Result.OutputPath)
	return err
}

// loadSettings merges defaults, the optional config file, DBBACKUP_* variables
// and flags into one Settings value.
func loadSettings(cmd *cobra.Command) (*models.Settings, error) {
	parser := config.NewParser()

	if err := parser.BindFlag(config.KeySchema, cmd.Flag("schema")); err != nil {
		return nil, err
	}
	if out := outputFlagName(cmd); out != "" {
		if err := parser.BindFlag(config.KeyOutput, cmd.Flag(out)); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		cfg, err := parser.LoadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", configFile, err)
		}
		return cfg, nil
	}
	return parser.Load()
}

// outputFlagName picks whichever of --out/--output was given, or "" when the
// command has neither.
func outputFlagName(cmd *cobra.Command) string {
	if cmd.Flags().Lookup("out") == nil {
		return ""
	}
	if cmd.Flags().Changed("out") {
		return "out"
	}
	return "output"
}

// printPlan writes the plan as indented JSON with the password redacted.
func printPlan(w io.Writer, plan models.ResolvedPlan) error {
	plan.ConnectionString = dsn.Redact(plan.ConnectionString)

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}
