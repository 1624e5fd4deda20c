package main

import (
	"fmt"

	"github.com/fgeck/dbbackup/internal/dsn"
	"github.com/fgeck/dbbackup/internal/services/detector"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate settings and show what would be backed up",
	Long:  `Load the tool settings and run provider detection without executing any backup operations.`,
	Args:  cobra.NoArgs,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	det := detector.New(log.Logger).Detect(*cfg)
	out := cmd.OutOrStdout()

	// Print configuration summary
	fmt.Fprintln(out, "Configuration is valid!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Settings:")
	fmt.Fprintf(out, "  Schema: %s\n", cfg.SchemaPath)
	fmt.Fprintf(out, "  Connection variable: $%s (set: %v)\n", cfg.DatabaseURLEnv, cfg.DatabaseURL != "")
	fmt.Fprintf(out, "  Output directory: %s\n", cfg.OutputDirectory)
	fmt.Fprintf(out, "  Dump binary: %s\n", cfg.DumpBinary)
	if cfg.DumpTimeout > 0 {
		fmt.Fprintf(out, "  Dump timeout: %s\n", cfg.DumpTimeout)
	} else {
		fmt.Fprintln(out, "  Dump timeout: disabled")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Detection:")
	fmt.Fprintf(out, "  Provider: %s\n", det.Provider)
	if det.Source != "" {
		fmt.Fprintf(out, "  Source: %s\n", det.Source)
	}
	if det.SQLitePath != "" {
		fmt.Fprintf(out, "  SQLite file: %s\n", det.SQLitePath)
	}
	if det.ConnectionString != "" {
		fmt.Fprintf(out, "  Connection: %s\n", dsn.Redact(det.ConnectionString))
	}

	return nil
}
