package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool

	// Backup flags.
	outputDir string
	baseName  string
	schema    string
	dryRun    bool
	gzipOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "dbbackup",
	Short: "Back up the application's SQLite or PostgreSQL database",
	Long: `dbbackup detects which database backs the application and writes a
timestamped backup artifact:
  - SQLite: the database file is copied
  - PostgreSQL: pg_dump output is captured

The provider is read from the datasource block of the Prisma schema file,
falling back to the scheme of $DATABASE_URL. Use --dry-run to print the
resolved plan without touching anything.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Args:          cobra.NoArgs,
	RunE:          runBackup,
	SilenceErrors: true,
	SilenceUsage:  true,
	Version:       Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "tool config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&schema, "schema", "prisma/schema.prisma", "schema file declaring the datasource")

	rootCmd.Flags().StringVarP(&outputDir, "out", "o", "./backups", "output directory")
	rootCmd.Flags().StringVar(&outputDir, "output", "./backups", "output directory (alias of --out)")
	rootCmd.Flags().StringVar(&baseName, "name", "", "artifact base name (default: detected provider, else \"db\")")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resolved plan and exit")
	rootCmd.Flags().BoolVar(&gzipOut, "gzip", false, "gzip the artifact")
	rootCmd.Flags().BoolVar(&gzipOut, "gz", false, "gzip the artifact (alias of --gzip)")

	rootCmd.AddCommand(validateCmd)
}

// Logs go to stderr; stdout carries only the artifact path or the dry-run plan.
func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
