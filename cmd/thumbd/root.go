package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leeforge/thumbnail/config"
	"github.com/leeforge/thumbnail/env_mode"
	"github.com/leeforge/thumbnail/logging"
)

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	ConfigDir string
	Env       string
	EnvFile   string
	Disk      string
}

var (
	globalFlags GlobalFlags
	cfg         *config.Config
	loader      *config.Loader
	logger      logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "thumbd",
	Short: "On-demand image thumbnail server",
	Long: `thumbd resizes and watermarks source images on request and keeps
the results in a two-tier blob cache.

Configuration is read from {config-dir}/config.yaml, then
config.{env}.yaml, then THUMB_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(globalFlags.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", globalFlags.EnvFile, err)
		}
		if globalFlags.Env != "" {
			env_mode.SetMode(env_mode.ParseEnv(globalFlags.Env))
		}

		opts := config.DefaultConfigOptions()
		if globalFlags.ConfigDir != "" {
			opts.BasePath = globalFlags.ConfigDir
		}
		opts.WatchAble = true
		opts.OnChange = func(e fsnotify.Event) {
			logging.Global().Warn("config file changed; restart to apply",
				zap.String("file", e.Name), zap.String("op", e.Op.String()))
		}

		var err error
		cfg, loader, err = config.Load(opts)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if globalFlags.Disk != "" {
			cfg.Images.Disk = globalFlags.Disk
		}

		logger = logging.Init(cfg.Log)
		logger.Debug("configuration loaded",
			zap.Strings("files", loader.Files()),
			zap.String("mode", string(env_mode.Mode())),
			zap.String("disk", cfg.Images.Disk),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		_ = logging.CloseAllWriters()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigDir, "config-dir", "", "configuration directory (default: $CONFIG_PATH or ./config)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Env, "env", "", "environment: development|test|production (default: $GO_ENV_MODE)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.EnvFile, "env-file", ".env", "dotenv file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Disk, "disk", "", "override images.disk: local|oss|redis|memory")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(warmCmd)
}
