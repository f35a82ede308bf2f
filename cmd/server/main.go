package main

import (
	"fmt"
	"os"

	"postbase/internal/config"
	"postbase/internal/db"
	"postbase/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "postbase",
	Short: "postbase blog backend",
	Long: `postbase serves the post CRUD API, account endpoints and the
public author and post pages.

Running without a subcommand is the same as "postbase serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE:  runMigrate,
}

func init() {
	defaultPath := os.Getenv("CONFIG_FILE")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// setup 读取配置并初始化日志
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if _, err := logger.Init(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.L().Sync()

	if err := db.Init(cfg); err != nil {
		return err
	}
	defer db.Close()

	return db.Migrate(db.DB)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	if err := rootCmd.Execute(); err != nil {
		logger.L().Error("postbase exited", zap.Error(err))
		os.Exit(1)
	}
}
