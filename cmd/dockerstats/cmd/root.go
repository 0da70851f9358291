package cmd

import (
	"fmt"
	"os"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rusenback/dockerstats/internal/config"
	"github.com/rusenback/dockerstats/internal/environ"
)

var (
	cfg        *config.Config
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:          "dockerstats",
	Short:        "Container resource sampler and dashboard",
	Long:         `dockerstats samples every container on the local engine, keeps a rolling history in memory and serves it over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		return setupLogging(cfg.LogLevel, cfg.LogFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath,
		"config",
		environ.GetString("CONFIG_FILE", ""),
		"Path to a YAML configuration file",
	)
	rootCmd.PersistentFlags().StringVar(&logLevel,
		"log-level",
		"info",
		"Log level. One of debug, info, warn, error, fatal, panic.",
	)
	rootCmd.PersistentFlags().StringVar(&logFormat,
		"log-format",
		"text",
		"Log format. One of text, json.",
	)

	rootCmd.AddCommand(serveCmd, topCmd)
}

func setupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.WrapIf(err, "invalid log level")
	}
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.NewWithDetails("invalid log format", "format", format)
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
