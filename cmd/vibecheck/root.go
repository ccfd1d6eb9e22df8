package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ryosukesatoh/vibecheck/internal/config"
	"github.com/ryosukesatoh/vibecheck/internal/logging"
)

const defaultConfigPath = "config.yaml"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	envFile    string

	cfg *config.Config
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "vibecheck",
		Short:         "Summarize what Reddit thinks about a product",
		Long:          "vibecheck searches Reddit for a keyword, gathers the most relevant comments and asks a language model for a structured digest of praise, pain points and requested features.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is ./config.yaml when present)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with credentials")

	root.AddCommand(newServeCmd(a), newCheckCmd(a), newWatchCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}

	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	if path != "" {
		log.WithField("path", path).Debug("Loaded config file")
	}
	return nil
}
