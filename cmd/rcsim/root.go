package main

import (
	"log/slog"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/rendercore/render"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "rcsim",
		Short:         "Headless renderer simulation",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "renderer config file (TOML)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newConfigCommand(opts))
	return root
}

func (o *rootOptions) loadConfig() (render.Config, error) {
	if o.configPath == "" {
		return render.DefaultConfig(), nil
	}
	return render.LoadConfig(o.configPath)
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective renderer config as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			data, err := toml.Marshal(cfg)
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
