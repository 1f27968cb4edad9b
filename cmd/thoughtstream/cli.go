package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"thoughtstream/internal/infra/config"
)

const defaultConfigPath = "thoughtstream.yaml"

type rootFlags struct {
	configPath string
	url        string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "thoughtstream",
		Short: "Live viewer for an agent's thought stream",
		Long: `thoughtstream connects to a telemetry websocket and types the agent's
thoughts into the terminal as they arrive.

Config file: ./thoughtstream.yaml (optional; defaults apply when missing)
Environment: THOUGHTSTREAM_* variables override config

Keys: tab toggles the prompt panel, g/G jump to top/bottom, q quits.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			return runMonitor(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath, "config file path")
	cmd.PersistentFlags().StringVar(&flags.url, "url", "", "override stream.url")

	cmd.AddCommand(newTailCmd(flags))
	cmd.AddCommand(newEncryptCmd())
	return cmd
}

func newTailCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print completed lines to stdout without a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			return runTail(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt VALUE",
		Short: "Encrypt VALUE for use as stream.token (needs THOUGHTSTREAM_CONFIG_KEY)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase := os.Getenv("THOUGHTSTREAM_CONFIG_KEY")
			if passphrase == "" {
				return errors.New("THOUGHTSTREAM_CONFIG_KEY is not set")
			}
			enc, err := config.EncryptValue(args[0], passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "enc:"+enc)
			return nil
		},
	}
}

func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if f.url != "" {
		cfg.Stream.URL = f.url
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return cfg, nil
}
