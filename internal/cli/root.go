package cli

import (
	"github.com/spf13/cobra"

	"github.com/PabloGalante/chatsync/internal/config"
	"github.com/PabloGalante/chatsync/internal/observability"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool

	// LoadConfig is swapped in tests; defaults to config.Load.
	LoadConfig func() (*config.Config, error)
}

// NewRootCommand creates the root command for the chatsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatsync",
		Short: "Live chat message sync",
		Long: `chatsync keeps a local view of a shared chat room in sync with the
remote message store and sends text and image messages into it.

Configuration comes from CHATSYNC_* environment variables or a .env file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTailCommand(opts))
	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewSendImageCommand(opts))

	return cmd
}

// loadConfig reads the config and applies the log level.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, err
	}
	observability.SetLevel(cfg.LogLevel)
	if o.Verbose {
		observability.SetLevel("debug")
	}
	return cfg, nil
}
