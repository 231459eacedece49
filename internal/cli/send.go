package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/chatsync/internal/domain"
)

func NewSendCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>...",
		Short: "Send a text message",
		Example: `  chatsync send "hello everyone"
  CHATSYNC_SENDER_ID=ana@example.com chatsync send hi`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return runSend(cmd, opts, func(ctx context.Context, app *App) (domain.MessageID, error) {
				return app.Composer.SendText(ctx, text)
			})
		},
	}
}

func NewSendImageCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "send-image <file>",
		Short:   "Upload an image and send it as a message",
		Example: `  chatsync send-image ./cat.png`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			return runSend(cmd, opts, func(ctx context.Context, app *App) (domain.MessageID, error) {
				return app.Composer.SendAttachment(ctx, blob)
			})
		},
	}
}

func runSend(cmd *cobra.Command, opts *RootOptions, send func(context.Context, *App) (domain.MessageID, error)) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := send(ctx, app)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
