package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/chatsync/internal/app/syncengine"
	"github.com/PabloGalante/chatsync/internal/domain"
)

func NewTailCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print the message stream as it changes",
		Long: `Hydrate from the local cache, subscribe to the room and print each
message once as it appears. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runTail(ctx, opts, cmd.OutOrStdout())
		},
	}
}

func runTail(ctx context.Context, opts *RootOptions, out io.Writer) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	p := &tailPrinter{out: out, isMine: app.Composer.IsMine, seen: map[domain.MessageID]bool{}}
	cancel := app.Engine.Observe(p.print)
	defer cancel()

	if err := app.Engine.Activate(ctx); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	<-ctx.Done()
	return nil
}

// tailPrinter prints each committed message once. Observers run one at a
// time, so it needs no locking.
type tailPrinter struct {
	out    io.Writer
	isMine func(domain.Message) bool
	seen   map[domain.MessageID]bool
	stale  bool
}

func (p *tailPrinter) print(v syncengine.View) {
	if v.Stale != p.stale {
		p.stale = v.Stale
		if v.Stale {
			fmt.Fprintln(p.out, "-- connection lost, showing last known messages --")
		} else {
			fmt.Fprintln(p.out, "-- reconnected --")
		}
	}
	for _, m := range v.Messages {
		if p.seen[m.ID] {
			continue
		}
		p.seen[m.ID] = true
		fmt.Fprintln(p.out, formatMessage(m, p.isMine(m)))
	}
}

func formatMessage(m domain.Message, mine bool) string {
	when := "--:--:--"
	if m.CreatedAt != nil {
		when = m.CreatedAt.Local().Format("15:04:05")
	}
	who := string(m.SenderID)
	if mine {
		who += " (me)"
	}
	content := m.Body.Text
	if m.Body.IsAttachment() {
		content = "[image] " + m.Body.AttachmentURL
	}
	return fmt.Sprintf("%s %s: %s", when, who, content)
}
