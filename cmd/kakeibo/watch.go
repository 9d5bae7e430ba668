package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cli"
	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
	"kakeibo/internal/log"
	"kakeibo/internal/worker"
)

func newWatchCmd(a *app) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a summary every time the entries change",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			ctx, stop := cli.GracefulShutdown(cmd.Context(), a.logger, nil)
			defer stop()

			l, _, err := a.session(ctx)
			if err != nil {
				return err
			}
			return cli.Supervise(ctx, a.logger, shutdownTimeout,
				cli.Runner{Name: "listener", Run: a.res.Listen},
				cli.Runner{Name: "render", Run: func(ctx context.Context) error {
					return render(ctx, cmd.OutOrStdout(), l, month)
				}},
			)
		}),
	}
	cmd.Flags().StringVar(&month, "month", currentMonth(), "month YYYY-MM to summarize")
	return cmd
}

// render prints one line per mirror replacement until ctx is done.
func render(ctx context.Context, w io.Writer, l *ledger.Ledger, month string) error {
	ch, stop := l.Listen()
	defer stop()

	show := func(snap ledger.Snapshot) {
		entries := snap.Entries()
		fmt.Fprintf(w, "[v%d] %s  総資産 %s\n", snap.Version,
			overviewLine(core.MonthlySummary(entries, month)),
			core.NetAsset(entries).Yen())
	}
	show(l.Current())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-ch:
			if snap.UserID == "" {
				continue
			}
			show(snap)
		}
	}
}

func newMirrorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mirror",
		Short: "Copy the user's entries to Google Sheets on every change",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			if a.cfg.UserID == "" {
				return errLoginRequired
			}
			ctx, stop := cli.GracefulShutdown(cmd.Context(), a.logger, nil)
			defer stop()

			res, err := a.open(ctx)
			if err != nil {
				return err
			}
			if err := res.CanMirror(); err != nil {
				return err
			}

			w := worker.NewMirrorWorker(res.Repository, res.Sheets, a.cfg.UserID)
			logger := a.logger.WithComponent(log.ComponentWorker)
			if err := w.StartupSync(ctx); err != nil {
				logger.Error("Startup sync failed, waiting for changes", log.FieldError, err)
			}

			// A durable shared queue: changes published while the worker is down wait for it.
			queue := amqp.QueueOptions{Name: a.cfg.AMQPMirrorQueue, Durable: true}
			err = cli.Supervise(ctx, logger, shutdownTimeout,
				cli.Runner{Name: "mirror", Run: func(ctx context.Context) error {
					return res.Events.Consume(ctx, queue, w.HandleEntriesChanged)
				}},
			)
			syncs, last := w.Stats()
			logger.Info("Mirror stopped", log.FieldCount, syncs, "last_sync", last)
			return err
		}),
	}
}
