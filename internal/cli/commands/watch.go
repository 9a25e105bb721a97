package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ai-review-be/internal/cli/render"
	"ai-review-be/internal/review/progress"
	"ai-review-be/pkg/events"
	pktNats "ai-review-be/pkg/nats"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func WatchCmd() *cobra.Command {
	var natsURL, jobFilter, durable string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow review events mirrored to NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			if natsURL == "" {
				return fmt.Errorf("--nats or NATS_URL is required")
			}
			var jobID uuid.UUID
			if jobFilter != "" {
				id, err := uuid.Parse(jobFilter)
				if err != nil {
					return fmt.Errorf("invalid --job: %w", err)
				}
				jobID = id
			}

			sub, err := pktNats.NewSubscriber(pktNats.DefaultConfig(natsURL))
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			printer := render.NewPrinter(cmd.OutOrStdout(), verbose)
			handler := WatchHandler(printer, jobID, stop)
			subscription := pktNats.Subscription{
				Subject: "events.review.>",
				Durable: durable,
				// A job filter replays the retained history so the job is shown from its start.
				Replay:  jobID != uuid.Nil,
			}
			if err := sub.Subscribe(ctx, subscription, handler); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats", os.Getenv("NATS_URL"), "NATS server URL")
	cmd.Flags().StringVar(&jobFilter, "job", "", "Only print events of this job and exit when it ends")
	cmd.Flags().StringVar(&durable, "durable", "", "JetStream durable consumer name; empty for an ephemeral consumer")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print chunk and finding events")
	return cmd
}

// WatchHandler prints mirrored events. With a job filter it calls done after
// the job's terminal event.
func WatchHandler(printer *render.Printer, jobID uuid.UUID, done func()) pktNats.EventHandler {
	return func(_ context.Context, raw events.Event) error {
		ev, err := progress.FromPayload(raw.Payload())
		if err != nil {
			// Not a progress event; ack and move on.
			return nil
		}
		if jobID != uuid.Nil && ev.JobID != jobID {
			return nil
		}
		printer.Print(ev)
		if jobID != uuid.Nil && ev.Terminal() {
			done()
		}
		return nil
	}
}
