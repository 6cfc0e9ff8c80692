package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-processor/internal/config"
	"github.com/rezonia/invoice-processor/internal/logging"
	"github.com/rezonia/invoice-processor/internal/queue"
	"github.com/rezonia/invoice-processor/internal/wiring"
)

var (
	workerConcurrency   int
	pollTimeout         time.Duration
	reclaimInterval     time.Duration
	reclaimMinIdle      time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drain the work queue, running each receipt through the pipeline",
	Long: `Start a pool of workers that dequeue receipt processing tasks and run
each one through the full OCR -> vendor dispatch -> categorization ->
persistence pipeline, acknowledging on success and retrying (with
bounded backoff, then dead-lettering) on failure.

Examples:
  # Start a worker pool sized to the default concurrency
  receipt-worker run

  # Start 8 concurrent workers
  receipt-worker run --concurrency 8`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&workerConcurrency, "concurrency", 4, "Number of concurrent worker goroutines")
	runCmd.Flags().DurationVar(&pollTimeout, "poll-timeout", 5*time.Second, "How long a worker blocks waiting for a task")
	runCmd.Flags().DurationVar(&reclaimInterval, "reclaim-interval", 30*time.Second, "How often to scan for stale claims")
	runCmd.Flags().DurationVar(&reclaimMinIdle, "reclaim-min-idle", 10*time.Minute, "Minimum idle time before a claim is considered stale")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(cfg.LogLevel, false)

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 30*time.Second)
	resources, err := wiring.Build(setupCtx, cfg)
	cancelSetup()
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer resources.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostname, _ := os.Hostname()

	for i := 0; i < workerConcurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", hostname, i)
		go runWorker(ctx, resources, consumer)
	}
	go runReclaimLoop(ctx, resources, hostname+"-reclaimer")

	log.Info().Str("stage", "worker").Int("concurrency", workerConcurrency).Msg("receipt-worker started")
	<-ctx.Done()
	log.Info().Str("stage", "worker").Msg("shutting down")
	return nil
}

func runWorker(ctx context.Context, resources *wiring.Resources, consumer string) {
	for {
		if ctx.Err() != nil {
			return
		}
		delivery, err := resources.Tasks.Dequeue(ctx, consumer, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Str("stage", "worker").Str("consumer", consumer).Err(err).Msg("dequeue failed")
			continue
		}
		if delivery == nil {
			continue
		}
		handleDelivery(ctx, resources, consumer, delivery)
	}
}

// runReclaimLoop periodically takes over any task whose worker died
// mid-processing without acking, and runs it the same way a freshly
// dequeued task would be.
func runReclaimLoop(ctx context.Context, resources *wiring.Resources, consumer string) {
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deliveries, err := resources.Tasks.ReclaimStale(ctx, consumer, reclaimMinIdle)
			if err != nil {
				log.Error().Str("stage", "worker").Str("subcode", "reclaim_failed").Err(err).Msg("failed to scan for stale claims")
				continue
			}
			for _, delivery := range deliveries {
				handleDelivery(ctx, resources, consumer, delivery)
			}
		}
	}
}

func handleDelivery(ctx context.Context, resources *wiring.Resources, consumer string, delivery *queue.Delivery) {
	task := delivery.Task
	log.Info().Str("stage", "worker").Str("receipt_id", task.ReceiptID.String()).
		Str("consumer", consumer).Int("attempt", task.Attempt).Msg("processing task")

	if err := processTask(ctx, resources, task); err != nil {
		log.Warn().Str("stage", "worker").Str("receipt_id", task.ReceiptID.String()).
			Err(err).Msg("task processing failed")
		if rerr := resources.Tasks.Retry(ctx, delivery, err); rerr != nil {
			log.Error().Str("stage", "worker").Str("receipt_id", task.ReceiptID.String()).
				Err(rerr).Msg("failed to schedule retry")
		}
		return
	}

	if err := resources.Tasks.Ack(ctx, delivery.StreamID); err != nil {
		log.Error().Str("stage", "worker").Str("receipt_id", task.ReceiptID.String()).
			Err(err).Msg("failed to acknowledge completed task")
	}
}

func processTask(ctx context.Context, resources *wiring.Resources, task queue.Task) error {
	reader, _, err := resources.Objects.Get(ctx, task.ObjectKey)
	if err != nil {
		return fmt.Errorf("worker: fetch object %s: %w", task.ObjectKey, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("worker: read object %s: %w", task.ObjectKey, err)
	}

	filename := task.Filename
	if filename == "" {
		filename = task.ObjectKey
	}

	_, err = resources.Pipeline.Process(ctx, task.Entity, task.Source, task.ObjectKey, filename, data)
	return err
}
