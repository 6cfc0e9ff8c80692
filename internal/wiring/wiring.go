// Package wiring builds the shared set of collaborators both
// cmd/receipt-server and cmd/receipt-worker need: a Postgres pool, the
// object store, the work queue, the warmed vendor registry, the OCR
// engine, the optional LLM extractor, and the pipeline and review
// queue built on top of them. This repo's two long-running processes
// need byte-identical wiring, so it is factored out once rather than
// duplicated between them.
package wiring

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/config"
	"github.com/rezonia/invoice-processor/internal/llm"
	"github.com/rezonia/invoice-processor/internal/objectstore"
	"github.com/rezonia/invoice-processor/internal/ocr"
	"github.com/rezonia/invoice-processor/internal/parser"
	"github.com/rezonia/invoice-processor/internal/pipeline"
	"github.com/rezonia/invoice-processor/internal/queue"
	"github.com/rezonia/invoice-processor/internal/review"
	"github.com/rezonia/invoice-processor/internal/skucache"
	"github.com/rezonia/invoice-processor/internal/storage"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// Resources holds every long-lived collaborator a process built from
// Build needs. Callers are responsible for calling Close on shutdown.
type Resources struct {
	Pool        *pgxpool.Pool
	Objects     *objectstore.Store
	Tasks       *queue.Queue
	Registry    *vendor.Registry
	Receipts    *storage.ReceiptRepository
	Vendors     *storage.VendorRegistryStore
	Cache       *skucache.Store
	Activity    *storage.ReviewActivityStore
	ReviewQueue *review.Queue
	Pipeline    *pipeline.Pipeline
}

// Build connects to every backing service a cfg describes and returns
// the fully wired Resources. ctx bounds only the setup calls
// (connecting, warming the registry) — it is not retained afterward.
func Build(ctx context.Context, cfg *config.Config) (*Resources, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("wiring: connect to postgres: %w", err)
	}

	objects, err := objectstore.NewStore(cfg.ObjectStoreEndpoint, cfg.ObjectStoreAccessKey,
		cfg.ObjectStoreSecretKey, cfg.ObjectStoreBucket, cfg.ObjectStoreUseSSL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("wiring: connect to object store: %w", err)
	}

	tasks, err := queue.NewQueue(ctx, cfg.QueueBrokerURL, cfg.QueuePassword, cfg.QueueDB, cfg.QueueStream, cfg.QueueGroup)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("wiring: connect to work queue: %w", err)
	}

	receipts := storage.NewReceiptRepository(pool)
	vendorsStore := storage.NewVendorRegistryStore(pool)
	cache := skucache.NewStore(pool)
	activity := storage.NewReviewActivityStore(pool)
	projections := storage.NewProjectionRefresher(pool)

	registry := vendor.NewRegistry()
	entries, err := vendorsStore.All(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("wiring: warm vendor registry: %w", err)
	}
	for _, entry := range entries {
		registry.Put(entry)
	}

	dispatcher := parser.NewDefaultDispatcher()

	ocrEngine, err := buildOCREngine(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var extractor *llm.Extractor
	if cfg.LLMAPIKey != "" {
		var clientOpts []llm.ClientOption
		if cfg.LLMBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(cfg.LLMBaseURL))
		}
		client := llm.NewClient(cfg.LLMAPIKey, clientOpts...)

		var extractorOpts []llm.ExtractorOption
		if cfg.LLMModel != "" {
			extractorOpts = append(extractorOpts, llm.WithModel(cfg.LLMModel))
		}
		extractor = llm.NewExtractor(client, extractorOpts...)
	}

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.MaxPDFPages = cfg.MaxPDFPages
	pipelineCfg.WebLookupEnabled = cfg.CategorizationWebLookupEnabled
	pipelineCfg.WebLookupTimeout = cfg.CategorizationWebLookupTimeout
	pipelineCfg.LLMInputRatePer1K = cfg.LLMInputRatePer1K
	pipelineCfg.LLMOutputRatePer1K = cfg.LLMOutputRatePer1K
	pipelineCfg.CapitalizationThreshold = decimal.NewFromFloat(cfg.CapitalizationThreshold)

	p := pipeline.NewPipeline(receipts, cache, vendorsStore, objects, registry, dispatcher, ocrEngine,
		pipeline.WithLLMExtractor(extractor),
		pipeline.WithConfig(pipelineCfg),
		pipeline.WithProjectionRefresher(projections),
	)

	reviewQueue := review.NewQueue(pool, receipts, cache, activity, projections)

	return &Resources{
		Pool:        pool,
		Objects:     objects,
		Tasks:       tasks,
		Registry:    registry,
		Receipts:    receipts,
		Vendors:     vendorsStore,
		Cache:       cache,
		Activity:    activity,
		ReviewQueue: reviewQueue,
		Pipeline:    p,
	}, nil
}

// buildOCREngine constructs only the providers cfg.OCRBackend allows.
// "auto" builds every provider the engine's own selection policy can
// choose between; "cloud"/"local" build only the one the operator
// pinned, leaving the others nil (the engine treats a nil provider as
// unavailable for that stage).
func buildOCREngine(cfg *config.Config) (*ocr.Engine, error) {
	// cloud/local stay nil ocr.Provider interface values (not typed nil
	// pointers) when disabled, so the engine's own "== nil" availability
	// checks see a real nil rather than a non-nil interface wrapping a
	// nil *CloudOCR/*LocalOCR.
	var cloud, local ocr.Provider
	embedded := ocr.NewEmbeddedText()

	if cfg.OCRBackend == config.OCRBackendAuto || cfg.OCRBackend == config.OCRBackendCloud {
		if cfg.TextractFallbackEnabled {
			c, err := ocr.NewCloudOCR()
			if err != nil {
				return nil, fmt.Errorf("wiring: build cloud OCR provider: %w", err)
			}
			cloud = c
		}
	}
	if cfg.OCRBackend == config.OCRBackendAuto || cfg.OCRBackend == config.OCRBackendLocal {
		local = ocr.NewLocalOCR("eng")
	}

	return ocr.NewEngine(cloud, local, embedded, cfg.MaxPDFPages,
		ocr.WithLocalAcceptFloor(cfg.TesseractConfidenceThreshold)), nil
}

// Close closes the Postgres pool Build opened; the work queue's Redis
// client and the object-store client are not closed here. Safe to call once,
// after the owning process is done serving requests or draining the
// queue.
func (r *Resources) Close() {
	r.Pool.Close()
}
