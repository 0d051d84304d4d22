package container

import (
	"fmt"
	"net/http"

	"go-damage-sync/internal/analysis"
	"go-damage-sync/internal/analytics"
	"go-damage-sync/internal/auth"
	"go-damage-sync/internal/cache"
	"go-damage-sync/internal/config"
	"go-damage-sync/internal/factory"
	"go-damage-sync/internal/history"
	"go-damage-sync/internal/logger"
	"go-damage-sync/internal/media"
	"go-damage-sync/internal/observer"
	"go-damage-sync/internal/repository"
	"go-damage-sync/internal/transport"
	"go-damage-sync/pkg/models"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	authState    *auth.State
	tokens       *auth.TokenProvider
	events       *observer.Publisher
	metrics      *observer.MetricsObserver
	fetcher      *analysis.Fetcher
	pipeline     *media.Pipeline
	migrator     *media.Migrator
	historyStore *history.Store
	handler      http.Handler
	unsubscribes []observer.Unsubscribe
}

// NewContainer builds the dependency graph. Auth state is created here and
// injected explicitly; nothing mutates a package-level instance.
func NewContainer(cfg *config.Config) (*Container, error) {
	state := &auth.State{}
	if cfg.UserID != "" {
		state.Principal = &auth.Principal{UserID: cfg.UserID, Email: cfg.UserEmail}
	}

	var issuer auth.TokenIssuer
	if cfg.IdentityBaseURL != "" {
		issuer = auth.NewHTTPTokenIssuer(cfg.IdentityBaseURL)
	} else if state.Principal != nil {
		return nil, fmt.Errorf("USER_ID is set but IDENTITY_BASE_URL is not")
	}

	tokenCache := auth.NewFileTokenCache(cfg.TokenCachePath)
	tokens := auth.NewTokenProvider(issuer, tokenCache, state, cfg.DevBypass)

	events := observer.NewPublisher()
	metrics := observer.NewMetricsObserver()
	unsubLogging := events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	unsubMetrics := events.Subscribe(metrics)

	blobFactory := factory.NewBlobStoreFactory(
		cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureContainer, cfg.LocalBlobRoot)
	blobs, err := blobFactory.CreateBlobStore(factory.BlobBackend(cfg.BlobBackend))
	if err != nil {
		return nil, fmt.Errorf("create blob store: %w", err)
	}

	fetcher := analysis.NewFetcher(
		cfg.AnalysisBaseURL,
		cfg.EffectiveAnalyzeTimeout(),
		cfg.MaxRequestBodySize,
		analysis.DemoContent{
			DamageType: cfg.DemoDamageType,
			Confidence: cfg.DemoConfidence,
			Estimate:   cfg.DemoEstimate,
		},
		tokens,
		events,
	)

	pipeline := media.NewPipeline(blobs, media.Options{
		ThumbMaxWidth:  cfg.ThumbMaxWidth,
		ThumbMaxHeight: cfg.ThumbMaxHeight,
		ThumbQuality:   cfg.ThumbQuality,
	})

	records := repository.NewHTTPRecordStore(cfg.RecordsBaseURL, tokens)
	migrator := media.NewMigrator(pipeline, records, events)

	aggregator := analytics.NewAggregator(cfg.TrendMonths)
	userID := cfg.UserID
	if userID == "" {
		userID = "anonymous"
	}
	historyStore := history.NewStore(userID, records, aggregator, events)

	dashboardCache := cache.New(func() models.AggregatedStats {
		return models.EmptyStats(nil)
	})

	handler := transport.NewHandler(transport.Deps{
		UserID:    userID,
		Fetcher:   fetcher,
		Pipeline:  pipeline,
		Migrator:  migrator,
		History:   historyStore,
		Dashboard: dashboardCache,
		Metrics:   metrics,
		Config:    cfg,
	})

	return &Container{
		config:       cfg,
		authState:    state,
		tokens:       tokens,
		events:       events,
		metrics:      metrics,
		fetcher:      fetcher,
		pipeline:     pipeline,
		migrator:     migrator,
		historyStore: historyStore,
		handler:      handler,
		unsubscribes: []observer.Unsubscribe{unsubLogging, unsubMetrics},
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close tears the container down, releasing observer registrations.
func (c *Container) Close() {
	for _, unsubscribe := range c.unsubscribes {
		unsubscribe()
	}
}
