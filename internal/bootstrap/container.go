package bootstrap

import (
	"context"
	"log"

	"explore-state-be/internal/config"
	"explore-state-be/internal/controller"
	"explore-state-be/internal/handler"
	"explore-state-be/internal/pkg/logger"
	"explore-state-be/internal/repository/memory"
	"explore-state-be/internal/repository/redisstore"
	"explore-state-be/internal/repository/unitofwork"
	"explore-state-be/internal/service"
	"explore-state-be/internal/websocket"
	"explore-state-be/pkg/events"
	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/datasource/testdata"
	"explore-state-be/pkg/explore/pipeline"
	pktNats "explore-state-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const containerModule = "BOOTSTRAP"

type Container struct {
	// Controllers
	ExploreController    controller.IExploreController
	ExploreStreamHandler *handler.ExploreStreamHandler

	// Background services, started by Start
	HistoryConsumer service.IHistoryConsumerService
	StreamService   service.IExploreStreamService

	Sessions     *memory.SessionRepository
	WebSocketHub *websocket.Hub
	Metrics      *prometheus.Registry
	Logger       logger.ILogger

	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	pubSub  *gochannel.GoChannel
	rdb     *redis.Client
}

// NewContainer wires the service. db may be nil, in which case query
// history and correlations are kept per session only.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	clock := quartz.NewReal()

	// Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)

	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}
	var eventPublisher events.Publisher
	if natsPub != nil {
		eventPublisher = natsPub
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	redisUp := true
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		redisUp = false
	}

	var preferenceProvider service.PreferenceProvider = memory.NewPreferenceRepository()
	if redisUp {
		preferenceProvider = redisstore.NewPreferenceStore(rdb)
	}

	// WebSocket hub
	streamLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)
	var hubRedis *redis.Client
	if redisUp {
		hubRedis = rdb
	}
	wsHub := websocket.NewHub(hubRedis, streamLogger)
	go wsHub.Run()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := pipeline.NewMetrics(registry)

	// Datasources
	dsRegistry := datasource.NewStaticRegistry(cfg.Explore.DefaultDatasource,
		testdata.New(cfg.Explore.DefaultDatasource, "TestData", clock,
			testdata.WithLiveInterval(cfg.Explore.TestdataLiveEvery)),
		testdata.New(cfg.Explore.DefaultDatasource+"-logs", "TestData Logs", clock,
			testdata.WithLiveInterval(cfg.Explore.TestdataLiveEvery),
			testdata.WithLogLines(50)),
	)

	// Persistence
	var (
		historyPublisher service.IHistoryPublisherService
		historyConsumer  service.IHistoryConsumerService
		historyService   service.IHistoryService
		correlations     service.ICorrelationService
	)
	if db != nil {
		uowFactory := unitofwork.NewRepositoryFactory(db)
		historyPublisher = service.NewHistoryPublisherService(cfg.Explore.HistoryTopic, pubSub)
		historyConsumer = service.NewHistoryConsumerService(
			pubSub,
			cfg.Explore.HistoryTopic,
			uowFactory,
			eventPublisher,
			cfg.Explore.HistoryRetention,
			sysLogger,
		)
		historyService = service.NewHistoryService(uowFactory)
		correlations = service.NewCorrelationService(uowFactory, eventPublisher, sysLogger)
	} else {
		sysLogger.Warn(containerModule, "No database configured, history and correlations stay in memory", nil)
	}

	sessions := memory.NewSessionRepository(cfg.Explore.SessionTTL, cfg.Explore.SessionCleanup)
	streamService := service.NewExploreStreamService(wsHub, clock, cfg.Explore.BroadcastMinPeriod, streamLogger)

	exploreService := service.NewExploreService(service.ExploreDependencies{
		Sessions:     sessions,
		Registry:     dsRegistry,
		Preferences:  preferenceProvider,
		History:      historyPublisher,
		Correlations: correlations,
		Stream:       streamService,
		Events:       eventPublisher,
		Metrics:      pipelineMetrics,
		Clock:        clock,
		Logger:       sysLogger,
	}, cfg.Explore)

	return &Container{
		ExploreController:    controller.NewExploreController(exploreService, historyService, correlations),
		ExploreStreamHandler: handler.NewExploreStreamHandler(exploreService, streamService, wsHub, streamLogger),

		HistoryConsumer: historyConsumer,
		StreamService:   streamService,

		Sessions:     sessions,
		WebSocketHub: wsHub,
		Metrics:      registry,
		Logger:       sysLogger,

		natsPub: natsPub,
		natsSub: natsSub,
		pubSub:  pubSub,
		rdb:     rdb,
	}
}

// Start runs the background consumers until ctx is done.
func (c *Container) Start(ctx context.Context) {
	if c.HistoryConsumer != nil {
		if err := c.HistoryConsumer.Consume(ctx); err != nil {
			c.Logger.Error(containerModule, "History consumer failed to start", map[string]interface{}{"error": err.Error()})
		}
	}
	if c.natsSub != nil {
		if err := c.StreamService.Listen(ctx, c.natsSub); err != nil {
			c.Logger.Error(containerModule, "Event listener failed to start", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Close releases sessions first so their last history entries are queued,
// then the transports.
func (c *Container) Close() {
	c.Sessions.CloseAll()
	c.WebSocketHub.Stop()
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if err := c.pubSub.Close(); err != nil {
		c.Logger.Warn(containerModule, "Failed to close event bus", map[string]interface{}{"error": err.Error()})
	}
	if err := c.rdb.Close(); err != nil {
		c.Logger.Warn(containerModule, "Failed to close redis", map[string]interface{}{"error": err.Error()})
	}
}
