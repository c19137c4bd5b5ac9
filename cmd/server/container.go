package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/comparator"
	"github.com/Abraxas-365/flowpilot/engine/engineapi"
	"github.com/Abraxas-365/flowpilot/engine/engineinfra"
	"github.com/Abraxas-365/flowpilot/engine/flowexec"
	"github.com/Abraxas-365/flowpilot/engine/msgprocessor"
	"github.com/Abraxas-365/flowpilot/engine/nodeexec"
	"github.com/Abraxas-365/flowpilot/engine/scheduler"
	"github.com/Abraxas-365/flowpilot/engine/sessmanager"

	"github.com/Abraxas-365/flowpilot/iam/auth"

	"github.com/Abraxas-365/flowpilot/tool"
	"github.com/Abraxas-365/flowpilot/tool/toolexec"
	"github.com/Abraxas-365/flowpilot/tool/toolinfra"

	"github.com/Abraxas-365/flowpilot/pkg/config"
	"github.com/Abraxas-365/flowpilot/pkg/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
)

// Container contains all application dependencies
type Container struct {
	// =================================================================
	// CONFIGURATION & INFRASTRUCTURE
	// =================================================================
	Config      *config.Config
	DB          *sqlx.DB
	RedisClient *redis.Client

	// =================================================================
	// AUTH
	// =================================================================
	TokenService   auth.TokenService
	AuthMiddleware *auth.AuthMiddleware

	// =================================================================
	// TOOLS
	// =================================================================
	ToolRepo     tool.ToolRepository
	ToolExecutor tool.ToolExecutor

	// =================================================================
	// ENGINE - REPOSITORIES & COLLABORATORS
	// =================================================================
	FlowRepo          engine.FlowRepository
	EngineSessionRepo engine.SessionRepository
	ConversationStore engine.ConversationStore
	AgentAssigner     engine.AgentAssigner
	TagStore          engine.TagStore
	ArticleStore      engine.ArticleStore
	EventPublisher    engine.EventPublisher
	Locker            engine.Locker
	IdempotencyStore  engine.IdempotencyStore

	// =================================================================
	// ENGINE - SERVICES
	// =================================================================
	SessionManager   *sessmanager.SessionManager
	FlowExecutor     *flowexec.FlowExecutor
	MessageProcessor *msgprocessor.MessageProcessor
	MetricsScheduler *scheduler.MetricsScheduler

	// =================================================================
	// HANDLERS
	// =================================================================
	EngineHandler *engineapi.EngineHandler
	EngineRoutes  *engineapi.EngineRoutes
}

// NewContainer creates and initializes all dependencies
func NewContainer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client) (*Container, error) {
	c := &Container{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
	}

	log.Println("🔧 Initializing auth...")
	c.initAuth()

	log.Println("🔧 Initializing tools...")
	c.initToolComponents()

	log.Println("🔧 Initializing engine...")
	if err := c.initEngineComponents(); err != nil {
		return nil, err
	}

	log.Println("🔧 Initializing handlers...")
	c.initHandlers()

	return c, nil
}

func (c *Container) initAuth() {
	c.TokenService = auth.NewJWTService(c.Config.Auth.JWT)
	c.AuthMiddleware = auth.NewAuthMiddleware(c.TokenService)
	log.Println("  ✅ JWT service initialized")
}

func (c *Container) initToolComponents() {
	c.ToolRepo = toolinfra.NewPostgresToolRepository(c.DB)
	// el timeout real lo pone cada invocación vía context
	c.ToolExecutor = toolexec.NewExecutor(&http.Client{})
	log.Println("  ✅ Tool repository and executor initialized")
}

func (c *Container) initEngineComponents() error {
	engineCfg := c.Config.Engine

	// Repositories
	c.FlowRepo = engineinfra.NewPostgresFlowRepository(c.DB)
	c.EngineSessionRepo = engineinfra.NewPostgresSessionRepository(c.DB)
	c.ConversationStore = engineinfra.NewPostgresConversationStore(c.DB)
	c.AgentAssigner = engineinfra.NewPostgresAgentAssigner(c.DB)
	c.TagStore = engineinfra.NewPostgresTagStore(c.DB)
	c.ArticleStore = engineinfra.NewPostgresArticleStore(c.DB)
	log.Println("  ✅ Engine repositories initialized")

	// Redis coordination
	c.EventPublisher = engineinfra.NewRedisEventPublisher(c.RedisClient, engineCfg.EventsChannel)
	c.Locker = engineinfra.NewRedisLocker(c.RedisClient, engineCfg.LockWait)
	c.IdempotencyStore = engineinfra.NewRedisIdempotencyStore(c.RedisClient)
	log.Println("  ✅ Redis locker, idempotency store and event publisher initialized")

	c.SessionManager = sessmanager.NewSessionManager(
		c.EngineSessionRepo,
		c.FlowRepo,
		c.Locker,
		&sessmanager.SessionManagerConfig{LockTTL: engineCfg.LockTTL},
	)

	nodeExecutors := nodeexec.All(nodeexec.Dependencies{
		Flows:             c.FlowRepo,
		Conversations:     c.ConversationStore,
		Assigner:          c.AgentAssigner,
		Tags:              c.TagStore,
		Articles:          c.ArticleStore,
		Tools:             c.ToolRepo,
		ToolExecutor:      c.ToolExecutor,
		Comparator:        comparator.New(),
		ToolTimeout:       engineCfg.ToolTimeout,
		DynamicCardsLimit: engineCfg.DynamicCardsLimit,
	})

	flowExecutor, err := flowexec.NewFlowExecutor(
		c.ConversationStore,
		c.EngineSessionRepo,
		c.EventPublisher,
		engineCfg.MaxStepsPerTurn,
		nodeExecutors...,
	)
	if err != nil {
		return err
	}
	c.FlowExecutor = flowExecutor
	log.Printf("  ✅ Flow executor initialized with %d node executors", len(nodeExecutors))

	c.MessageProcessor = msgprocessor.NewMessageProcessor(
		c.ConversationStore,
		c.SessionManager,
		c.FlowExecutor,
		c.IdempotencyStore,
		msgprocessor.Config{
			TurnTimeout:    engineCfg.TurnTimeout,
			IdempotencyTTL: engineCfg.IdempotencyTTL,
		},
	)
	log.Println("  ✅ Message processor initialized")

	if c.Config.Metrics.Enabled {
		metrics.InitMetrics()
		c.MetricsScheduler = scheduler.NewMetricsScheduler(c.EngineSessionRepo, c.Config.Metrics.RefreshSchedule)
	}

	return nil
}

func (c *Container) initHandlers() {
	c.EngineHandler = engineapi.NewEngineHandler(c.MessageProcessor, c.ConversationStore, c.SessionManager)
	c.EngineRoutes = engineapi.NewEngineRoutes(c.EngineHandler, c.AuthMiddleware)
}

// StartBackgroundServices arranca los jobs periódicos
func (c *Container) StartBackgroundServices(ctx context.Context) error {
	if c.MetricsScheduler == nil {
		return nil
	}
	return c.MetricsScheduler.Start(ctx)
}

// Cleanup detiene los servicios en segundo plano
func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")
	if c.MetricsScheduler != nil {
		c.MetricsScheduler.Stop()
	}
}

// HealthCheck verifica la salud de las dependencias
func (c *Container) HealthCheck() map[string]bool {
	health := make(map[string]bool)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	health["database"] = c.DB != nil && c.DB.PingContext(ctx) == nil
	health["redis"] = c.RedisClient != nil && c.RedisClient.Ping(ctx).Err() == nil

	return health
}
