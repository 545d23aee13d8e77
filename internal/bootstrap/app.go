package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	httpHandler "huddle/internal/handler/http"
	wsHandler "huddle/internal/handler/websocket"
	"huddle/internal/hub"
	"huddle/internal/infra/setup"
	redisstate "huddle/internal/infra/state/redis"
	"huddle/internal/middleware"
	"huddle/internal/service"
	"huddle/internal/tasks"
	"huddle/internal/worker"
)

// Config holds everything read from the environment (or .env) at startup.
type Config struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ServerPort      string
	LogLevel        string
	AppEnv          string
	KeyPrefix       string
	CORSOrigin      string
	RoomTTL         time.Duration
	HistoryLimit    int
	ReplayLimit     int
	DedupTTL        time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// LoadConfig reads configuration from environment variables, preferring a
// .env file when one is present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		KeyPrefix:     os.Getenv("REDIS_KEY_PREFIX"),
		CORSOrigin:    os.Getenv("CORS_ALLOWED_ORIGIN"),
		// defaults
		RoomTTL:         24 * time.Hour,
		HistoryLimit:    100,
		ReplayLimit:     50,
		DedupTTL:        10 * time.Minute,
		RateLimitMax:    100,
		RateLimitWindow: 1 * time.Second,
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid REDIS_DB %q", v)
		}
		cfg.RedisDB = n
	}

	if v := os.Getenv("ROOM_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ROOM_TTL %q: %w", v, err)
		}
		cfg.RoomTTL = d
	}
	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid HISTORY_LIMIT %q", v)
		}
		cfg.HistoryLimit = n
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "hud:"
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "http://localhost:3000"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.ReplayLimit > cfg.HistoryLimit {
		cfg.ReplayLimit = cfg.HistoryLimit
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App wires every component of the server process together.
type App struct {
	Config         *Config
	Log            *logrus.Logger
	ServerID       string
	RedisClient    *redis.Client
	AsynqServer    *worker.WorkerServer
	Hub            *hub.Hub
	HttpServer     *http.Server
	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
}

// NewApp builds a fully wired but not yet running application.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	// Package-level logrus calls in the services share the same config.
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	logrus.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s)", logLevel.String())

	serverID := uuid.NewString()
	log.Infof("Server instance ID: %s", serverID)

	log.Info("Initializing infrastructure...")
	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix, cfg.HistoryLimit, cfg.DedupTTL)
	log.Info("State repository initialized")

	roomService := service.NewRoomService(stateRepo, cfg.RoomTTL)
	memberService := service.NewMemberService(stateRepo, cfg.RoomTTL, cfg.ReplayLimit)
	messageService := service.NewMessageService(stateRepo, cfg.RoomTTL)
	log.Info("Services initialized")

	hubInstance := hub.NewHub(redisClient, cfg.KeyPrefix)
	websocketHandler := wsHandler.NewWebSocketHandler(hubInstance, roomService, memberService, messageService, serverID)
	roomHandler := httpHandler.NewRoomHandler(roomService)
	healthHandler := httpHandler.NewHealthHandler(stateRepo, serverID)
	log.Info("Handlers initialized")

	workerServer := worker.NewWorkerServer(redisClientOpt, stateRepo, roomService, log)
	log.Info("Worker server initialized")

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	router.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api")
	{
		api.POST("/rooms", roomHandler.CreateRoom)
		api.GET("/rooms/:alias", roomHandler.LookupRoom)
	}
	router.GET("/ws", websocketHandler.HandleConnection)
	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/readyz", healthHandler.Readyz)
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	app := &App{
		Config:         cfg,
		Log:            log,
		ServerID:       serverID,
		RedisClient:    redisClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// Start launches the worker, the periodic reaper schedule and the HTTP
// server. It returns immediately; use Shutdown to stop everything.
func (a *App) Start() {
	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	taskPayload, err := tasks.NewRoomReapTask()
	if err != nil {
		a.Log.Errorf("Failed to create room reap task payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeRoomReap, taskPayload)

	schedule := "@every 1m"
	entryID, err := scheduler.Register(schedule, task, asynq.Queue("default"))
	if err != nil {
		a.Log.Errorf("Could not register periodic room reap task: %v", err)
	} else {
		a.Log.Infof("Periodic room reap task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	}

	a.scheduler = scheduler
	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil {
			if !errors.Is(err, asynq.ErrServerClosed) {
				a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			} else {
				a.Log.Info("Asynq scheduler stopped.")
			}
		}
	}()
}

// Shutdown stops the application gracefully: broadcast subscriptions first so
// no frame handler races a closed component, then the worker, then HTTP.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.Hub != nil {
		a.Hub.StopAllSubscriptions()
	}

	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware logs each HTTP request with latency and status.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
