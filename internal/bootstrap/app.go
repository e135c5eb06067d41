package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"analyzer-backend/internal/analyses"
	"analyzer-backend/internal/engine"
	"analyzer-backend/internal/queue"
	"analyzer-backend/internal/services/health"
	"analyzer-backend/internal/shared/config"
	"analyzer-backend/internal/shared/server"
	"analyzer-backend/internal/shared/storage/db"
	"analyzer-backend/internal/shared/storage/object"
	localstore "analyzer-backend/internal/shared/storage/object/local"
	s3store "analyzer-backend/internal/shared/storage/object/s3"
	"analyzer-backend/internal/users"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Redis           *redis.Client
	Store           object.ObjectStore
	Queue           queue.Client
	Engine          engine.Engine
	UsersRepo       users.Repo
	AnalysesRepo    analyses.Repo
	AnalysesService *analyses.Service
	Executor        *analyses.Executor
	AnalysisHandler *analyses.Handler
	Health          *health.Service
}

// Build prepares dependencies for the API process: migrations run on connect
// and the router is wired.
func Build(cfg config.Config) (*App, error) {
	app, err := build(cfg, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		return nil, err
	}
	if app.DB != nil {
		if err := db.RunMigrations(context.Background(), app.DB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		AnalysisHandler: app.AnalysisHandler,
		Health:          app.Health,
	})
	return app, nil
}

// BuildWorker prepares dependencies for the executor process. No router; the
// schema is assumed to be migrated already.
func BuildWorker(cfg config.Config) (*App, error) {
	return build(cfg, db.OptionsFromEnv(db.DefaultWorkerOptions()))
}

func build(cfg config.Config, dbOpts db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, dbOpts)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := queue.NewAsynqClient(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		return nil, fmt.Errorf("build queue client: %w", err)
	}

	redisClient, err := buildRedis(cfg)
	if err != nil {
		return nil, err
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return nil, err
	}

	var userRepo users.Repo
	var analysisRepo analyses.Repo
	if sqlDB != nil {
		userRepo = &users.PGRepo{DB: sqlDB}
		analysisRepo = &analyses.PGRepo{DB: sqlDB}
	} else {
		userRepo = users.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
	}

	analysisSvc := &analyses.Service{
		Repo:           analysisRepo,
		Users:          userRepo,
		Store:          store,
		Queue:          queueClient,
		AcceptedTypes:  cfg.AcceptedMimeTypes,
		MaxJobDuration: cfg.MaxJobDuration,
	}

	return &App{
		Config:          cfg,
		DB:              sqlDB,
		Redis:           redisClient,
		Store:           store,
		Queue:           queueClient,
		Engine:          eng,
		UsersRepo:       userRepo,
		AnalysesRepo:    analysisRepo,
		AnalysesService: analysisSvc,
		Executor:        &analyses.Executor{Repo: analysisRepo, Store: store, Engine: eng},
		AnalysisHandler: analyses.NewHandler(analysisSvc),
		Health:          health.NewService(sqlDB, redisClient),
	}, nil
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRedis(cfg config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func buildEngine(cfg config.Config) (engine.Engine, error) {
	if strings.TrimSpace(cfg.EngineURL) == "" {
		log.Printf("bootstrap: ENGINE_URL empty; jobs will fail until an engine is configured")
		return engine.Placeholder{}, nil
	}
	return engine.NewHTTPClient(cfg.EngineURL, cfg.EngineAPIKey, cfg.EngineTimeout)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
