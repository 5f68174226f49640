package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"wellbeing-checkin-service/internal/app"
	"wellbeing-checkin-service/internal/config"
	"wellbeing-checkin-service/internal/infra/memory"
	pgstore "wellbeing-checkin-service/internal/infra/postgres"
	redisinfra "wellbeing-checkin-service/internal/infra/redis"
	transport "wellbeing-checkin-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the check-in server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Question source: Postgres templates when available, fixed defaults
	// otherwise; cached in Redis or in-process to spare the upstream.
	var provider app.QuestionProvider = memory.NewStaticQuestionProvider(nil)
	if pool != nil {
		provider = pgstore.NewQuestionLoader(pool)
	}
	questionTTL := config.Duration(cfg.CheckIn.QuestionTTL, 10*time.Minute)
	if redisClient != nil {
		provider = redisinfra.NewQuestionCache(redisClient, provider, questionTTL)
	} else {
		provider = memory.NewCachedQuestionProvider(provider, questionTTL)
	}

	var repo app.AssessmentRepository = memory.NewAssessmentStore()
	opts := []app.Option{
		app.WithInterval(config.Duration(cfg.CheckIn.Interval, app.DefaultInterval)),
	}
	if pool != nil {
		repo = pgstore.NewAssessmentStore(pool)
		opts = append(opts, app.WithDirectory(pgstore.NewDirectory(pool)))
	}
	if maxAge := config.Duration(cfg.CheckIn.MaxPendingAge, 0); maxAge > 0 {
		opts = append(opts, app.WithExpiryPolicy(app.MaxAge(maxAge)))
	}

	service := app.NewCheckInService(repo, provider, opts...)
	handler := transport.NewHandler(service)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting check-in service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
