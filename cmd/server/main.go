package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carecompanion/internal/core"
	"carecompanion/internal/db"
	httpserver "carecompanion/internal/http"
	"carecompanion/internal/llm"
	"carecompanion/internal/session"
	"carecompanion/internal/triage"
	"carecompanion/internal/vignette"

	_ "github.com/lib/pq"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to construct logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Session store: in-process by default, Redis when SESSION_STORE=redis.
	store, err := buildSessionStore(logger)
	if err != nil {
		logger.Fatal("failed to construct session store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	// Inference backend (uses env: OPENAI_API_KEY, OPENAI_MODEL_CHAT,
	// OPENAI_MODEL_SUMMARY).
	llmClient := llm.NewOpenAIClient()

	// Guideline ruleset: empty unless a rules file is configured.
	var guidelines []triage.GuidelineRule
	if path := os.Getenv("GUIDELINE_RULES"); path != "" {
		guidelines, err = triage.LoadGuidelineRules(path)
		if err != nil {
			logger.Fatal("failed to load guideline rules", zap.Error(err))
		}
		logger.Info("guideline rules loaded", zap.String("path", path), zap.Int("rules", len(guidelines)))
	}

	// Persistence collaborator: Postgres when DATABASE_URL is set, otherwise
	// turn records are only logged.
	var (
		recorder core.Recorder
		repo     *db.Repository
		notifier *db.Notifier
	)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		dbConn, err := sql.Open("postgres", dbURL)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := dbConn.PingContext(ctx); err != nil {
			cancel()
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		cancel()
		if err := db.Migrate(context.Background(), dbConn); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		channel := os.Getenv("ALERT_CHANNEL")
		if channel == "" {
			channel = "triage_alerts"
		}
		notifier = db.NewNotifier(dbConn, dbURL, channel, logger)
		repo = db.NewRepository(dbConn, notifier)
		recorder = repo
	} else {
		logger.Warn("DATABASE_URL not set; turn records will not be persisted")
		recorder = core.NewLogRecorder(logger)
	}

	extractor := core.NewExtractor(llmClient, logger)
	evaluator := triage.NewEvaluator()
	orch := core.NewOrchestrator(store, llmClient, extractor, evaluator, guidelines, recorder, logger, 0)
	summarizer := core.NewSummarizer(llmClient)

	deck, err := vignette.LoadDeck()
	if err != nil {
		logger.Fatal("failed to load vignette deck", zap.Error(err))
	}

	// an interface holding a nil *db.Repository would not compare equal to
	// nil, so only assign when a database is configured
	var archive httpserver.Archive
	if repo != nil {
		archive = repo
	}
	srv := httpserver.NewServer(orch, summarizer, store, archive, deck, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{Addr: ":" + port, Handler: srv.Router()}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// stop serving when any sibling in the group fails
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if notifier != nil {
		g.Go(func() error {
			alerts, err := notifier.Listen(ctx)
			if err != nil {
				return err
			}
			for sessionID := range alerts {
				logger.Warn("emergency triage alert", zap.String("session_id", sessionID))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// buildSessionStore reads SESSION_STORE ("memory" default, or "redis" with
// REDIS_ADDR/REDIS_PASSWORD) and constructs the matching driver.
func buildSessionStore(logger *zap.Logger) (session.Store, error) {
	storeType := session.StoreType(os.Getenv("SESSION_STORE"))
	if storeType == "" {
		storeType = session.StoreTypeMemory
	}
	if storeType != session.StoreTypeRedis {
		return session.NewStore(storeType)
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	logger.Info("using redis session store", zap.String("addr", addr))
	return session.NewStore(session.StoreTypeRedis, session.WithRedisClient(client))
}
