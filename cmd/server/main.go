// Package main runs the broadcast supervisor HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/relaycast/broadcaster/config"
	"github.com/relaycast/broadcaster/internal/encoder"
	"github.com/relaycast/broadcaster/internal/middleware"
	"github.com/relaycast/broadcaster/internal/notify"
	"github.com/relaycast/broadcaster/internal/proc"
	"github.com/relaycast/broadcaster/internal/profile"
	"github.com/relaycast/broadcaster/internal/stream"
	"github.com/relaycast/broadcaster/pkg/database"
	"github.com/relaycast/broadcaster/pkg/redis"
	"github.com/relaycast/broadcaster/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	outbox := notify.NewOutbox(rdb.Client, logger)
	profiles := profile.NewRegistry(cfg.Stream.DefaultTier)
	builder := encoder.NewBuilder(cfg.Encoder.FFmpegPath, cfg.Encoder.WorkDir)
	repo := stream.NewRepository(pool)

	launcher := func(bin string, args []string) (stream.Process, error) {
		return proc.Spawn(bin, args)
	}
	sup := stream.New(stream.Options{
		RestartCeiling:        cfg.Stream.RestartCeiling,
		RestartBackoff:        cfg.Stream.RestartBackoff,
		StopTimeout:           cfg.Stream.StopTimeout,
		SingleSessionPerOwner: cfg.Stream.SingleSessionPerOwner,
		DefaultDestination: encoder.Destination{
			URL: cfg.Stream.DefaultRTMPURL,
			Key: cfg.Stream.DefaultStreamKey,
		},
	}, profiles, builder, launcher, repo, outbox.Notify, logger)
	defer sup.Close()

	restoreSessions(ctx, sup, repo, logger)

	adaptCtx, adaptCancel := context.WithCancel(context.Background())
	defer adaptCancel()
	if cfg.Adaptation.Enabled {
		go sup.RunAdaptation(adaptCtx, stream.AdaptOptions{
			Interval:  cfg.Adaptation.Interval,
			HighWater: cfg.Adaptation.HighWaterPct,
			LowWater:  cfg.Adaptation.LowWaterPct,
		}, nil)
	}

	streamHandler := stream.NewHandler(sup, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	router.POST("/streams", streamHandler.Start)
	router.GET("/streams", streamHandler.List)
	router.GET("/streams/:id", streamHandler.Get)
	router.DELETE("/streams/:id", streamHandler.Stop)
	router.POST("/streams/:id/pause", streamHandler.Pause)
	router.POST("/streams/:id/resume", streamHandler.Resume)
	router.POST("/streams/:id/profile", streamHandler.ChangeProfile)
	router.GET("/streams/:id/playlist", streamHandler.GetPlaylist)
	router.POST("/streams/:id/playlist/items", streamHandler.AddPlaylistItem)
	router.DELETE("/streams/:id/playlist/items/:itemID", streamHandler.RemovePlaylistItem)
	router.POST("/streams/:id/playlist/advance", streamHandler.AdvancePlaylist)
	router.POST("/streams/:id/playlist/items/:itemID/played", streamHandler.MarkItemPlayed)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	adaptCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	sup.Close()
	logger.Info("server stopped")
}

// restoreSessions restarts broadcasts that were live when the previous
// process stopped. Each stale row is finalized and replaced by a fresh
// session started through the regular typed Start operation.
func restoreSessions(ctx context.Context, sup *stream.Supervisor, repo *stream.Repository, logger *zap.Logger) {
	resumable, err := repo.ListResumable(ctx)
	if err != nil {
		logger.Warn("list resumable sessions", zap.Error(err))
		return
	}
	for _, r := range resumable {
		if err := repo.FinalizeStale(ctx, r.Record.ID); err != nil {
			logger.Warn("finalize stale session", zap.String("session_id", r.Record.ID.String()), zap.Error(err))
			continue
		}
		if r.Record.Source.Kind == encoder.KindPlaylist && len(r.Record.Source.Items) == 0 {
			// Everything already delivered; nothing left to resume.
			continue
		}
		view, err := sup.Start(r.Record.OwnerID, r.Record.Source, r.Record.Destination, r.Record.Tier, r.Record.Loop)
		if err != nil {
			logger.Warn("resume session failed",
				zap.String("stale_id", r.Record.ID.String()), zap.Error(err))
			continue
		}
		logger.Info("session resumed",
			zap.String("stale_id", r.Record.ID.String()),
			zap.String("session_id", view.ID.String()))
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
