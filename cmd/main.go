package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkflow-backend/internal/config"
	"inkflow-backend/internal/generation"
	"inkflow-backend/internal/handler"
	"inkflow-backend/internal/notify"
	"inkflow-backend/internal/storage"
	"inkflow-backend/internal/transport"
	"inkflow-backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	store := newStore(cfg)
	client := transport.NewClient(cfg.Backend.CompletionURL, cfg.Backend.Timeout)
	bus := notify.NewBus()
	coord := generation.NewCoordinator(cfg, client, store, bus)

	genHandler := handler.NewGenerationHandler(coord)

	router := setupRouter(cfg, genHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")

	// The active run gets a chance to flush and force-save before the
	// listener goes away.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	coord.Shutdown(ctx)

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	if err := store.Close(); err != nil {
		logger.Errorf("存储关闭失败: %v", err)
	}
	logger.Info("服务器已关闭")
}

func newStore(cfg *config.Config) storage.Store {
	var store storage.Store
	if cfg.Storage.Type == "disk" {
		store = storage.NewDiskStore(cfg.Storage.DataDir)
	} else {
		store = storage.NewMemoryStore()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize storage: %v", err)
		store = storage.NewMemoryStore()
		store.Init()
	}
	return store
}

func setupRouter(cfg *config.Config, genHandler *handler.GenerationHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		gen := api.Group("/generation")
		{
			gen.POST("/start", genHandler.Start)
			gen.POST("/continue", genHandler.Continue)
			gen.POST("/cancel", genHandler.Cancel)
			gen.GET("/snapshot", genHandler.Snapshot)
			gen.GET("/status", genHandler.Status)
			gen.GET("/subscribe", genHandler.Subscribe)
		}
	}

	return router
}
