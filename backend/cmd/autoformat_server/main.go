package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"autoformat-service/backend/config"
	"autoformat-service/backend/internal/collab"
	"autoformat-service/backend/internal/decorate"
	"autoformat-service/backend/internal/engine"
	"autoformat-service/backend/internal/httpapi/handlers"
	"autoformat-service/backend/internal/httpapi/middleware"
	"autoformat-service/backend/internal/persist"
	"autoformat-service/backend/internal/store"
	"autoformat-service/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: port=%d storage=%s kafka=%v recording=%v",
		cfg.Running.Port, cfg.Storage.Backend, cfg.Kafka.Brokers, cfg.Recording.Default)

	ctx := context.Background()
	st, closeStore, err := store.Open(ctx, cfg.Storage.Backend, cfg.StoreOptions())
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStore()

	table, err := cfg.MarkerTable()
	if err != nil {
		log.Fatalf("invalid marker rules: %v", err)
	}

	// === Kafka Producer（没配 brokers 就不发事件）===
	var publisher collab.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaCfg := sarama.NewConfig()
		// SyncProducer 必须开启 Return.Successes
		kafkaCfg.Producer.Return.Successes = true
		kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
		producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
		if err != nil {
			log.Fatalf("Failed to connect kafka: %v", err)
		}
		defer producer.Close()

		dispatcher := collab.NewKafkaDispatcher(
			producer,
			cfg.Kafka.Topic,
			collab.NewSemaphoreControl(collab.DefaultSemaphoreSize),
			collab.KafkaDispatcherOptions{
				QueueSize:   10_000,
				Workers:     4,
				MaxRetry:    3,
				BaseBackoff: 50 * time.Millisecond,
				MaxBackoff:  1 * time.Second,
			},
		)
		// 先于 producer.Close 执行，把队列里的事件发完
		defer func() {
			dispatcher.Close()
			st := dispatcher.Stats()
			log.Printf("kafka dispatcher closed: sent=%d dropped=%d", st.Sent, st.Dropped)
		}()
		publisher = dispatcher
	}

	svc := collab.NewInMemoryService(
		engine.New(table),
		decorate.Default(),
		persist.NewAdapter(st),
		publisher,
		collab.Options{
			HistoryCap:       cfg.History.Capacity,
			RecordingDefault: cfg.Recording.Default,
		},
	)
	hub := ws.NewHub()
	svc.OnCommit(hub.BroadcastCommit)
	manager := ws.NewManager(hub, svc, collab.NewSemaphoreControl(collab.DefaultSemaphoreSize), ws.ManagerOptions{
		AllowedOrigins:  cfg.Websocket.AllowedOrigins,
		MaxMessageBytes: cfg.Websocket.MaxMessageBytes,
	})

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	editor := r.Group("/editor")
	editor.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	// auth.secret 为空时中间件直接放行
	editor.Use(middleware.AuthMiddleware(cfg.Auth.Secret))
	handlers.NewDocumentHandler(svc).Register(editor)
	editor.GET("/ws", manager.WebSocketConnect)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Running.Port),
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down autoformat server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	// 已升级的 websocket 不归 srv 管；关掉之后 defer 里的 dispatcher.Close 不会再收到事件
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Printf("websocket shutdown: %v", err)
	}
}
