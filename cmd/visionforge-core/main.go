// visionforge-core is the orchestrator process: it hosts the pipeline
// engine and the generation queue's executor behind a small HTTP/WebSocket
// API the embedding UI talks to.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/visionforge/core/pkg/config"
	"github.com/visionforge/core/pkg/corestate"
	"github.com/visionforge/core/pkg/database"
	"github.com/visionforge/core/pkg/diffusion"
	"github.com/visionforge/core/pkg/events"
	"github.com/visionforge/core/pkg/llm"
	"github.com/visionforge/core/pkg/pipeline"
	"github.com/visionforge/core/pkg/queue"
	"github.com/visionforge/core/pkg/storage"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("VISIONFORGE_CONFIG", "./visionforge.yaml"), "Path to visionforge.yaml")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
		log.Printf("Continuing with existing environment variables...")
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "release")
	gin.SetMode(ginMode)

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Printf("Warning: could not load %s (%v), falling back to defaults", *configPath, err)
		cfg = config.Default()
	}

	layout, err := storage.NewLayout(cfg.StorageRoot)
	if err != nil {
		log.Fatalf("Failed to resolve storage layout: %v", err)
	}
	if err := layout.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create storage directories: %v", err)
	}

	ctx := context.Background()
	dbClient, err := database.NewClient(ctx, database.DefaultConfig(layout.DatabasePath()))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer dbClient.Close()
	log.Printf("store ready at %s", layout.DatabasePath())

	httpClient := &http.Client{Timeout: 0} // per-call timeouts are applied via context
	state := corestate.New(cfg, httpClient)

	bus := events.NewBus()
	pub := events.NewPublisher(bus)

	llmClient := llm.NewClient(cfg.LLMEndpoint, httpClient)
	engine := pipeline.NewEngine(llmClient, pub)

	diffusionClient := diffusion.NewClient(cfg.DiffusionEndpoint, httpClient)
	store := queue.NewStore(dbClient.DB())
	images := queue.NewImageStore(dbClient.DB())
	manager := queue.NewManager(store, state)
	executor := queue.NewExecutor(manager, images, diffusionClient, layout, state, pub)

	n, err := manager.RequeueInterrupted(ctx)
	if err != nil {
		log.Fatalf("Failed to requeue interrupted jobs: %v", err)
	}
	if n > 0 {
		log.Printf("requeued %d interrupted job(s) from a prior crash", n)
	}

	execCtx, cancelExec := context.WithCancel(ctx)
	defer cancelExec()
	go executor.Run(execCtx)

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(reqCtx, dbClient.DB())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "store": dbHealth, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":            "healthy",
			"store":             dbHealth,
			"diffusionReachable": diffusionClient.CheckHealth(reqCtx),
		})
	})

	router.GET("/events", func(c *gin.Context) { eventsWSHandler(c, bus) })

	api := &server{manager: manager, engine: engine, state: state}
	api.registerRoutes(router)

	log.Printf("visionforge-core listening on :%s", httpPort)
	httpServer := &http.Server{Addr: ":" + httpPort, Handler: router}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	cancelExec()
}

// eventsWSHandler relays every bus event to one connected client as JSON
// frames, for the lifetime of the connection.
func eventsWSHandler(c *gin.Context, bus *events.Bus) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}
