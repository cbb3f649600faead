package main

import (
	"context"
	"log"
	"os"

	"github.com/example/roomchat/config"
	"github.com/example/roomchat/modules/activity"
	"github.com/example/roomchat/modules/api"
	"github.com/example/roomchat/modules/broadcast"
	"github.com/example/roomchat/modules/presence"
	"github.com/example/roomchat/modules/session"
	"github.com/example/roomchat/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Room Chat - Fiber WebSocket + SQLite ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// The presence registry lives for the whole process and is shared by the
	// broadcaster, the session handler and the API.
	registry := presence.NewRegistry()

	storeModule := store.NewModule(cfg.DBPath, cfg.DBDebug, logger.WithModule("store"))
	broadcastModule := broadcast.NewModule(registry, cfg.SendBuffer, logger.WithModule("broadcast"))
	sessionModule := session.NewModule(
		storeModule,
		registry,
		broadcastModule.GetHub(),
		session.Options{
			HistoryLimit: cfg.HistoryLimit,
			RateLimit:    cfg.RateLimit,
			RateBurst:    cfg.RateBurst,
		},
		logger.WithModule("session"),
	)
	activityModule := activity.NewModule(logger.WithModule("activity"))
	apiModule := api.NewModule(api.Options{
		Port:               cfg.Port,
		PublicDir:          cfg.PublicDir,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger.WithModule("api"))

	// Inject in-process collaborators into the API module
	// (These are not exposed via ServiceContainer)
	apiModule.SetHub(broadcastModule.GetHub())
	apiModule.SetSessions(sessionModule.Handler())
	apiModule.SetPresence(registry)
	apiModule.SetActivity(activityModule.Tracker())

	// Register modules with the framework.
	// - store: message log (ServiceProviderModule)
	// - broadcast: websocket hub
	// - session: per-connection state machine (EventEmitterModule)
	// - activity: room counters (EventConsumerModule)
	// - api: Fiber HTTP/WebSocket server, depends on store
	app.Register(storeModule)
	app.Register(broadcastModule)
	app.Register(sessionModule)
	app.Register(activityModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Printf("  - SQLite database: %s", cfg.DBPath)
	log.Printf("  - Static assets: %s", cfg.PublicDir)
	log.Println("")
	log.Printf("HTTP Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                          - Health check")
	log.Println("  GET    /api/v1/rooms                    - Rooms with online counts and activity")
	log.Println("  GET    /api/v1/rooms/:room/history      - Recent messages (limit 1..100)")
	log.Println("  GET    /api/v1/messages/:id             - Single message")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Println(`  Frames: {"event": "<name>", "data": <payload>}`)
	log.Println("  Client events: join, message, typing, react, switchRoom, disconnect")
	log.Println("  Server events: history, message, system, users, typing, reaction")
	log.Println(`  On join/switchRoom the room's backlog arrives once as {"event":"history","data":{"room":..,"messages":[..]}}`)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
