package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-review-be/internal/bootstrap"
	"ai-review-be/internal/config"
	"ai-review-be/internal/server"
	"ai-review-be/internal/tracer"
	"ai-review-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer(tracer.ConfigFromEnv("ai-review-backend"))
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Database (optional archive)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.Open(ctx, cfg.Database.Connection, database.DefaultOptions(cfg.IsProduction()), 10*time.Second)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		defer database.Close(db)
		gormDB = db
	} else {
		log.Println("[INFO] DB_CONNECTION_STRING not set, reviews are kept in memory only")
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(ctx, gormDB, cfg)
	defer container.Close()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 5. Run Server
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
