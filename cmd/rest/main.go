package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"explore-state-be/internal/bootstrap"
	"explore-state-be/internal/config"
	"explore-state-be/internal/server"
	"explore-state-be/internal/tracer"
	"explore-state-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	cfg := config.Load()

	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		pool := database.DefaultPool
		pool.Quiet = cfg.App.Environment == "production"
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, pool)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		gormDB = db
	} else {
		log.Println("DB_CONNECTION_STRING not set, running without persistence")
	}

	container := bootstrap.NewContainer(gormDB, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	container.Start(ctx)

	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			log.Printf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	if err := srv.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	container.Close()
}
