package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"robottracker/config"
	"robottracker/engine"
	"robottracker/messaging"
	"robottracker/statecache"
	"robottracker/store"
	"robottracker/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "robottracker.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("robottracker", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("robottracker: database open (%s)", cfg.Database.Driver)

	// Redis mirror of the live register
	var cache *statecache.RedisStore
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("robottracker: redis not available (%v), running without cache", err)
		} else {
			cache = statecache.NewRedisStore(redisClient, "")
			log.Printf("robottracker: redis connected (%s)", cfg.Redis.Address)
		}
		cancel()
	}

	// Messaging client
	msgCfg := cfg.Messaging
	msgClient := messaging.NewClient(&msgCfg)
	if err := msgClient.Connect(); err == nil {
		log.Printf("robottracker: messaging connected (%s)", msgClient.Backend())
	} else if !errors.Is(err, messaging.ErrDisabled) {
		log.Printf("robottracker: messaging connect failed (%v)", err)
	}
	defer msgClient.Close()

	// Engine
	eng, err := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Cache:      cache,
		MsgClient:  msgClient,
		Debug:      cfg.Log.Debug,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	eng.Start()
	defer eng.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("robottracker: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("robottracker: ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("robottracker: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("robottracker: stopped")
}
