package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airu-app/supportchat/internal/ai"
	"github.com/airu-app/supportchat/internal/analysis"
	"github.com/airu-app/supportchat/internal/chat"
	"github.com/airu-app/supportchat/internal/config"
	"github.com/airu-app/supportchat/internal/db"
	"github.com/airu-app/supportchat/internal/httpapi"
	"github.com/airu-app/supportchat/internal/store/rabbitmq"
	"github.com/airu-app/supportchat/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	repo := chat.NewRepo(gdb)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer pub.Close()

	gen := ai.NewClient(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel)
	trigger := analysis.NewQueueTrigger(repo, pub, rds)

	router := httpapi.NewRouter(cfg, repo, gen, trigger)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening addr=%s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
