package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/waste2worth/backend/internal/auth"
	"github.com/waste2worth/backend/internal/chat"
	"github.com/waste2worth/backend/internal/config"
	"github.com/waste2worth/backend/internal/data"
	"github.com/waste2worth/backend/internal/db"
	"github.com/waste2worth/backend/internal/mailer"
	"github.com/waste2worth/backend/internal/middleware"
	"github.com/waste2worth/backend/internal/otp"
)

func main() {
	_ = godotenv.Load()

	cfg := config.New()
	if cfg.MongoURI == "" {
		log.Fatal("MONGODB_URI must be set")
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.DatabaseName)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	// Stores over the Mongo collections
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	postsStore := data.NewPostsStore(dbClient.PostsCollection())
	threadsStore := data.NewThreadsStore(dbClient.ThreadsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	// Chat core: hub wakes live views, service owns the send/read
	// semantics, stream serves the live feeds
	hub := chat.NewHub()
	chatSvc := chat.NewService(threadsStore, msgsStore, hub)
	chatStream := chat.NewStream(msgsStore, hub)

	jwtMgr := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Duration)

	// small burst to allow a couple of quick retries
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()

	otpMgr := otp.NewManager(otp.DefaultTTL, 1*time.Minute)
	defer otpMgr.Stop()

	srv := newServer(usersStore, postsStore, chatSvc, chatStream, jwtMgr, otpMgr, mailer.New(cfg.MailRelayURL), limiterStore)

	r := gin.Default()
	srv.routes(r)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("API server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
