package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/reloop/marketplace/internal/config"
	"github.com/reloop/marketplace/internal/es"
	"github.com/reloop/marketplace/internal/events"
	"github.com/reloop/marketplace/internal/handlers"
	"github.com/reloop/marketplace/internal/logging"
	"github.com/reloop/marketplace/internal/oauth"
	"github.com/reloop/marketplace/internal/session"
	"github.com/reloop/marketplace/internal/tips"
	"github.com/reloop/marketplace/internal/token"
	httpserver "github.com/reloop/marketplace/internal/transport/http"
	"github.com/reloop/marketplace/internal/upload"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	codec := &token.Codec{
		Secret:     []byte(configuration.TOKEN_SECRET),
		AccessTTL:  configuration.TOKEN_EXPIRE,
		RefreshTTL: configuration.REFRESH_TOKEN_EXPIRE,
	}
	auth := &session.Authenticator{DB: db, Codec: codec}

	var prod *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatal(err)
		}
	}

	redirectURL := fmt.Sprintf("http://%s:%s/auth/google/callback", configuration.DOMAIN, configuration.PORT)
	oauthManager := oauth.NewManager(
		configuration.GOOGLE_CLIENT_ID,
		configuration.GOOGLE_CLIENT_SECRET,
		redirectURL,
	)

	uploads := &upload.Saver{Dir: configuration.UPLOAD_DIR}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(logging.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:    db,
		Codec: codec,
		AuthHandler: &handlers.AuthHandler{
			DB:       db,
			Auth:     auth,
			OAuth:    oauthManager,
			Uploads:  uploads,
			Producer: prod,
			Domain:   configuration.DOMAIN,
		},
		PostHandler: &handlers.PostHandler{
			DB:       db,
			Producer: prod,
			Uploads:  uploads,
			ES:       esClient,
			Index:    "posts",
		},
		CommentHandler: &handlers.CommentHandler{DB: db, Producer: prod},
		UserHandler:    &handlers.UserHandler{DB: db, Uploads: uploads},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: "posts"},
		TipsHandler:    &handlers.TipsHandler{Client: tips.NewClient(configuration.OPENAI_API_KEY)},
		UploadDir:      configuration.UPLOAD_DIR,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
