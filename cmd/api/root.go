package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-app/backend/internal/config"
	"github.com/iamasit07/chat-app/backend/internal/repository/postgres"
	redisrepo "github.com/iamasit07/chat-app/backend/internal/repository/redis"
	"github.com/iamasit07/chat-app/backend/internal/service/chat"
	"github.com/iamasit07/chat-app/backend/internal/service/cleanup"
	"github.com/iamasit07/chat-app/backend/internal/service/delivery"
	"github.com/iamasit07/chat-app/backend/internal/service/media"
	"github.com/iamasit07/chat-app/backend/internal/service/presence"
	"github.com/iamasit07/chat-app/backend/internal/service/session"
	transportHttp "github.com/iamasit07/chat-app/backend/internal/transport/http"
	"github.com/iamasit07/chat-app/backend/internal/transport/websocket"
	"github.com/iamasit07/chat-app/backend/pkg/auth"
	"github.com/iamasit07/chat-app/backend/pkg/httputil"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "chatd",
	Short: "Runs the chat API and realtime delivery server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	cobra.OnInitialize(loadDotEnv)

	rootCmd.PersistentFlags().String("log-level", "", "log threshold (trace, debug, info, warn, error)")
	_ = viper.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.Flags().StringP("port", "p", "", "HTTP listen port")
	_ = viper.BindPFlag("PORT", rootCmd.Flags().Lookup("port"))

	rootCmd.Flags().String("static-dir", "./static", "built frontend to serve, if present")
	_ = viper.BindPFlag("STATIC_DIR", rootCmd.Flags().Lookup("static-dir"))
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			jww.DEBUG.Println("No .env file found")
		}
	}
}

func setup() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	config.InitLog(cfg.LogLevel, cfg.LogFile)
	return cfg, nil
}

func newUploader(ctx context.Context, cfg *config.Config) (media.Uploader, error) {
	if cfg.UploadBackend == "minio" {
		return media.NewMinIOUploader(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey,
			cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
	}
	return media.NewDiskUploader(cfg.UploadDir, cfg.PublicBaseURL)
}

func serve(cfg *config.Config) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	jww.INFO.Println("Running database migrations...")
	if err := postgres.RunMigrations(ctx, db); err != nil {
		return errors.Wrap(err, "migration failed")
	}

	userRepo := postgres.NewUserRepo(db)
	messageRepo := postgres.NewMessageRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)

	// nil interfaces when redis is unavailable
	var (
		cache       transportHttp.ProfileCache
		revocations session.RevocationStore
	)
	redisClient, err := redisrepo.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		redisCache := redisrepo.NewRedisCache(redisClient)
		cache = redisCache
		revocations = redisrepo.NewRevocationStore(redisCache)
	}

	uploader, err := newUploader(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize uploads")
	}
	mediaService := media.NewService(uploader)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	authService := session.NewAuthService(issuer, sessionRepo, revocations)

	registry := presence.NewRegistry()
	router := delivery.NewRouter(registry)
	registry.OnChange(func(userID int64, online bool) {
		jww.DEBUG.Printf("[PRESENCE] User %d online=%v", userID, online)
		router.BroadcastOnlineUsers()
	})

	chatService := chat.NewService(userRepo, messageRepo, router, mediaService)
	wsHandler := websocket.NewHandler(registry, authService, cfg.AllowedOrigins, cfg.PushQueueSize)

	var uploadDir string
	if cfg.UploadBackend == "disk" {
		uploadDir = cfg.UploadDir
	}
	engine := transportHttp.NewRouter(transportHttp.Deps{
		Auth: &transportHttp.AuthHandler{
			Users:    userRepo,
			Sessions: authService,
			Avatars:  mediaService,
			Cache:    cache,
			Sockets:  wsHandler,
			Cookie:   httputil.CookieOptions{Secure: cfg.CookieSecure},
		},
		Messages:       &transportHttp.MessageHandler{Chat: chatService},
		Online:         &transportHttp.OnlineHandler{Presence: registry},
		WebSocket:      wsHandler.HandleWebSocket,
		AllowedOrigins: cfg.AllowedOrigins,
		UploadDir:      uploadDir,
		StaticDir:      viper.GetString("STATIC_DIR"),
	})

	worker := cleanup.NewWorker(sessionRepo, time.Duration(cfg.SessionRetentionDays)*24*time.Hour)
	go worker.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		jww.INFO.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "server error")
		}
		return nil
	case <-ctx.Done():
	}

	jww.INFO.Println("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	jww.INFO.Println("Server exited")
	return nil
}
