package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/blob"
	"github.com/its-tarun-2505/Trashure/cache"
	"github.com/its-tarun-2505/Trashure/config"
	"github.com/its-tarun-2505/Trashure/handlers"
	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/middleware"
	"github.com/its-tarun-2505/Trashure/services"
	"github.com/its-tarun-2505/Trashure/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Warn(closeCtx, "store close failed", "error", err)
		}
	}()

	userCache, redisClient, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	blobs, uploads, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.AuthSecret == "dev-insecure-secret-change-me" {
		log.Warn(ctx, "using the built-in development auth secret; set AUTH_SECRET")
	}
	codec := auth.NewCodec(cfg.AuthSecret, cfg.TokenTTL)

	users := services.NewUserService(st.Users(), userCache, blobs, log)
	notify := services.NewNotificationService(st.Notifications(), log)

	router := handlers.NewRouter(handlers.Deps{
		Log:           log,
		Codec:         codec,
		Auth:          services.NewAuthService(st.Users(), userCache, codec, log).WithHashCost(cfg.BcryptCost),
		Users:         users,
		Notifications: notify,
		Requests:      services.NewRequestService(st.Requests(), notify, blobs, loc, log),
		Queries:       services.NewQueryService(st.Requests(), users, loc),
		Health:        st,
		Policy:        middleware.Policy(cfg.RoleMismatchPolicy),
		CORSOrigins:   cfg.CORSOrigins,
		LoginLimiter:  middleware.NewIPLimiter(cfg.LoginRatePerMin, cfg.LoginBurst),
		SecureCookie:  cfg.CookieSecure,
		Uploads:       uploads,
		StaticDir:     cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "blobs", cfg.BlobDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		return store.NewMemory(), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return store.OpenMongo(connectCtx, cfg.MongoURI, cfg.MongoDB)
}

// openCache returns the Redis-backed user cache when REDIS_ADDR is set, and
// a no-op cache otherwise.
func openCache(ctx context.Context, cfg *config.Config, log logging.Logger) (cache.Users, *redis.Client, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Info(ctx, "user cache disabled")
		return cache.Noop{}, nil, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := cache.Dial(dialCtx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedis(client, cache.DefaultTTL), client, nil
}

// openBlobs returns the blob store and, for the memory driver, the same
// store again so the router can serve it under /uploads.
func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, *blob.Memory, error) {
	if cfg.BlobDriver == "s3" {
		s3, err := blob.NewS3(ctx, blob.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	}
	m := blob.NewMemory(strings.TrimSuffix(handlers.UploadsPrefix, "/"))
	return m, m, nil
}
