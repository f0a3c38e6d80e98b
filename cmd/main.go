package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/stremio-sub-translator/internal/cache"
	"github.com/MimeLyc/stremio-sub-translator/internal/catalog"
	"github.com/MimeLyc/stremio-sub-translator/internal/config"
	"github.com/MimeLyc/stremio-sub-translator/internal/coordinator"
	"github.com/MimeLyc/stremio-sub-translator/internal/httpapi"
	"github.com/MimeLyc/stremio-sub-translator/internal/translator"
	"github.com/MimeLyc/stremio-sub-translator/pkg/log"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	store, err := cache.NewStore(cfg.Cache.DBPath(), cfg.Cache.ArtifactDir(), cfg.Cache.MaxBytes)
	if err != nil {
		log.Fatal("Failed to open cache store: %v", err)
	}
	defer store.Close()

	trans, err := translator.New(translator.Config{
		Provider:      cfg.Translator.Provider,
		APIKey:        cfg.Translator.APIKey,
		APIURL:        cfg.Translator.APIURL,
		Model:         cfg.Translator.Model,
		MaxTokens:     cfg.Translator.MaxTokens,
		Temperature:   cfg.Translator.Temperature,
		Timeout:       time.Duration(cfg.Translator.Timeout) * time.Second,
		MaxChunkChars: cfg.Translator.MaxChunkChars,
		MaxAttempts:   cfg.Translator.MaxAttempts,
	})
	if err != nil {
		log.Fatal("Failed to build translator: %v", err)
	}

	fetcher := catalog.NewFetcher(
		catalog.NewClient(catalog.Config{
			APIKey:  cfg.Catalog.APIKey,
			BaseURL: cfg.Catalog.APIURL,
		}),
		catalog.FetcherConfig{SourceLanguage: cfg.Catalog.SourceLanguage},
	)

	coord := coordinator.New(fetcher, trans, store, coordinator.Config{
		Format:          cfg.Jobs.Format,
		JobTimeout:      cfg.Jobs.Timeout,
		RevalidateAfter: cfg.Cache.RevalidateAfter,
	})

	scheduler := cron.New()
	if cfg.Cache.MaxBytes > 0 {
		if _, err := scheduler.AddFunc(cfg.Cache.EvictionCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			removed, err := store.EvictLRU(ctx)
			if err != nil {
				log.Error("Cache eviction sweep failed: %v", err)
				return
			}
			if removed > 0 {
				log.Info("Cache eviction removed %d artifact(s)", removed)
			}
		}); err != nil {
			log.Fatal("Invalid CACHE_EVICTION_CRON %q: %v", cfg.Cache.EvictionCron, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := httpapi.NewServer(coord, httpapi.ServerConfig{
		BaseURL:         cfg.Server.BaseURL,
		TargetLanguages: cfg.Server.TargetLanguages,
		Format:          cfg.Jobs.Format,
	}, httpapi.WithJobHistory(store))

	log.Info("Translation provider: %s (model %s)", cfg.Translator.Provider, cfg.Translator.Model)
	log.Info("Target languages: %s", strings.Join(cfg.Server.TargetLanguages, ", "))
	log.Info("Cache at %s (budget %d bytes)", cfg.Cache.Dir, cfg.Cache.MaxBytes)
	log.Info("Addon manifest at %s/manifest.json", cfg.Server.BaseURL)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed: %v", err)
		}
	case sig := <-stop:
		log.Info("Received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Shutdown did not finish cleanly: %v", err)
		}
	}
}
