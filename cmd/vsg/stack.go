package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"vsg/api/internal/config"
	"vsg/api/internal/docstore"
	"vsg/api/internal/export"
	"vsg/api/internal/metrics"
	"vsg/api/internal/search"
	"vsg/api/internal/slot"
)

// stack is every long-lived component one command needs.
type stack struct {
	slot    slot.Slot
	store   *docstore.Store
	metrics *metrics.Metrics
	search  *search.Service
	export  *export.Service
	meili   *search.Meili
}

func openStack(ctx context.Context, cfg config.Config, log *zap.Logger) (*stack, error) {
	if strings.EqualFold(cfg.StorageBackend, "sqlite") {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	sl, err := slot.Open(ctx, slot.Options{
		Backend:     cfg.StorageBackend,
		Key:         cfg.StorageKey,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		GitDir:      cfg.GitDir,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s slot: %w", cfg.StorageBackend, err)
	}
	log.Info("storage slot opened", zap.String("backend", cfg.StorageBackend), zap.String("key", cfg.StorageKey))

	st := &stack{slot: sl, metrics: metrics.New()}
	st.store = docstore.Open(ctx, sl,
		docstore.WithLogger(log),
		docstore.WithObserver(st.metrics),
		docstore.WithSiteTitle(cfg.SiteTitle),
	)

	var backend search.Backend
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		st.meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		backend = st.meili
	}
	st.search = search.NewService(backend, st.store, log)
	st.search.SetObserver(st.metrics)

	var archiver export.Archiver
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioArchiver, err := export.NewMinioArchiver(export.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		archiver = minioArchiver
	}
	st.export = export.NewService(st.store, archiver)
	return st, nil
}

// Close waits for queued index updates and releases the slot.
func (s *stack) Close() error {
	if s.search != nil {
		s.search.Wait()
	}
	if s.meili != nil {
		s.meili.Close()
	}
	return s.slot.Close()
}
