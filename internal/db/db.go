package db

import (
	"context"
	"fmt"
	"strings"

	"kdstore/internal/cache"
	"kdstore/internal/config"
	"kdstore/internal/storage"
	"kdstore/pkg/logger"
)

type DB struct {
	Store storage.Store
	Cache *cache.Cache
	// Observer, when set before Open, receives cache events.
	Observer cache.Observer
}

// Open builds the configured store and an index cache over it.
func (db *DB) Open(ctx context.Context, conf *config.Config) error {
	store, err := newStore(ctx, conf)
	if err != nil {
		return err
	}
	db.Store = store

	c, err := cache.New(ctx, store, cache.Options{
		MemoryBudget: conf.MemoryBudget(),
		Compression:  conf.CompressionCodec(),
		Observer:     db.Observer,
	})
	if err != nil {
		return err
	}
	db.Cache = c
	return nil
}

func newStore(ctx context.Context, conf *config.Config) (storage.Store, error) {
	switch strings.ToLower(conf.Storage.Backend) {
	case config.BackendMinio:
		logger.Info("Using minio storage", "endpoint", conf.Storage.Endpoint, "bucket", conf.Storage.Bucket)
		return storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  conf.Storage.Endpoint,
			AccessKey: conf.Storage.AccessKey,
			SecretKey: conf.Storage.SecretKey,
			Bucket:    conf.Storage.Bucket,
			Prefix:    conf.Storage.Prefix,
			UseSSL:    conf.Storage.UseSSL,
		})
	case config.BackendLocal, "":
		logger.Info("Using local storage", "dir", conf.BinDirectory)
		return storage.NewLocalStore(conf.BinDirectory)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}

// Close flushes every resident tree to the store.
func (db *DB) Close(ctx context.Context) error {
	if db.Cache == nil {
		return nil
	}
	return db.Cache.Close(ctx)
}
