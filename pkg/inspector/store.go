package inspector

import (
	"context"
	"fmt"
	"time"

	"github.com/azikar24/WormaCeptor-sub003/internal/adapters/storage/memory"
	"github.com/azikar24/WormaCeptor-sub003/internal/adapters/storage/mongo"
	"github.com/azikar24/WormaCeptor-sub003/internal/adapters/storage/sqlite"
	"github.com/azikar24/WormaCeptor-sub003/internal/infrastructure/config"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

// Store is what every storage driver provides.
type Store interface {
	usecase.TransactionRepository
	usecase.StateRepository
	Close() error
}

// OpenStore opens the driver named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.NewStore(cfg.MaxRecords), nil
	case "sqlite", "":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return s, nil
	case "mongo":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
