package factory

import (
	"fmt"

	"github.com/mikey/email-housekeeper/internal/adapters/memory"
	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/core"
	"go.uber.org/zap"
)

// MemoryFactory creates vector memory stores based on configuration
type MemoryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMemoryFactory creates a new memory factory
func NewMemoryFactory(cfg *config.Config, logger *zap.Logger) *MemoryFactory {
	return &MemoryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMemoryStore creates a memory store based on the configuration
func (f *MemoryFactory) CreateMemoryStore() (core.MemoryStore, error) {
	memoryCfg := f.cfg.GetMemory()
	dimension := f.cfg.GetEmbedding().Dimension

	f.logger.Info("Creating memory store", zap.String("type", memoryCfg.Type))

	switch memoryCfg.Type {
	case "chromem":
		return memory.NewChromemStore(memoryCfg.Path, memoryCfg.Compress, dimension, f.logger)
	case "inmemory":
		return memory.NewChromemStore("", false, dimension, f.logger)
	case "qdrant":
		return memory.NewQdrantStore(memory.QdrantConfig{
			Host:       memoryCfg.Qdrant.Host,
			Port:       memoryCfg.Qdrant.Port,
			APIKey:     memoryCfg.Qdrant.APIKey,
			UseTLS:     memoryCfg.Qdrant.UseTLS,
			Collection: memoryCfg.Qdrant.Collection,
			Dimension:  dimension,
		}, f.logger)
	default:
		return nil, fmt.Errorf("unsupported memory type: %s", memoryCfg.Type)
	}
}
