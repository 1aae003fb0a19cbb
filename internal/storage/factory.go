package storage

import (
	"fmt"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/storage/memory"
	"github.com/gravadigital/billetterie-api/internal/storage/postgres"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
)

// StorageType represents the type of storage backend
type StorageType string

const (
	// StorageTypePostgres represents PostgreSQL storage
	StorageTypePostgres StorageType = "postgres"
	// StorageTypeMemory keeps everything in process; used for tests and demos
	StorageTypeMemory StorageType = "memory"
)

// Factory provides a factory pattern for creating storage containers
type Factory struct {
	storageType StorageType
}

// NewFactory creates a new storage factory
func NewFactory(storageType StorageType) *Factory {
	return &Factory{
		storageType: storageType,
	}
}

// CreateContainer creates a storage container based on the configured type
func (f *Factory) CreateContainer(cfg *config.Config) (repository.Container, error) {
	switch f.storageType {
	case StorageTypePostgres:
		c, err := postgres.NewContainer(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case StorageTypeMemory:
		return memory.NewContainer(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", f.storageType)
	}
}

// GetSupportedTypes returns a list of supported storage types
func GetSupportedTypes() []StorageType {
	return []StorageType{
		StorageTypePostgres,
		StorageTypeMemory,
	}
}

// ValidateStorageType validates if a storage type is supported
func ValidateStorageType(storageType string) (StorageType, error) {
	st := StorageType(storageType)

	for _, supported := range GetSupportedTypes() {
		if st == supported {
			return st, nil
		}
	}

	return "", fmt.Errorf("unsupported storage type: %s. Supported types: %v", storageType, GetSupportedTypes())
}
