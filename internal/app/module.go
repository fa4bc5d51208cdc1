// Package app wires the pipeline components together with uber-fx.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"

	"github.com/tigerroll/soundseasons/internal/adapter/database"
	dbconfig "github.com/tigerroll/soundseasons/internal/adapter/database/config"
	"github.com/tigerroll/soundseasons/internal/adapter/database/gorm/mysql"
	"github.com/tigerroll/soundseasons/internal/adapter/database/gorm/postgres"
	"github.com/tigerroll/soundseasons/internal/adapter/database/gorm/sqlite"
	"github.com/tigerroll/soundseasons/internal/adapter/storage"
	storageconfig "github.com/tigerroll/soundseasons/internal/adapter/storage/config"
	"github.com/tigerroll/soundseasons/internal/adapter/storage/gcs"
	"github.com/tigerroll/soundseasons/internal/adapter/storage/local"
	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/export"
	"github.com/tigerroll/soundseasons/internal/metrics"
	"github.com/tigerroll/soundseasons/internal/pipeline"
	"github.com/tigerroll/soundseasons/internal/report"
	"github.com/tigerroll/soundseasons/internal/source/charts"
	"github.com/tigerroll/soundseasons/internal/source/holidays"
	"github.com/tigerroll/soundseasons/internal/source/weather"
	"github.com/tigerroll/soundseasons/internal/stats"
	"github.com/tigerroll/soundseasons/internal/support/logger"
	"github.com/tigerroll/soundseasons/internal/warehouse"
)

// WarehouseConnectionName is the configuration key of the warehouse datastore.
const WarehouseConnectionName = "warehouse"

// DBProviderOptions registers every supported database provider into the
// db_providers group.
var DBProviderOptions = fx.Options(
	fx.Provide(fx.Annotate(sqlite.NewProvider, fx.ResultTags(database.DBProviderGroup))),
	fx.Provide(fx.Annotate(postgres.NewProvider, fx.ResultTags(database.DBProviderGroup))),
	fx.Provide(fx.Annotate(mysql.NewProvider, fx.ResultTags(database.DBProviderGroup))),
)

// StorageProviderOptions registers every supported storage provider into the
// storage_providers group.
var StorageProviderOptions = fx.Options(
	fx.Provide(fx.Annotate(local.NewLocalProvider, fx.ResultTags(storage.StorageProviderGroup))),
	fx.Provide(fx.Annotate(gcs.NewGCSProvider, fx.ResultTags(storage.StorageProviderGroup))),
)

// WarehouseConnectionParams defines the dependencies for NewWarehouseConnection.
type WarehouseConnectionParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	Cfg         *config.Config
	DBProviders []database.DBProvider `group:"db_providers"`
}

// NewWarehouseConnection resolves the warehouse connection through the
// provider matching the configured dialect, and closes every provider's
// connections on shutdown.
func NewWarehouseConnection(p WarehouseConnectionParams) (database.DBConnection, error) {
	rawConfig, ok := p.Cfg.SoundSeasons.DatastoreConfigs[WarehouseConnectionName]
	if !ok {
		return nil, fmt.Errorf("database configuration '%s' not found", WarehouseConnectionName)
	}
	var dbConfig dbconfig.DatabaseConfig
	if err := mapstructure.Decode(rawConfig, &dbConfig); err != nil {
		return nil, fmt.Errorf("failed to decode database config for '%s': %w", WarehouseConnectionName, err)
	}

	var provider database.DBProvider
	for _, candidate := range p.DBProviders {
		if candidate.Type() == dbConfig.Type {
			provider = candidate
			break
		}
	}
	if provider == nil {
		return nil, fmt.Errorf("no DBProvider found for database type '%s'", dbConfig.Type)
	}

	conn, err := provider.GetConnection(WarehouseConnectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection for '%s' using provider '%s': %w",
			WarehouseConnectionName, provider.Type(), err)
	}

	providers := p.DBProviders
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Closing all database connections...")
			var wg sync.WaitGroup
			var lastErr error
			for _, provider := range providers {
				wg.Add(1)
				go func(provider database.DBProvider) {
					defer wg.Done()
					if err := provider.CloseAll(); err != nil {
						logger.Errorf("Failed to close connections for provider %s: %v", provider.Type(), err)
						lastErr = err
					}
				}(provider)
			}
			wg.Wait()
			return lastErr
		},
	})

	return conn, nil
}

// storageRouter routes GetConnection calls to the provider matching the
// named configuration's type.
type storageRouter struct {
	cfg       *config.Config
	providers map[string]storage.StorageProvider
}

var _ storage.StorageProvider = (*storageRouter)(nil)

// StorageRouterParams defines the dependencies for NewStorageRouter.
type StorageRouterParams struct {
	fx.In
	Lifecycle        fx.Lifecycle
	Cfg              *config.Config
	StorageProviders []storage.StorageProvider `group:"storage_providers"`
}

// NewStorageRouter aggregates the registered storage providers behind one
// StorageProvider that dispatches on the configured connection type.
func NewStorageRouter(p StorageRouterParams) storage.StorageProvider {
	providers := make(map[string]storage.StorageProvider, len(p.StorageProviders))
	for _, provider := range p.StorageProviders {
		providers[provider.Type()] = provider
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var lastErr error
			for _, provider := range providers {
				if err := provider.CloseAll(); err != nil {
					lastErr = err
				}
			}
			return lastErr
		},
	})

	return &storageRouter{cfg: p.Cfg, providers: providers}
}

// GetConnection resolves the named connection through the provider matching
// its configured type.
func (r *storageRouter) GetConnection(name string) (storage.StorageConnection, error) {
	raw, ok := r.cfg.SoundSeasons.StorageConfigs[name]
	if !ok {
		return nil, fmt.Errorf("storage configuration for name '%s' not found", name)
	}
	storageCfg, err := storageconfig.Decode(raw, name)
	if err != nil {
		return nil, err
	}

	provider, ok := r.providers[storageCfg.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", storageCfg.Type, name)
	}
	return provider.GetConnection(name)
}

// CloseAll closes all connections of all routed providers.
func (r *storageRouter) CloseAll() error {
	var lastErr error
	for _, provider := range r.providers {
		if err := provider.CloseAll(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Type identifies the router.
func (r *storageRouter) Type() string {
	return "router"
}

// Module assembles all pipeline components.
var Module = fx.Options(
	config.Module,
	metrics.Module,
	DBProviderOptions,
	StorageProviderOptions,

	fx.Provide(NewWarehouseConnection),
	fx.Provide(NewStorageRouter),
	fx.Provide(warehouse.NewGormRepository),
	fx.Provide(warehouse.NewMigrator),

	fx.Provide(func(cfg *config.PipelineConfig) charts.ChartSource { return charts.NewClient(cfg) }),
	fx.Provide(func(cfg *config.PipelineConfig) weather.WeatherSource { return weather.NewClient(cfg) }),
	fx.Provide(func(cfg *config.PipelineConfig) holidays.HolidaySource { return holidays.NewClient(cfg) }),

	fx.Provide(stats.NewEngine),
	fx.Provide(export.NewExporter),
	fx.Provide(report.NewService),
	fx.Provide(func(s *report.Service) report.Boundary { return s }),
	fx.Provide(pipeline.NewPipeline),
)
