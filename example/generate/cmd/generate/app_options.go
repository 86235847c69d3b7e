package main

import (
	"context"
	"errors"

	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm/sqlite"
	storageadapter "github.com/tigerroll/datagen/pkg/batch/adapter/storage"
	"github.com/tigerroll/datagen/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/datagen/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/datagen/pkg/batch/component/export"
	"github.com/tigerroll/datagen/pkg/batch/component/migration"
	"github.com/tigerroll/datagen/pkg/batch/component/progress"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/factory"
	metricsbackend "github.com/tigerroll/datagen/pkg/batch/infrastructure/metrics"
	inmemoryrepo "github.com/tigerroll/datagen/pkg/batch/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/datagen/pkg/batch/infrastructure/repository/sql"
	batchlistener "github.com/tigerroll/datagen/pkg/batch/listener"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"

	"github.com/tigerroll/datagen/example/generate/internal/work"
)

// exitCode is set by the run goroutine before it asks fx to shut down.
var exitCode int

var topics = []map[string]interface{}{
	{"topic": "goroutines"},
	{"topic": "channels", "difficulty": "hard"},
	{"topic": "interfaces", "difficulty": "easy"},
	{"topic": "error wrapping"},
}

// GetApplicationOptions builds the fx options of the generate command.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) []fx.Option {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLogLevel(cfg.Datagen.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Datagen.System.Logging.Level)

	var options []fx.Option
	// cfg is supplied directly, so config.Module is not needed here.
	options = append(options, fx.Supply(
		cfg,
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
	))
	options = append(options, logger.Module)
	options = append(options, metricsbackend.Module)
	options = append(options, batchlistener.Module)
	options = append(options, progress.Module)

	if cfg.Datagen.Storage.Type == "sql" {
		options = append(options, gormadapter.Module, sqlite.Module, postgres.Module, mysql.Module)
		options = append(options, storageadapter.Module, local.Module, gcs.Module)
		options = append(options, migration.Module)
		options = append(options, sqlrepo.Module)
		options = append(options, export.Module)
	} else {
		options = append(options, inmemoryrepo.Module)
	}

	options = append(options, work.Module)
	options = append(options, factory.Module)
	options = append(options, fx.Invoke(fx.Annotate(startGeneration, fx.ParamTags("", "", "", `name:"appCtx"`))))
	return options
}

// startGeneration runs one master job over the topics once the application
// has started, then shuts the application down.
func startGeneration(lc fx.Lifecycle, shutdowner fx.Shutdowner, f *factory.DataFactory, appCtx context.Context) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in generation: %v", r)
						exitCode = 1
					}
					logger.Infof("Requesting application shutdown after generation.")
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()
				generate(appCtx, f)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}

func generate(ctx context.Context, f *factory.DataFactory) {
	dry, err := f.DryRun(ctx, topics, nil)
	if err != nil {
		logger.Errorf("Dry run failed: %v", err)
		exitCode = 1
		return
	}
	logger.Infof("Dry run classified the first topic as %s.", dry.Status)

	outputs, err := f.Run(ctx, topics, nil)
	switch {
	case errors.Is(err, exception.ErrNoRecordsGenerated):
		logger.Warnf("No question was generated.")
		exitCode = 1
	case err != nil:
		logger.Errorf("Generation failed after %d questions: %v", len(outputs), err)
		exitCode = 1
	default:
		logger.Infof("Generated %d questions for project '%s'.", len(outputs), f.ProjectID())
	}
	if exitCode != 0 {
		return
	}
	if n := f.State().GetInt(work.ErrorCountKey); n > 0 {
		logger.Warnf("%d attempts failed along the way.", n)
	}
}
