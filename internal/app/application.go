package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/pipeline"
	"github.com/tigerroll/soundseasons/internal/support/logger"
	"github.com/tigerroll/soundseasons/internal/warehouse"
)

// WeekRange is the inclusive week range a run ingests.
type WeekRange struct {
	From model.WeekKey
	To   model.WeekKey
}

// RunApplication sets up the dependency graph, applies warehouse migrations,
// executes one pipeline run over the given range, and shuts down.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, weekRange WeekRange) error {
	var runErr error

	fxApp := fx.New(
		fx.Supply(
			embeddedConfig,
			weekRange,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		Module,

		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner, migrator *warehouse.Migrator, p *pipeline.Pipeline) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						defer func() {
							if err := shutdowner.Shutdown(); err != nil {
								logger.Errorf("Failed to shut down application: %v", err)
							}
						}()

						if err := migrator.Up(appCtx); err != nil {
							logger.Errorf("Migration failed: %v", err)
							runErr = err
							return
						}

						runReport, err := p.Run(appCtx, weekRange.From, weekRange.To)
						if err != nil {
							logger.Errorf("Pipeline run failed: %v", err)
							runErr = err
							return
						}
						logger.Infof("Run %s completed: weeks %s .. %s, %d correlations (%d significant).",
							runReport.RunID, runReport.From, runReport.To,
							runReport.CorrelationCount, runReport.SignificantCount)
					}()
					return nil
				},
			})
		}),

		fx.NopLogger,
	)

	fxApp.Run()

	if err := fxApp.Err(); err != nil {
		return err
	}
	return runErr
}
