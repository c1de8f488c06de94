package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/flowdesigner/pkg/cmd"
	"github.com/dukex/flowdesigner/pkg/config"
	"github.com/dukex/flowdesigner/pkg/log"
	"github.com/dukex/flowdesigner/pkg/otelhelper"
	"github.com/dukex/flowdesigner/pkg/registry"
	"github.com/dukex/flowdesigner/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort             = 9091
	defaultAutosaveSchedule = "@every 30s"
)

func main() {
	command := &cli.Command{
		Name:                  "flowdesigner-api",
		Usage:                 "Design and edit approval flows over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file path, postgres:// or redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers used by the kafka event bus",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "autosave-schedule",
				Usage:   "Cron schedule for saving dirty flows, empty to disable",
				Value:   defaultAutosaveSchedule,
				Sources: cli.EnvVars("AUTOSAVE_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "catalog-config",
				Usage:   "YAML file overriding node type labels, colors and limits",
				Sources: cli.EnvVars("CATALOG_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing flow designer API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			opts := []services.Option{services.WithEventBus(eventBus)}

			if command.Bool("tracing") {
				tracer, shutdown, err := otelhelper.NewTracer(ctx, "flowdesigner-api")
				if err != nil {
					return err
				}

				defer func() {
					if err := shutdown(context.Background()); err != nil {
						logger.ErrorContext(ctx, "Failed to shut down tracer provider", "error", err)
					}
				}()

				opts = append(opts, services.WithTracer(tracer))
			}

			registry := registry.NewRegistry(logger)

			if path := command.String("catalog-config"); path != "" {
				catalog, err := config.LoadCatalogConfig(path)
				if err != nil {
					return err
				}

				catalog.Apply(registry)
				logger.InfoContext(ctx, "Applied catalog overrides", "path", path, "node_types", len(catalog.NodeTypes))
			}
			designer := services.NewDesigner(persistence, registry, logger, opts...)

			autosaver := NewAutosaver(logger, designer)

			err = autosaver.Start(command.String("autosave-schedule"))
			if err != nil {
				return err
			}

			defer autosaver.Stop(context.Background())

			api := NewAPI(logger, designer, registry)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = NewActivityLog(logger).Register(eventBus)
			if err != nil {
				return err
			}

			err = eventBus.Subscribe(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to subscribe to designer events", "error", err)

				return err
			}

			err = api.Start(ctx, command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
