package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/lodeflow/sentinel/pkg/log"
)

func main() {
	cmd := &cli.Command{
		Name:                  "sentinel-triggerer",
		EnableShellCompletion: true,
		Usage:                 "Run the trigger event loop hosting deferrable sensors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "triggerer-id",
				Aliases: []string{"id"},
				Usage:   "Custom triggerer ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("TRIGGERER_ID"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type for terminal outcomes (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "trigger-store",
				Usage:   "Trigger store backend (none, file, redis)",
				Value:   "none",
				Sources: cli.EnvVars("TRIGGER_STORE"),
			},
			&cli.StringFlag{
				Name:    "trigger-store-path",
				Usage:   "Directory for the file trigger store",
				Value:   "./triggers",
				Sources: cli.EnvVars("TRIGGER_STORE_PATH"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the redis trigger store",
				Value:   "redis://localhost:6379",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "warehouse-url",
				Usage:   "Warehouse database URL enabling the warehouse job trigger",
				Value:   "",
				Sources: cli.EnvVars("WAREHOUSE_URL"),
			},
			&cli.IntFlag{
				Name:    "api-port",
				Usage:   "Port for the status API",
				Value:   8089,
				Sources: cli.EnvVars("API_PORT"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Value:   false,
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			triggererID := command.String("triggerer-id")
			if triggererID == "" {
				triggererID = "triggerer-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("sentinel-triggerer").With("triggerer_id", triggererID)
			logger.InfoContext(ctx, "Initializing Sentinel Triggerer")

			triggerer, err := NewTriggerer(ctx, triggererID, command, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return triggerer.Run(ctx)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.WithModule("sentinel-triggerer").Error("Triggerer exited with error", "error", err)
		os.Exit(1)
	}
}
