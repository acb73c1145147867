package workercmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/winlife/gamelytics/internal/analytics/worker"
	common "github.com/winlife/gamelytics/internal/cli/common"
	"github.com/winlife/gamelytics/internal/db"
	"github.com/winlife/gamelytics/internal/ingest"
	"github.com/winlife/gamelytics/internal/schema"
	"github.com/winlife/gamelytics/internal/telemetry"
)

// New returns the `gamelytics worker` command: drain the raw-event stream
// and route every message through the validation pipeline.
func New() *cobra.Command {
	var cfgFile string
	var includes []string
	var profile string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the queue-draining ingestion worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			v.SetEnvPrefix("GAMELYTICS_WORKER")
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
			v.AutomaticEnv()
			if cfgFile != "" {
				loaded, err := common.LoadWithIncludes(cfgFile, includes)
				if err != nil {
					return fmt.Errorf("read config: %w", err)
				}
				loaded, err = common.ApplySectionAndProfile(loaded, "worker", profile)
				if err != nil {
					if !strings.Contains(err.Error(), "section worker not found") {
						return err
					}
				} else {
					v = loaded
				}
			}

			common.SetupLoggerWithFile(
				v.GetString("log.level"), v.GetString("log.format"), v.GetString("log.file"),
				v.GetInt("log.max_size"), v.GetInt("log.max_backups"), v.GetInt("log.max_age"),
				v.GetBool("log.compress"))

			if !v.IsSet("redis_url") {
				v.SetDefault("redis_url", "redis://localhost:6379/0")
			}
			if err := common.ValidateWorkerConfig(v, false); err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownMetrics, err := telemetry.SetupMetrics(ctx, "gamelytics-worker", v.GetString("otlp_endpoint"))
			if err != nil {
				return err
			}
			defer func() { _ = shutdownMetrics(context.Background()) }()

			gdb, err := db.Open(v.GetString("database.dsn"))
			if err != nil {
				return err
			}
			if err := schema.AutoMigrate(gdb); err != nil {
				return fmt.Errorf("migrate schemas: %w", err)
			}
			if err := ingest.AutoMigrate(gdb); err != nil {
				return fmt.Errorf("migrate events: %w", err)
			}

			ingestMetrics, err := telemetry.NewIngestMetrics()
			if err != nil {
				return err
			}
			router := ingest.NewRouter(
				schema.NewGormStore(gdb),
				ingest.NewEventStore(gdb),
				ingest.NewSnapshotStore(gdb),
				ingestMetrics)

			w, err := worker.New(worker.Config{
				RedisURL: v.GetString("redis_url"),
				Stream:   v.GetString("stream"),
				Group:    v.GetString("group"),
				Consumer: v.GetString("consumer"),
			}, router)
			if err != nil {
				return err
			}
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			slog.Info("worker stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.Flags().StringSliceVar(&includes, "include", nil, "extra config files merged in order")
	cmd.Flags().StringVar(&profile, "profile", "", "config profile overlay")
	return cmd
}
