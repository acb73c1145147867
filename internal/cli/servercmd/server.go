package servercmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/winlife/gamelytics/internal/analysis"
	"github.com/winlife/gamelytics/internal/analytics/mq"
	common "github.com/winlife/gamelytics/internal/cli/common"
	"github.com/winlife/gamelytics/internal/db"
	"github.com/winlife/gamelytics/internal/ingest"
	"github.com/winlife/gamelytics/internal/schema"
	httpserver "github.com/winlife/gamelytics/internal/server/http"
	"github.com/winlife/gamelytics/internal/telemetry"
)

// New returns the `gamelytics server` command.
func New() *cobra.Command {
	var cfgFile string
	var includes []string
	var profile string
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the telemetry ingestion and analysis server",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			v.SetEnvPrefix("GAMELYTICS_SERVER")
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
			v.AutomaticEnv()
			if cfgFile != "" {
				loaded, err := common.LoadWithIncludes(cfgFile, includes)
				if err != nil {
					return fmt.Errorf("read config: %w", err)
				}
				loaded, err = common.ApplySectionAndProfile(loaded, "server", profile)
				if err != nil {
					if !strings.Contains(err.Error(), "section server not found") {
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

			if !v.IsSet("http_addr") {
				v.SetDefault("http_addr", ":8080")
			}
			if err := common.ValidateServerConfig(v, false); err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownMetrics, err := telemetry.SetupMetrics(ctx, "gamelytics-server", v.GetString("otlp_endpoint"))
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
			analysisMetrics, err := telemetry.NewAnalysisMetrics()
			if err != nil {
				return err
			}

			schemas := schema.NewGormStore(gdb)
			events := ingest.NewEventStore(gdb)
			snapshots := ingest.NewSnapshotStore(gdb)
			router := ingest.NewRouter(schemas, events, snapshots, ingestMetrics)
			svc := analysis.NewService(schemas, analysis.NewGormExecutor(gdb), analysisMetrics)

			queue, err := mq.New(mq.Config{
				Type:              v.GetString("queue.type"),
				RedisURL:          v.GetString("queue.redis_url"),
				RedisStream:       v.GetString("queue.redis_stream"),
				RedisMaxLen:       v.GetInt64("queue.redis_maxlen"),
				RedisMaxLenApprox: v.GetBool("queue.redis_maxlen_approx"),
				KafkaBrokers:      v.GetStringSlice("queue.kafka_brokers"),
				KafkaTopic:        v.GetString("queue.kafka_topic"),
			})
			if err != nil {
				return fmt.Errorf("queue: %w", err)
			}
			defer func() { _ = queue.Close() }()

			mode := httpserver.CollectMode(v.GetString("collect.mode"))
			srv := httpserver.NewServer(httpserver.Config{
				CollectMode:  mode,
				IngestSecret: v.GetString("collect.secret"),
				AllowSkew:    v.GetDuration("collect.allow_skew"),
			}, schemas, events, snapshots, router, svc, queue)

			addr := v.GetString("http_addr")
			hs := &http.Server{Addr: addr, Handler: srv.Router()}
			errCh := make(chan error, 1)
			go func() {
				slog.Info("http server listening", "addr", addr, "collect_mode", mode)
				errCh <- hs.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				slog.Info("shutting down")
				sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := hs.Shutdown(sctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.Flags().StringSliceVar(&includes, "include", nil, "extra config files merged in order")
	cmd.Flags().StringVar(&profile, "profile", "", "config profile overlay")
	return cmd
}
