package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/water-treatment/internal/config"
	"github.com/LeonardoBeccarini/water-treatment/internal/services/event"
	"github.com/LeonardoBeccarini/water-treatment/internal/services/persistence"
	"github.com/LeonardoBeccarini/water-treatment/pkg/dedup"
	"github.com/LeonardoBeccarini/water-treatment/pkg/rabbitmq"
)

var (
	configPath string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:           "water-persistence",
		Short:         "History store: MQTT ingestion and HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml if present)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "development logging at debug level")
	root.AddCommand(newServeCmd(), newSeedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}
	log, err := cfg.Log.Build()
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the history API and, if MQTT is enabled, ingest simulator events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr = addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := persistence.OpenStore(cfg.Store.Path, log)
			if err != nil {
				return err
			}
			defer store.Close()
			if cfg.Store.Seed {
				if err := store.Seed(ctx, persistence.DefaultRules(), persistence.DefaultOntology()); err != nil {
					return err
				}
			}

			mux := persistence.NewHTTPMux(store, log)
			mux.Handle("/metrics", promhttp.Handler())

			if cfg.MQTT.Enabled {
				sink := persistence.Fanout{store}
				if cfg.Influx.Enabled {
					client, w, err := persistence.NewInfluxClient(cfg.Influx.Persistence())
					if err != nil {
						return err
					}
					defer client.Close()
					sink = append(sink, persistence.NewInfluxRecorder(w, cfg.Influx.Persistence(), log))
				}

				mq, err := rabbitmq.NewRabbitMQConn(ctx, cfg.MQTT.RabbitMQ(), log)
				if err != nil {
					return err
				}
				defer rabbitmq.CloseRabbitMQConn(mq, log)

				handler := event.NewHandler(sink, dedup.New(10*time.Minute, 20000), log)
				consumer := rabbitmq.NewConsumer(mq, event.Subscriptions(), handler.Handle, log)
				go func() {
					if err := consumer.ConsumeMessage(ctx); err != nil {
						log.Error("persistence: consumer stopped", zap.Error(err))
						stop()
					}
				}()

				mux.Handle("/ingest/healthz", event.NewHealthHandler(mq, handler))
				mux.Handle("/readyz", event.NewReadyHandler(mq, handler, 2*time.Second))
			}

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("persistence: HTTP listening", zap.String("addr", cfg.HTTP.Addr), zap.String("store", store.Path()))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err = <-errCh:
			}
			stop()

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shCtx)
			log.Info("persistence: shutdown complete")
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var rulesFile string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the default rules and ontology, or those of a YAML file, into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx := cmd.Context()

			rules, terms := persistence.DefaultRules(), persistence.DefaultOntology()
			if rulesFile != "" {
				src, err := persistence.LoadYAMLFile(rulesFile)
				if err != nil {
					return err
				}
				rules, _ = src.LoadRules(ctx)
				terms, _ = src.LoadOntology(ctx)
			}

			store, err := persistence.OpenStore(cfg.Store.Path, log)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Seed(ctx, rules, terms); err != nil {
				return err
			}
			log.Info("persistence: seeded", zap.String("store", store.Path()),
				zap.Int("rules", len(rules)), zap.Int("ontology_terms", len(terms)))
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML rule file to seed from")
	return cmd
}
