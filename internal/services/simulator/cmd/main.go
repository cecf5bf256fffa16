package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/water-treatment/internal/config"
	"github.com/LeonardoBeccarini/water-treatment/internal/engine/fuzzy"
	"github.com/LeonardoBeccarini/water-treatment/internal/services/event"
	"github.com/LeonardoBeccarini/water-treatment/internal/services/persistence"
	"github.com/LeonardoBeccarini/water-treatment/internal/services/simulator"
	"github.com/LeonardoBeccarini/water-treatment/pkg/rabbitmq"
)

var (
	configPath string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:           "water-simulator",
		Short:         "Rule-based water treatment simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml if present)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "development logging at debug level")
	root.AddCommand(newRunCmd(), newHistoryCmd(), newRulesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies the global flags and builds the logger.
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

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*persistence.Store, error) {
	store, err := persistence.OpenStore(cfg.Store.Path, log)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Seed {
		if err := store.Seed(ctx, persistence.DefaultRules(), persistence.DefaultOntology()); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}

func ruleSource(cfg *config.Config, store *persistence.Store) (simulator.RuleSource, error) {
	if cfg.Rules.File == "" {
		return store, nil
	}
	y, err := persistence.LoadYAMLFile(cfg.Rules.File)
	if err != nil {
		return nil, err
	}
	return y, nil
}

func newRunCmd() *cobra.Command {
	var (
		steps       int
		seed        int64
		dbPath      string
		rulesFile   string
		runID       string
		metricsAddr string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and print the step log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			flags := cmd.Flags()
			if flags.Changed("steps") {
				cfg.Simulation.Steps = steps
			}
			if flags.Changed("seed") {
				cfg.Simulation.Seed = seed
			}
			if flags.Changed("db") {
				cfg.Store.Path = dbPath
			}
			if flags.Changed("rules") {
				cfg.Rules.File = rulesFile
			}
			if flags.Changed("metrics-addr") {
				cfg.HTTP.MetricsAddr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Simulation.Seed == 0 {
				cfg.Simulation.Seed = time.Now().UnixNano()
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			src, err := ruleSource(cfg, store)
			if err != nil {
				return err
			}

			recorders := persistence.Fanout{store}
			if cfg.Influx.Enabled {
				client, w, err := persistence.NewInfluxClient(cfg.Influx.Persistence())
				if err != nil {
					return err
				}
				defer client.Close()
				recorders = append(recorders, persistence.NewInfluxRecorder(w, cfg.Influx.Persistence(), log))
			}
			if cfg.MQTT.Enabled {
				client, err := rabbitmq.NewRabbitMQConn(ctx, cfg.MQTT.RabbitMQ(), log)
				if err != nil {
					return err
				}
				pub := rabbitmq.NewPublisher(client, "", event.ActionQoS, log)
				defer pub.Close()
				recorders = append(recorders, event.NewPublisher(pub))
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := simulator.NewMetrics(reg)
			if cfg.HTTP.MetricsAddr != "" {
				srv := serveMetrics(cfg.HTTP.MetricsAddr, reg, log)
				defer func() {
					shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shCtx)
				}()
			}

			sim, err := simulator.NewSimulator(src, recorders, rand.New(rand.NewSource(cfg.Simulation.Seed)),
				simulator.WithLogger(log), simulator.WithMetrics(metrics))
			if err != nil {
				return err
			}
			log.Info("simulator: configured",
				zap.Int64("seed", cfg.Simulation.Seed),
				zap.String("store", store.Path()),
				zap.Int("recorders", len(recorders)))

			report, err := sim.Run(ctx, simulator.Config{
				Steps:   cfg.Simulation.Steps,
				Initial: cfg.Simulation.Initial,
				RunID:   runID,
			})
			if report != nil {
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(report); encErr != nil {
						return encErr
					}
				} else {
					printReport(cmd.OutOrStdout(), report)
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&steps, "steps", simulator.DefaultSteps, "number of control steps")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for the drift (0 picks one from the clock)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML rule file used instead of the rules table")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier (random UUID when empty)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("simulator: metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("simulator: metrics server", zap.Error(err))
		}
	}()
	return srv
}

func printReport(out io.Writer, r *simulator.Report) {
	fmt.Fprintf(out, "run %s\n", r.RunID)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tPOLLUTION\tPH\tTEMP\tO2\tFUZZY\tRULE\tACTION")
	for _, s := range r.Steps {
		dominant, _, _ := fuzzy.Dominant(s.Fuzzy)
		rule := "-"
		if s.Selected != nil {
			rule = s.Selected.Name
		}
		action := s.Action.Type
		if len(s.Warnings) > 0 {
			action += " (no effect)"
		}
		fmt.Fprintf(tw, "%d\t%.3f\t%.2f\t%.1f\t%.2f\t%s\t%s\t%s\n",
			s.Step, s.Before.PollutionLevel, s.Before.PHLevel, s.Before.Temperature, s.Before.OxygenLevel,
			dominant, rule, action)
	}
	tw.Flush()

	f := r.Final
	fmt.Fprintf(out, "final: pollution=%.3f ph=%.2f temperature=%.1f oxygen=%.2f\n",
		f.PollutionLevel, f.PHLevel, f.Temperature, f.OxygenLevel)
	counts := r.ActionCounts()
	parts := make([]string, 0, len(counts))
	for k, v := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", k, v))
	}
	sort.Strings(parts)
	fmt.Fprintf(out, "actions: %s\n", strings.Join(parts, " "))
}

func newHistoryCmd() *cobra.Command {
	var (
		run   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print stored measurements and actions of a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx := cmd.Context()

			store, err := persistence.OpenStore(cfg.Store.Path, log)
			if err != nil {
				return err
			}
			defer store.Close()

			if run == "" {
				if run, err = store.LatestRunID(ctx); err != nil {
					return err
				}
			}
			ms, err := store.Measurements(ctx, run, limit)
			if err != nil {
				return err
			}
			acts, err := store.Actions(ctx, run, limit)
			if err != nil {
				return err
			}
			byStep := make(map[int]string, len(acts))
			for _, a := range acts {
				byStep[a.Step] = a.Action.Type
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", run)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STEP\tTIME\tPOLLUTION\tPH\tTEMP\tO2\tACTION")
			for _, m := range ms {
				fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.2f\t%.1f\t%.2f\t%s\n",
					m.Step, m.Timestamp.Format(time.RFC3339), m.Measurement.PollutionLevel, m.Measurement.PHLevel,
					m.Measurement.Temperature, m.Measurement.OxygenLevel, byStep[m.Step])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&run, "run", "", "run id (default: latest)")
	cmd.Flags().IntVar(&limit, "limit", 0, "last N steps only")
	return cmd
}

func newRulesCmd() *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the active rule set, or export it with the ontology as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx := cmd.Context()

			store, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()
			src, err := ruleSource(cfg, store)
			if err != nil {
				return err
			}
			rs, err := src.LoadRules(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if export {
				terms, err := src.LoadOntology(ctx)
				if err != nil {
					return err
				}
				raw, err := persistence.MarshalYAML(rs, terms)
				if err != nil {
					return err
				}
				_, err = out.Write(raw)
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPRIORITY\tNAME\tCONDITION\tACTION")
			for _, r := range rs {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", r.ID, r.Priority, r.Name, r.Condition, r.Action)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "write rules and ontology as YAML")
	return cmd
}
