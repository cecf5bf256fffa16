package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
	"github.com/LeonardoBeccarini/water-treatment/internal/model/messages"
)

// ErrNoRuns is returned by LatestRunID on an empty history.
var ErrNoRuns = errors.New("no simulation runs recorded")

const schema = `
CREATE TABLE IF NOT EXISTS ontology (
	id INTEGER PRIMARY KEY,
	concept TEXT NOT NULL,
	property TEXT NOT NULL,
	value REAL NOT NULL,
	description TEXT,
	UNIQUE (concept, property)
);

CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	condition TEXT NOT NULL,
	action TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 1 CHECK (priority > 0)
);

CREATE TABLE IF NOT EXISTS measurements (
	id INTEGER PRIMARY KEY,
	run_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	pollution_level REAL,
	water_flow REAL,
	ph_level REAL,
	temperature REAL,
	oxygen_level REAL
);
CREATE INDEX IF NOT EXISTS idx_measurements_run ON measurements(run_id, step);

CREATE TABLE IF NOT EXISTS actions (
	id INTEGER PRIMARY KEY,
	run_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	action_type TEXT NOT NULL,
	intensity REAL NOT NULL,
	duration INTEGER NOT NULL,
	rule_id INTEGER,
	rule_name TEXT
);
CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id, step);
`

// Store keeps rules, ontology and simulation history in a SQLite file.
// Every call is a self-contained statement; no transaction spans two calls.
type Store struct {
	db   *sql.DB
	path string
	log  *zap.Logger
}

// OpenStore opens (creating if needed) the database at path and applies the schema.
func OpenStore(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("persistence: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		return err
	}
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Seed inserts rules and ontology terms that are not present yet. Rules are
// matched by name and terms by (concept, property), so seeding twice is a no-op.
func (s *Store) Seed(ctx context.Context, rules []entities.Rule, terms []entities.OntologyTerm) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: seed: %w", err)
	}
	defer tx.Rollback()

	for _, t := range terms {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO ontology (concept, property, value, description) VALUES (?, ?, ?, ?)`,
			t.Concept, t.Property, t.Value, t.Description); err != nil {
			return fmt.Errorf("persistence: seed ontology %s/%s: %w", t.Concept, t.Property, err)
		}
	}
	for _, r := range rules {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO rules (name, condition, action, priority) VALUES (?, ?, ?, ?)`,
			r.Name, r.Condition, r.Action, r.Priority); err != nil {
			return fmt.Errorf("persistence: seed rule %q: %w", r.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persistence: seed: %w", err)
	}
	s.log.Info("persistence: seeded", zap.Int("rules", len(rules)), zap.Int("ontology_terms", len(terms)))
	return nil
}

// LoadRules returns every rule ordered by priority, then id.
func (s *Store) LoadRules(ctx context.Context) ([]entities.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, condition, action, priority FROM rules ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("persistence: load rules: %w", err)
	}
	defer rows.Close()

	var out []entities.Rule
	for rows.Next() {
		var r entities.Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Condition, &r.Action, &r.Priority); err != nil {
			return nil, fmt.Errorf("persistence: scan rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadOntology returns every term in insertion order.
func (s *Store) LoadOntology(ctx context.Context) ([]entities.OntologyTerm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT concept, property, value, COALESCE(description, '') FROM ontology ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("persistence: load ontology: %w", err)
	}
	defer rows.Close()

	var out []entities.OntologyTerm
	for rows.Next() {
		var t entities.OntologyTerm
		if err := rows.Scan(&t.Concept, &t.Property, &t.Value, &t.Description); err != nil {
			return nil, fmt.Errorf("persistence: scan ontology: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) StoreMeasurement(ctx context.Context, rec messages.MeasurementRecord) error {
	m := rec.Measurement
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO measurements (run_id, step, timestamp, pollution_level, water_flow, ph_level, temperature, oxygen_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Step, formatTime(rec.Timestamp),
		m.PollutionLevel, m.WaterFlow, m.PHLevel, m.Temperature, m.OxygenLevel)
	if err != nil {
		return fmt.Errorf("persistence: store measurement: %w", err)
	}
	return nil
}

func (s *Store) StoreAction(ctx context.Context, rec messages.ActionRecord) error {
	var ruleID sql.NullInt64
	if rec.RuleID != 0 {
		ruleID = sql.NullInt64{Int64: rec.RuleID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (run_id, step, timestamp, action_type, intensity, duration, rule_id, rule_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Step, formatTime(rec.Timestamp),
		rec.Action.Type, rec.Action.Intensity, rec.Action.Duration, ruleID, rec.RuleName)
	if err != nil {
		return fmt.Errorf("persistence: store action: %w", err)
	}
	return nil
}

// LatestRunID returns the run of the most recently stored measurement.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM measurements ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("persistence: latest run: %w", err)
	}
	return id, nil
}

// Measurements returns the last limit snapshots of runID in chronological
// order. An empty runID selects across all runs; limit <= 0 means no limit.
func (s *Store) Measurements(ctx context.Context, runID string, limit int) ([]messages.MeasurementRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step, timestamp, pollution_level, water_flow, ph_level, temperature, oxygen_level
		FROM measurements WHERE (? = '' OR run_id = ?) ORDER BY id DESC LIMIT ?`,
		runID, runID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("persistence: query measurements: %w", err)
	}
	defer rows.Close()

	var out []messages.MeasurementRecord
	for rows.Next() {
		var (
			r  messages.MeasurementRecord
			ts string
			m  = &r.Measurement
		)
		if err := rows.Scan(&r.RunID, &r.Step, &ts, &m.PollutionLevel, &m.WaterFlow, &m.PHLevel, &m.Temperature, &m.OxygenLevel); err != nil {
			return nil, fmt.Errorf("persistence: scan measurement: %w", err)
		}
		r.Timestamp = parseTime(ts)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// Actions mirrors Measurements for the action log.
func (s *Store) Actions(ctx context.Context, runID string, limit int) ([]messages.ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step, timestamp, action_type, intensity, duration, COALESCE(rule_id, 0), COALESCE(rule_name, '')
		FROM actions WHERE (? = '' OR run_id = ?) ORDER BY id DESC LIMIT ?`,
		runID, runID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("persistence: query actions: %w", err)
	}
	defer rows.Close()

	var out []messages.ActionRecord
	for rows.Next() {
		var (
			r  messages.ActionRecord
			ts string
		)
		if err := rows.Scan(&r.RunID, &r.Step, &ts, &r.Action.Type, &r.Action.Intensity, &r.Action.Duration, &r.RuleID, &r.RuleName); err != nil {
			return nil, fmt.Errorf("persistence: scan action: %w", err)
		}
		r.Timestamp = parseTime(ts)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// SQLite treats a negative LIMIT as unbounded.
func sqlLimit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
