package incident

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/edwardtay/webwatcher-sub002/internal/risk"
)

var (
	// ErrDuplicateIncident is returned when an incident id already exists.
	// Overwrites must never happen - the store is append-only.
	ErrDuplicateIncident = errors.New("duplicate incident id")

	// ErrUnknownIncident is returned when feedback references an id that
	// does not resolve to a stored report
	ErrUnknownIncident = errors.New("unknown incident id")

	// ErrInvalidJudgment is returned for a judgment outside the known set
	ErrInvalidJudgment = errors.New("invalid feedback judgment")
)

// Store persists incident reports and feedback in SQLite. It is the only
// shared mutable resource in the system; writes are append-only and safe
// under concurrent scans.
type Store struct {
	conn *sql.DB
}

// NewStore opens (creating if needed) the incident database
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		url TEXT NOT NULL,
		assessment TEXT NOT NULL,
		category TEXT NOT NULL,
		policy_compliant INTEGER NOT NULL,
		metadata TEXT,
		siem_ready INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_timestamp ON incidents(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_incidents_url ON incidents(url);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		incident_id TEXT NOT NULL,
		judgment TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (incident_id) REFERENCES incidents(id)
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_incident ON feedback(incident_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SaveReport appends an incident report. A colliding id fails with
// ErrDuplicateIncident - a plain INSERT, never an upsert.
func (s *Store) SaveReport(r *Report) error {
	assessment, err := json.Marshal(r.Assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}
	var metadata []byte
	if r.Metadata != nil {
		if metadata, err = json.Marshal(r.Metadata); err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err = s.conn.Exec(`
	INSERT INTO incidents (id, timestamp, url, assessment, category, policy_compliant, metadata, siem_ready)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.URL,
		string(assessment),
		string(r.Category),
		boolToInt(r.PolicyCompliant),
		nullableString(metadata),
		boolToInt(r.SIEMReady),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateIncident, r.ID)
		}
		return fmt.Errorf("failed to save incident: %w", err)
	}
	return nil
}

// GetReport retrieves an incident report by id, reconstructed exactly as
// stored
func (s *Store) GetReport(id string) (*Report, error) {
	row := s.conn.QueryRow(`
	SELECT id, timestamp, url, assessment, category, policy_compliant, metadata, siem_ready
	FROM incidents WHERE id = ?`, id)

	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIncident, id)
	}
	return r, err
}

// ListRecent returns the most recent incident reports, newest first
func (s *Store) ListRecent(limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(`
	SELECT id, timestamp, url, assessment, category, policy_compliant, metadata, siem_ready
	FROM incidents ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// RecordFeedback appends a human judgment for a stored incident.
// Fails with ErrUnknownIncident when the id does not resolve.
func (s *Store) RecordFeedback(incidentID string, judgment Judgment) (*FeedbackRecord, error) {
	if !judgment.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJudgment, judgment)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT COUNT(*) FROM incidents WHERE id = ?`, incidentID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIncident, incidentID)
	}

	rec := &FeedbackRecord{
		ID:         "fb-" + uuid.NewString(),
		IncidentID: incidentID,
		Judgment:   judgment,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = tx.Exec(`INSERT INTO feedback (id, incident_id, judgment, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.IncidentID, string(rec.Judgment), rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// ComputeStats aggregates counts per judgment type and a rolling accuracy
// ratio. An empty feedback set reports HasData=false instead of a
// divide-by-zero accuracy.
func (s *Store) ComputeStats() (*FeedbackStats, error) {
	stats := &FeedbackStats{}
	rows, err := s.conn.Query(`SELECT judgment, COUNT(*) FROM feedback GROUP BY judgment`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var judgment string
		var count int
		if err := rows.Scan(&judgment, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		switch Judgment(judgment) {
		case JudgmentCorrect:
			stats.Correct = count
		case JudgmentFalsePositive:
			stats.FalsePositives = count
		case JudgmentFalseNegative:
			stats.FalseNegatives = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.HasData = true
		stats.Accuracy = float64(stats.Correct) / float64(stats.Total)
	}
	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*Report, error) {
	var r Report
	var ts, assessment, category string
	var metadata sql.NullString
	var compliant, siemReady int

	err := row.Scan(&r.ID, &ts, &r.URL, &assessment, &category, &compliant, &metadata, &siemReady)
	if err != nil {
		return nil, err
	}

	r.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("corrupt timestamp for %s: %w", r.ID, err)
	}
	r.Assessment = &risk.Assessment{}
	if err := json.Unmarshal([]byte(assessment), r.Assessment); err != nil {
		return nil, fmt.Errorf("corrupt assessment for %s: %w", r.ID, err)
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &r.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for %s: %w", r.ID, err)
		}
	}
	r.Category = risk.Category(category)
	r.PolicyCompliant = compliant != 0
	r.SIEMReady = siemReady != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
