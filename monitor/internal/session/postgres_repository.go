package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Krimson/posture-monitory/monitor/internal/posture"
)

const schema = `
CREATE TABLE IF NOT EXISTS posture_sessions (
	id              TEXT PRIMARY KEY,
	monitor_id      TEXT NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	ended_at        TIMESTAMPTZ,
	episodes        INTEGER NOT NULL DEFAULT 0,
	alerts          INTEGER NOT NULL DEFAULT 0,
	bad_duration_ms BIGINT NOT NULL DEFAULT 0,
	evidence_count  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS posture_sessions_monitor_idx ON posture_sessions (monitor_id, started_at DESC);

CREATE TABLE IF NOT EXISTS posture_alerts (
	id         BIGSERIAL PRIMARY KEY,
	monitor_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	bad_since  TIMESTAMPTZ NOT NULL,
	fired_at   TIMESTAMPTZ NOT NULL,
	reasons    JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS posture_evidence (
	id          TEXT PRIMARY KEY,
	monitor_id  TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL,
	reasons     JSONB NOT NULL,
	image       BYTEA
);
CREATE INDEX IF NOT EXISTS posture_evidence_session_idx ON posture_evidence (monitor_id, session_id);
`

// PostgresRepository реализует Repository для PostgreSQL (Infrastructure Layer)
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository создает новый экземпляр PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// NewPostgresRepositoryFromDSN создает репозиторий из строки подключения и применяет схему
func NewPostgresRepositoryFromDSN(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настройки пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	repo := &PostgresRepository{db: db}
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// EnsureSchema создает таблицы, если их нет
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close закрывает соединение с БД
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ===== Сессии =====

func (r *PostgresRepository) SaveSession(ctx context.Context, record *SessionRecord) error {
	query := `
		INSERT INTO posture_sessions (id, monitor_id, started_at, ended_at, episodes, alerts, bad_duration_ms, evidence_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			episodes = EXCLUDED.episodes,
			alerts = EXCLUDED.alerts,
			bad_duration_ms = EXCLUDED.bad_duration_ms,
			evidence_count = EXCLUDED.evidence_count
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.MonitorID,
		record.StartedAt,
		record.EndedAt,
		record.Episodes,
		record.Alerts,
		record.BadDurationMs,
		record.EvidenceCount,
	)

	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListSessions(ctx context.Context, monitorID string, limit, offset int) ([]*SessionRecord, error) {
	query := `
		SELECT id, monitor_id, started_at, ended_at, episodes, alerts, bad_duration_ms, evidence_count
		FROM posture_sessions
		WHERE monitor_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, monitorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord

	for rows.Next() {
		var record SessionRecord
		var endedAt sql.NullTime

		err := rows.Scan(
			&record.ID,
			&record.MonitorID,
			&record.StartedAt,
			&endedAt,
			&record.Episodes,
			&record.Alerts,
			&record.BadDurationMs,
			&record.EvidenceCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		if endedAt.Valid {
			record.EndedAt = &endedAt.Time
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// ===== Оповещения =====

func (r *PostgresRepository) SaveAlert(ctx context.Context, alert Alert) error {
	reasonsJSON, err := json.Marshal(alert.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}

	query := `
		INSERT INTO posture_alerts (monitor_id, session_id, bad_since, fired_at, reasons)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.ExecContext(ctx, query,
		alert.MonitorID,
		alert.SessionID,
		alert.BadSince,
		alert.FiredAt,
		reasonsJSON,
	); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	return nil
}

// ===== Снимки =====

func (r *PostgresRepository) SaveEvidence(ctx context.Context, evidence Evidence) error {
	reasonsJSON, err := json.Marshal(evidence.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}

	query := `
		INSERT INTO posture_evidence (id, monitor_id, session_id, captured_at, reasons, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query,
		evidence.ID,
		evidence.MonitorID,
		evidence.SessionID,
		evidence.CapturedAt,
		reasonsJSON,
		evidence.Image,
	); err != nil {
		return fmt.Errorf("failed to save evidence: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListEvidence(ctx context.Context, monitorID, sessionID string) ([]Evidence, error) {
	query := `
		SELECT id, monitor_id, session_id, captured_at, reasons, image
		FROM posture_evidence
		WHERE monitor_id = $1 AND session_id = $2
		ORDER BY captured_at
	`

	rows, err := r.db.QueryContext(ctx, query, monitorID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	var evidence []Evidence

	for rows.Next() {
		var ev Evidence
		var reasonsJSON []byte

		if err := rows.Scan(
			&ev.ID,
			&ev.MonitorID,
			&ev.SessionID,
			&ev.CapturedAt,
			&reasonsJSON,
			&ev.Image,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}

		var reasons posture.ReasonSet
		if err := json.Unmarshal(reasonsJSON, &reasons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reasons: %w", err)
		}
		ev.Reasons = reasons
		evidence = append(evidence, ev)
	}

	return evidence, rows.Err()
}

// ===== Удаление =====

func (r *PostgresRepository) DeleteMonitor(ctx context.Context, monitorID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queries := []string{
		"DELETE FROM posture_evidence WHERE monitor_id = $1",
		"DELETE FROM posture_alerts WHERE monitor_id = $1",
		"DELETE FROM posture_sessions WHERE monitor_id = $1",
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query, monitorID); err != nil {
			return fmt.Errorf("failed to delete monitor data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
