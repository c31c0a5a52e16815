package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"voicecmd/internal/domain"
)

const queueSize = 256

// Store persists audit events to Postgres. Record only enqueues; a worker
// goroutine started by Run drains the queue, so authorization decisions never
// wait on the database. When the queue is full the event is dropped and
// counted rather than blocking.
type Store struct {
	pool   *pgxpool.Pool
	queue  chan domain.AuditEvent
	logger *slog.Logger
}

func New(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:   pool,
		queue:  make(chan domain.AuditEvent, queueSize),
		logger: logger,
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			request_id TEXT NOT NULL,
			intent TEXT NOT NULL DEFAULT '',
			confidence DOUBLE PRECISION NOT NULL,
			decision TEXT NOT NULL,
			reason TEXT NOT NULL,
			transcribed_text TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_request ON audit_events(request_id);`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Record(_ context.Context, ev domain.AuditEvent) {
	select {
	case s.queue <- ev:
	default:
		s.logger.Warn("audit queue full, dropping event", "request_id", ev.RequestID)
	}
}

// Run drains the queue until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			if err := s.insert(ctx, ev); err != nil {
				s.logger.Warn("audit insert failed", "request_id", ev.RequestID, "error", err)
			}
		}
	}
}

func (s *Store) insert(ctx context.Context, ev domain.AuditEvent) error {
	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(insertCtx,
		`INSERT INTO audit_events (request_id, intent, confidence, decision, reason, transcribed_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.RequestID, ev.Intent, ev.Confidence, ev.Decision, ev.Reason, ev.TranscribedText, ev.CreatedAt,
	)
	return err
}

// Recent returns the latest audit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT request_id, intent, confidence, decision, reason, transcribed_text, created_at
		 FROM audit_events ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var ev domain.AuditEvent
		if err := rows.Scan(&ev.RequestID, &ev.Intent, &ev.Confidence, &ev.Decision, &ev.Reason, &ev.TranscribedText, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
