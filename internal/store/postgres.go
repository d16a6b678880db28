package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	selectTokenQuery = `
						SELECT token FROM session_slots WHERE context_id = $1
						`
	upsertTokenQuery = `
						INSERT INTO session_slots (context_id, token)
						VALUES ($1, $2)
						ON CONFLICT (context_id)
						DO UPDATE SET token = EXCLUDED.token, updated_at = now()
						`
	deleteTokenQuery = `
						DELETE FROM session_slots WHERE context_id = $1
						`
	deleteReasonQuery = `
						DELETE FROM logout_reasons WHERE context_id = $1
						`
	upsertReasonQuery = `
						INSERT INTO logout_reasons (context_id, reason)
						VALUES ($1, $2)
						ON CONFLICT (context_id)
						DO UPDATE SET reason = EXCLUDED.reason, created_at = now()
						`
	takeReasonQuery = `
						DELETE FROM logout_reasons WHERE context_id = $1 RETURNING reason
						`
)

// PostgresStore is the durable TokenStore, one row per browser context.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Get(ctx context.Context, contextID string) (string, error) {
	var tok string
	err := s.db.QueryRowContext(ctx, selectTokenQuery, contextID).Scan(&tok)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		s.logPgError("failed to read token slot", contextID, err)
		return "", err
	}
	return tok, nil
}

func (s *PostgresStore) Set(ctx context.Context, contextID, token string) error {
	if _, err := s.db.ExecContext(ctx, upsertTokenQuery, contextID, token); err != nil {
		s.logPgError("failed to write token slot", contextID, err)
		return err
	}
	return nil
}

// Clear removes the token slot and any pending logout reason in one
// transaction so readers never observe the reason outliving the slot.
func (s *PostgresStore) Clear(ctx context.Context, contextID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, deleteTokenQuery, contextID); err != nil {
		s.logPgError("failed to clear token slot", contextID, err)
		return err
	}
	if _, err := tx.ExecContext(ctx, deleteReasonQuery, contextID); err != nil {
		s.logPgError("failed to clear logout reason", contextID, err)
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) SetLogoutReason(ctx context.Context, contextID string, reason Reason) error {
	if _, err := s.db.ExecContext(ctx, upsertReasonQuery, contextID, string(reason)); err != nil {
		s.logPgError("failed to write logout reason", contextID, err)
		return err
	}
	return nil
}

func (s *PostgresStore) TakeLogoutReason(ctx context.Context, contextID string) (Reason, error) {
	var reason string
	err := s.db.QueryRowContext(ctx, takeReasonQuery, contextID).Scan(&reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		s.logPgError("failed to take logout reason", contextID, err)
		return "", err
	}
	return Reason(reason), nil
}

func (s *PostgresStore) logPgError(msg, contextID string, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		level := s.logger.Error
		if pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			level = s.logger.Warn
		}
		level(msg,
			zap.String("context_id", contextID),
			zap.String("code", pgErr.Code),
			zap.String("detail", pgErr.Detail),
			zap.Error(err),
		)
		return
	}
	s.logger.Error(msg, zap.String("context_id", contextID), zap.Error(err))
}
