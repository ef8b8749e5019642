package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/groundupworks/wings/internal/models"
)

func (s *PostgresStore) CreateShareRequest(filePath string, dest models.Destination) (int64, error) {
	if filePath == "" {
		return 0, fmt.Errorf("file path is empty: %w", models.ErrValidation)
	}

	var id int64
	err := s.db.QueryRow(
		`INSERT INTO share_requests (file_path, destination_id, endpoint_id, state, fails, created_at)
		 VALUES ($1, $2, $3, $4, 0, $5) RETURNING id`,
		filePath, dest.ID, dest.EndpointID, models.StatePending, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, models.NewStoreError("create share request", err)
	}
	slog.Debug("PostgresStore.CreateShareRequest", "id", id, "filePath", filePath, "destination", dest.Hash())
	return id, nil
}

func (s *PostgresStore) CheckoutShareRequests(dest models.Destination) ([]models.ShareRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, models.NewStoreError("checkout begin", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, file_path, destination_id, endpoint_id, state, fails, created_at
		 FROM share_requests
		 WHERE endpoint_id = $1 AND destination_id = $2 AND state = $3
		 ORDER BY created_at ASC, id ASC
		 FOR UPDATE`,
		dest.EndpointID, dest.ID, models.StatePending,
	)
	if err != nil {
		return nil, models.NewStoreError("checkout query", err)
	}
	requests, err := scanShareRequests(rows)
	if err != nil {
		return nil, models.NewStoreError("checkout scan", err)
	}

	for i := range requests {
		if _, err := tx.Exec(
			`UPDATE share_requests SET state = $1 WHERE id = $2`,
			models.StateProcessing, requests[i].ID,
		); err != nil {
			return nil, models.NewStoreError("checkout claim", err)
		}
		requests[i].State = models.StateProcessing
	}

	if err := tx.Commit(); err != nil {
		return nil, models.NewStoreError("checkout commit", err)
	}
	if len(requests) > 0 {
		slog.Debug("PostgresStore.CheckoutShareRequests", "destination", dest.Hash(), "count", len(requests))
	}
	return requests, nil
}

func (s *PostgresStore) MarkSuccessful(id int64) error {
	result, err := s.db.Exec(
		`UPDATE share_requests SET state = $1 WHERE id = $2 AND state = $3`,
		models.StateProcessed, id, models.StateProcessing,
	)
	if err != nil {
		return models.NewStoreError("mark successful", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("mark successful id=%d: %w", id, models.ErrNotFound)
	}
	slog.Debug("PostgresStore.MarkSuccessful", "id", id)
	return nil
}

func (s *PostgresStore) MarkFailed(id int64) error {
	result, err := s.db.Exec(
		`UPDATE share_requests SET state = $1, fails = fails + 1 WHERE id = $2 AND state = $3`,
		models.StateProcessed, id, models.StateProcessing,
	)
	if err != nil {
		return models.NewStoreError("mark failed", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("mark failed id=%d: %w", id, models.ErrNotFound)
	}
	slog.Debug("PostgresStore.MarkFailed", "id", id)
	return nil
}

func (s *PostgresStore) ResetProcessingShareRequests() (int, error) {
	result, err := s.db.Exec(
		`UPDATE share_requests SET state = $1 WHERE state = $2`,
		models.StatePending, models.StateProcessing,
	)
	if err != nil {
		return 0, models.NewStoreError("reset processing", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Info("PostgresStore.ResetProcessingShareRequests", "reset", n)
	}
	return int(n), nil
}

func (s *PostgresStore) Purge() (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, models.NewStoreError("purge begin", err)
	}
	defer tx.Rollback()

	expiry := time.Now().UTC().Add(-RecordExpiry)
	result, err := tx.Exec(
		`DELETE FROM share_requests WHERE state = $1 OR created_at < $2`,
		models.StateProcessed, expiry,
	)
	if err != nil {
		return 0, models.NewStoreError("purge delete", err)
	}
	deleted, _ := result.RowsAffected()

	var remaining int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM share_requests`).Scan(&remaining); err != nil {
		return 0, models.NewStoreError("purge count", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, models.NewStoreError("purge commit", err)
	}
	slog.Debug("PostgresStore.Purge", "deleted", deleted, "remaining", remaining)
	return remaining, nil
}

func (s *PostgresStore) DeleteShareRequests(dest models.Destination) error {
	result, err := s.db.Exec(
		`DELETE FROM share_requests WHERE endpoint_id = $1 AND destination_id = $2`,
		dest.EndpointID, dest.ID,
	)
	if err != nil {
		return models.NewStoreError("delete share requests", err)
	}
	n, _ := result.RowsAffected()
	slog.Debug("PostgresStore.DeleteShareRequests", "destination", dest.Hash(), "deleted", n)
	return nil
}

func (s *PostgresStore) PendingShareRequests() ([]models.ShareRequest, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, destination_id, endpoint_id, state, fails, created_at
		 FROM share_requests WHERE state != $1
		 ORDER BY created_at ASC, id ASC`,
		models.StateProcessed,
	)
	if err != nil {
		return nil, models.NewStoreError("pending share requests", err)
	}
	requests, err := scanShareRequests(rows)
	if err != nil {
		return nil, models.NewStoreError("pending share requests scan", err)
	}
	return requests, nil
}

func (s *PostgresStore) ConsecutiveFails() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT consecutive_fails FROM retry_policy WHERE id = 1`).Scan(&n); err != nil {
		return 0, models.NewStoreError("consecutive fails", err)
	}
	return n, nil
}

func (s *PostgresStore) SetConsecutiveFails(n int) error {
	if _, err := s.db.Exec(`UPDATE retry_policy SET consecutive_fails = $1 WHERE id = 1`, n); err != nil {
		return models.NewStoreError("set consecutive fails", err)
	}
	slog.Debug("PostgresStore.SetConsecutiveFails", "fails", n)
	return nil
}

func (s *PostgresStore) Setting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", models.NewStoreError("setting", err)
	}
	return value, nil
}

func (s *PostgresStore) PutSetting(key, value string) error {
	if _, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	); err != nil {
		return models.NewStoreError("put setting", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSettings(prefix string) error {
	if _, err := s.db.Exec(
		`DELETE FROM settings WHERE key LIKE $1 || '%'`,
		prefix,
	); err != nil {
		return models.NewStoreError("delete settings", err)
	}
	slog.Debug("PostgresStore.DeleteSettings", "prefix", prefix)
	return nil
}
