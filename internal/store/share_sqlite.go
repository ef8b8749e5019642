package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/groundupworks/wings/internal/models"
)

func (s *SQLiteStore) CreateShareRequest(filePath string, dest models.Destination) (int64, error) {
	if filePath == "" {
		return 0, fmt.Errorf("file path is empty: %w", models.ErrValidation)
	}

	result, err := s.db.Exec(
		`INSERT INTO share_requests (file_path, destination_id, endpoint_id, state, fails, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		filePath, dest.ID, dest.EndpointID, models.StatePending, time.Now().UTC(),
	)
	if err != nil {
		return 0, models.NewStoreError("create share request", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, models.NewStoreError("create share request id", err)
	}
	slog.Debug("SQLiteStore.CreateShareRequest", "id", id, "filePath", filePath, "destination", dest.Hash())
	return id, nil
}

func (s *SQLiteStore) CheckoutShareRequests(dest models.Destination) ([]models.ShareRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, models.NewStoreError("checkout begin", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, file_path, destination_id, endpoint_id, state, fails, created_at
		 FROM share_requests
		 WHERE endpoint_id = ? AND destination_id = ? AND state = ?
		 ORDER BY created_at ASC, id ASC`,
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
			`UPDATE share_requests SET state = ? WHERE id = ?`,
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
		slog.Debug("SQLiteStore.CheckoutShareRequests", "destination", dest.Hash(), "count", len(requests))
	}
	return requests, nil
}

func (s *SQLiteStore) MarkSuccessful(id int64) error {
	result, err := s.db.Exec(
		`UPDATE share_requests SET state = ? WHERE id = ? AND state = ?`,
		models.StateProcessed, id, models.StateProcessing,
	)
	if err != nil {
		return models.NewStoreError("mark successful", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("mark successful id=%d: %w", id, models.ErrNotFound)
	}
	slog.Debug("SQLiteStore.MarkSuccessful", "id", id)
	return nil
}

func (s *SQLiteStore) MarkFailed(id int64) error {
	result, err := s.db.Exec(
		`UPDATE share_requests SET state = ?, fails = fails + 1 WHERE id = ? AND state = ?`,
		models.StateProcessed, id, models.StateProcessing,
	)
	if err != nil {
		return models.NewStoreError("mark failed", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("mark failed id=%d: %w", id, models.ErrNotFound)
	}
	slog.Debug("SQLiteStore.MarkFailed", "id", id)
	return nil
}

func (s *SQLiteStore) ResetProcessingShareRequests() (int, error) {
	result, err := s.db.Exec(
		`UPDATE share_requests SET state = ? WHERE state = ?`,
		models.StatePending, models.StateProcessing,
	)
	if err != nil {
		return 0, models.NewStoreError("reset processing", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Info("SQLiteStore.ResetProcessingShareRequests", "reset", n)
	}
	return int(n), nil
}

func (s *SQLiteStore) Purge() (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, models.NewStoreError("purge begin", err)
	}
	defer tx.Rollback()

	expiry := time.Now().UTC().Add(-RecordExpiry)
	result, err := tx.Exec(
		`DELETE FROM share_requests WHERE state = ? OR created_at < ?`,
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
	slog.Debug("SQLiteStore.Purge", "deleted", deleted, "remaining", remaining)
	return remaining, nil
}

func (s *SQLiteStore) DeleteShareRequests(dest models.Destination) error {
	result, err := s.db.Exec(
		`DELETE FROM share_requests WHERE endpoint_id = ? AND destination_id = ?`,
		dest.EndpointID, dest.ID,
	)
	if err != nil {
		return models.NewStoreError("delete share requests", err)
	}
	n, _ := result.RowsAffected()
	slog.Debug("SQLiteStore.DeleteShareRequests", "destination", dest.Hash(), "deleted", n)
	return nil
}

func (s *SQLiteStore) PendingShareRequests() ([]models.ShareRequest, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, destination_id, endpoint_id, state, fails, created_at
		 FROM share_requests WHERE state != ?
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

func (s *SQLiteStore) ConsecutiveFails() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT consecutive_fails FROM retry_policy WHERE id = 1`).Scan(&n); err != nil {
		return 0, models.NewStoreError("consecutive fails", err)
	}
	return n, nil
}

func (s *SQLiteStore) SetConsecutiveFails(n int) error {
	if _, err := s.db.Exec(`UPDATE retry_policy SET consecutive_fails = ? WHERE id = 1`, n); err != nil {
		return models.NewStoreError("set consecutive fails", err)
	}
	slog.Debug("SQLiteStore.SetConsecutiveFails", "fails", n)
	return nil
}

func (s *SQLiteStore) Setting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", models.NewStoreError("setting", err)
	}
	return value, nil
}

func (s *SQLiteStore) PutSetting(key, value string) error {
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`,
		key, value,
	); err != nil {
		return models.NewStoreError("put setting", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSettings(prefix string) error {
	if _, err := s.db.Exec(
		`DELETE FROM settings WHERE key LIKE ? || '%'`,
		prefix,
	); err != nil {
		return models.NewStoreError("delete settings", err)
	}
	slog.Debug("SQLiteStore.DeleteSettings", "prefix", prefix)
	return nil
}
