package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/groundupworks/wings/internal/models"
)

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// scanShareRequests drains rows into share request records. It closes rows.
func scanShareRequests(rows *sql.Rows) ([]models.ShareRequest, error) {
	defer rows.Close()

	var requests []models.ShareRequest
	for rows.Next() {
		var r models.ShareRequest
		var state int
		err := rows.Scan(&r.ID, &r.FilePath, &r.Destination.ID, &r.Destination.EndpointID, &state, &r.Fails, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan share request failed: %w", err)
		}
		r.State = models.State(state)
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("share request iteration failed: %w", err)
	}
	return requests, nil
}
