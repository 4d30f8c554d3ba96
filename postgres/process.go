package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/supplychain"
)

// AddProcess inserts a process into a system. Adding an existing process is a
// no-op. Returns ErrSystemNotFound if the system doesn't exist.
func (s *PGStore) AddProcess(ctx context.Context, systemID string, id supplychain.ProcessID) error {
	ct, err := s.db.Exec(ctx,
		`INSERT INTO ps_processes (system_id, process_id)
		 SELECT id, $2 FROM product_systems WHERE id = $1
		 ON CONFLICT DO NOTHING`,
		systemID, int64(id),
	)
	if err != nil {
		return fmt.Errorf("supplychain: insert process: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return s.systemExists(ctx, systemID)
	}
	return nil
}

// RemoveProcess deletes a process. Its links are cascade-deleted by the DB.
// No error if the process doesn't exist.
func (s *PGStore) RemoveProcess(ctx context.Context, systemID string, id supplychain.ProcessID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM ps_processes WHERE system_id = $1 AND process_id = $2`, systemID, int64(id))
	if err != nil {
		return fmt.Errorf("supplychain: delete process: %w", err)
	}
	return nil
}

// ListProcesses returns all processes of a system, ordered by created_at.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListProcesses(ctx context.Context, systemID string) ([]supplychain.ProcessID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT process_id FROM ps_processes WHERE system_id = $1 ORDER BY created_at, process_id`, systemID)
	if err != nil {
		return nil, fmt.Errorf("supplychain: list processes: %w", err)
	}
	defer rows.Close()

	processes := []supplychain.ProcessID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("supplychain: scan process: %w", err)
		}
		processes = append(processes, supplychain.ProcessID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("supplychain: rows processes: %w", err)
	}

	return processes, nil
}

// systemExists returns ErrSystemNotFound when no system has the ID.
func (s *PGStore) systemExists(ctx context.Context, systemID string) error {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM product_systems WHERE id = $1)`, systemID,
	).Scan(&ok)
	if err != nil {
		return fmt.Errorf("supplychain: find system: %w", err)
	}
	if !ok {
		return supplychain.ErrSystemNotFound
	}
	return nil
}
