package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/supplychain"
	"go.uber.org/zap"
)

// CreateSystem saves a full product system (processes + links) in one
// transaction, replacing an existing system with the same ID.
// A system without an ID gets an auto-generated UUID.
func (s *PGStore) CreateSystem(ctx context.Context, ps *supplychain.ProductSystem) (*supplychain.ProductSystem, error) {
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	if ps.ID == "" {
		ps.ID = uuid.NewString()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("supplychain: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Replace semantics: processes and links cascade with the system row.
	if _, err := tx.Exec(ctx, `DELETE FROM product_systems WHERE id = $1`, ps.ID); err != nil {
		return nil, fmt.Errorf("supplychain: delete system: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO product_systems (id, name, reference_process) VALUES ($1, $2, $3)`,
		ps.ID, ps.Name, int64(ps.ReferenceProcess),
	); err != nil {
		return nil, fmt.Errorf("supplychain: insert system: %w", err)
	}
	if err := writeMembers(ctx, tx, ps); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("supplychain: commit: %w", err)
	}
	s.log.Debug("created product system",
		zap.String("system", ps.ID),
		zap.Int("processes", len(ps.Processes)),
		zap.Int("links", len(ps.Links)),
	)
	return ps, nil
}

// GetSystem retrieves a full product system by its ID.
// Returns nil, nil if the system doesn't exist.
func (s *PGStore) GetSystem(ctx context.Context, systemID string) (*supplychain.ProductSystem, error) {
	ps := &supplychain.ProductSystem{ID: systemID}
	var ref int64
	err := s.db.QueryRow(ctx,
		`SELECT name, reference_process FROM product_systems WHERE id = $1`, systemID,
	).Scan(&ps.Name, &ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("supplychain: get system: %w", err)
	}
	ps.ReferenceProcess = supplychain.ProcessID(ref)

	if ps.Processes, err = s.ListProcesses(ctx, systemID); err != nil {
		return nil, err
	}
	if ps.Links, err = s.ListLinks(ctx, systemID); err != nil {
		return nil, err
	}
	return ps, nil
}

// SaveSystem replaces the name, reference, processes and links of an existing
// system. Returns ErrSystemNotFound if the system doesn't exist.
func (s *PGStore) SaveSystem(ctx context.Context, ps *supplychain.ProductSystem) error {
	if err := ps.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("supplychain: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE product_systems SET name = $1, reference_process = $2 WHERE id = $3`,
		ps.Name, int64(ps.ReferenceProcess), ps.ID,
	)
	if err != nil {
		return fmt.Errorf("supplychain: update system: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return supplychain.ErrSystemNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM ps_processes WHERE system_id = $1`, ps.ID); err != nil {
		return fmt.Errorf("supplychain: delete processes: %w", err)
	}
	if err := writeMembers(ctx, tx, ps); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("supplychain: commit: %w", err)
	}
	s.log.Debug("saved product system",
		zap.String("system", ps.ID),
		zap.Int("processes", len(ps.Processes)),
		zap.Int("links", len(ps.Links)),
	)
	return nil
}

// DeleteSystem removes a system with its processes and links.
// No error if the system doesn't exist.
func (s *PGStore) DeleteSystem(ctx context.Context, systemID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM product_systems WHERE id = $1`, systemID); err != nil {
		return fmt.Errorf("supplychain: delete system: %w", err)
	}
	return nil
}

// writeMembers bulk-copies the processes and links of ps.
func writeMembers(ctx context.Context, tx pgx.Tx, ps *supplychain.ProductSystem) error {
	processes := slices.Compact(slices.Sorted(slices.Values(ps.Processes)))
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"ps_processes"},
		[]string{"system_id", "process_id"},
		pgx.CopyFromSlice(len(processes), func(i int) ([]any, error) {
			return []any{ps.ID, int64(processes[i])}, nil
		}),
	); err != nil {
		return fmt.Errorf("supplychain: copy processes: %w", err)
	}

	// Equal links would collide on the primary key.
	seen := make(map[supplychain.ProcessLink]struct{}, len(ps.Links))
	rows := make([][]any, 0, len(ps.Links))
	for _, l := range ps.Links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		rows = append(rows, []any{ps.ID, int64(l.ProviderID), int64(l.ProcessID), l.FlowID, l.ExchangeID})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"ps_links"},
		[]string{"system_id", "provider_id", "process_id", "flow_id", "exchange_id"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("supplychain: copy links: %w", err)
	}
	return nil
}
