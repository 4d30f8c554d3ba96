package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meikuraledutech/supplychain"
)

// foreignKeyViolation is the SQLSTATE of a missing referenced row.
const foreignKeyViolation = "23503"

// AddLink inserts a link into a system. Adding an existing link is a no-op.
// Returns ErrUnknownProcess if an endpoint is not a process of the system.
func (s *PGStore) AddLink(ctx context.Context, systemID string, link supplychain.ProcessLink) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO ps_links (system_id, provider_id, process_id, flow_id, exchange_id)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		systemID, int64(link.ProviderID), int64(link.ProcessID), link.FlowID, link.ExchangeID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("%w: link %d -> %d", supplychain.ErrUnknownProcess, link.ProviderID, link.ProcessID)
		}
		return fmt.Errorf("supplychain: insert link: %w", err)
	}
	return nil
}

// RemoveLink deletes a link. No error if the link doesn't exist.
func (s *PGStore) RemoveLink(ctx context.Context, systemID string, link supplychain.ProcessLink) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM ps_links
		 WHERE system_id = $1 AND provider_id = $2 AND process_id = $3 AND flow_id = $4 AND exchange_id = $5`,
		systemID, int64(link.ProviderID), int64(link.ProcessID), link.FlowID, link.ExchangeID,
	)
	if err != nil {
		return fmt.Errorf("supplychain: delete link: %w", err)
	}
	return nil
}

// ListLinks returns all links of a system, ordered by created_at.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListLinks(ctx context.Context, systemID string) ([]supplychain.ProcessLink, error) {
	rows, err := s.db.Query(ctx,
		`SELECT provider_id, process_id, flow_id, exchange_id FROM ps_links
		 WHERE system_id = $1 ORDER BY created_at, provider_id, process_id`, systemID)
	if err != nil {
		return nil, fmt.Errorf("supplychain: list links: %w", err)
	}
	defer rows.Close()

	links := []supplychain.ProcessLink{}
	for rows.Next() {
		var provider, process int64
		var l supplychain.ProcessLink
		if err := rows.Scan(&provider, &process, &l.FlowID, &l.ExchangeID); err != nil {
			return nil, fmt.Errorf("supplychain: scan link: %w", err)
		}
		l.ProviderID = supplychain.ProcessID(provider)
		l.ProcessID = supplychain.ProcessID(process)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("supplychain: rows links: %w", err)
	}

	return links, nil
}
