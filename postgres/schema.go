package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS product_systems (
    id                TEXT PRIMARY KEY,
    name              TEXT NOT NULL DEFAULT '',
    reference_process BIGINT NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ps_processes (
    system_id  TEXT NOT NULL REFERENCES product_systems(id) ON DELETE CASCADE,
    process_id BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (system_id, process_id)
);

CREATE TABLE IF NOT EXISTS ps_links (
    system_id   TEXT NOT NULL,
    provider_id BIGINT NOT NULL,
    process_id  BIGINT NOT NULL,
    flow_id     BIGINT NOT NULL,
    exchange_id BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (system_id, provider_id, process_id, flow_id, exchange_id),
    FOREIGN KEY (system_id, provider_id) REFERENCES ps_processes(system_id, process_id) ON DELETE CASCADE,
    FOREIGN KEY (system_id, process_id)  REFERENCES ps_processes(system_id, process_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_ps_links_provider ON ps_links(system_id, provider_id);
CREATE INDEX IF NOT EXISTS idx_ps_links_process  ON ps_links(system_id, process_id);
`

// CreateSchema creates the product system tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the product system tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS ps_links, ps_processes, product_systems CASCADE;`)
	return err
}
