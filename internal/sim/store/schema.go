package store

//nolint:gochecknoglobals // schema statements
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sim_cards (
		id BIGINT PRIMARY KEY,
		serial_number TEXT NOT NULL UNIQUE,
		batch_id TEXT NOT NULL,
		lot_number TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		team_id TEXT NULL,
		assigned_to_user_id TEXT NULL,
		sold_by_user_id TEXT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		sold_at BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sim_cards_batch ON sim_cards(batch_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sim_cards_status ON sim_cards(status)`,
	`CREATE TABLE IF NOT EXISTS sim_batches (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		err TEXT NOT NULL DEFAULT '',
		started_at BIGINT NOT NULL DEFAULT 0,
		ended_at BIGINT NOT NULL DEFAULT 0,
		total BIGINT NOT NULL DEFAULT 0,
		inserted BIGINT NOT NULL DEFAULT 0,
		failed BIGINT NOT NULL DEFAULT 0,
		percent INTEGER NOT NULL DEFAULT 0,
		rollback_state TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sim_activities (
		id BIGINT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sim_activities_batch ON sim_activities(batch_id)`,
}
