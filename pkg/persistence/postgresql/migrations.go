package postgresql

// migrations returns the full schema history keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS books (
				id           TEXT PRIMARY KEY,
				owner_id     TEXT NOT NULL,
				owner_name   TEXT NOT NULL DEFAULT '',
				title        TEXT NOT NULL,
				description  TEXT NOT NULL DEFAULT '',
				category     TEXT NOT NULL DEFAULT '',
				state        TEXT NOT NULL,
				version      BIGINT NOT NULL DEFAULT 1,
				metadata     JSONB,
				created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_books_state ON books (state, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_books_category ON books (category, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_books_owner ON books (owner_id);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS workflow_ledger (
				id         TEXT PRIMARY KEY,
				subject_id TEXT NOT NULL,
				from_state TEXT,
				to_state   TEXT NOT NULL,
				actor_id   TEXT NOT NULL,
				action     TEXT NOT NULL,
				comments   TEXT NOT NULL DEFAULT '',
				metadata   JSONB,
				timestamp  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_ledger_subject
				ON workflow_ledger (subject_id, timestamp DESC, id DESC);
		`,
	}
}
