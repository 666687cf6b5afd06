package migrate

import (
	"context"

	"github.com/swadhinbiswas/opencodehub/pkg/db"
)

const (
	createTablesName    = "create tables"
	createTablesVersion = 1
)

var createTables = Migration{
	Version: createTablesVersion,
	Name:    createTablesName,
	Migrate: func(ctx context.Context, tx *db.Tx) error {
		var idAutoincrement string
		var now string
		switch tx.DriverName() {
		case "sqlite", "sqlite3":
			idAutoincrement = "INTEGER PRIMARY KEY AUTOINCREMENT"
			now = "CURRENT_TIMESTAMP"
		case "postgres":
			idAutoincrement = "SERIAL PRIMARY KEY"
			now = "NOW()"
		}

		for _, stmt := range []string{
			`CREATE TABLE IF NOT EXISTS repos (
				id ` + idAutoincrement + `,
				name TEXT NOT NULL UNIQUE,
				private BOOLEAN NOT NULL DEFAULT false,
				tier TEXT NOT NULL DEFAULT 'local',
				remote_key TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT ` + now + `,
				updated_at TIMESTAMP NOT NULL DEFAULT ` + now + `
			);`,
			`CREATE TABLE IF NOT EXISTS repo_locks (
				id ` + idAutoincrement + `,
				repo_key TEXT NOT NULL UNIQUE,
				token TEXT NOT NULL,
				expires_at TIMESTAMP NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT ` + now + `
			);`,
			`CREATE TABLE IF NOT EXISTS lfs_objects (
				id ` + idAutoincrement + `,
				oid TEXT NOT NULL,
				size INTEGER NOT NULL,
				repo_id INTEGER NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT ` + now + `,
				UNIQUE (oid, repo_id),
				CONSTRAINT repo_id_fk
					FOREIGN KEY (repo_id) REFERENCES repos (id)
					ON DELETE CASCADE
					ON UPDATE CASCADE
			);`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		return nil
	},
}
