package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteGateway stores every collection as one JSON document row.
type SQLiteGateway struct {
	db *sql.DB

	loadStmt *sql.Stmt
	saveStmt *sql.Stmt
}

// NewSQLiteGateway opens (or creates) the SQLite database at dbPath, applies
// schema migrations, and prepares the load/save statements.
func NewSQLiteGateway(dbPath string) (*SQLiteGateway, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	gw := &SQLiteGateway{db: db}
	if err := gw.prepareStatements(); err != nil {
		gw.Close()
		return nil, err
	}
	return gw, nil
}

// Close releases prepared statements and closes the DB.
func (g *SQLiteGateway) Close() error {
	if g.loadStmt != nil {
		g.loadStmt.Close()
	}
	if g.saveStmt != nil {
		g.saveStmt.Close()
	}
	return g.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
            name TEXT PRIMARY KEY,
            body TEXT NOT NULL,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (g *SQLiteGateway) prepareStatements() error {
	var err error
	if g.loadStmt, err = g.db.Prepare(`SELECT body FROM collections WHERE name=?`); err != nil {
		return err
	}
	if g.saveStmt, err = g.db.Prepare(`INSERT INTO collections(name,body,updated_at) VALUES(?,?,?)
        ON CONFLICT(name) DO UPDATE SET body=excluded.body, updated_at=excluded.updated_at`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Gateway
// ---------------------------------------------------------------------------

// Load returns "[]" when the collection has no row yet.
func (g *SQLiteGateway) Load(collection string) ([]byte, error) {
	var body string
	err := g.loadStmt.QueryRow(collection).Scan(&body)
	if err == sql.ErrNoRows {
		return emptyArray, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

// Save upserts the collection document inside a single transaction.
func (g *SQLiteGateway) Save(collection string, data []byte) error {
	tx, err := g.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Stmt(g.saveStmt).Exec(collection, string(data), time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// Collections lists the names that have been saved at least once.
func (g *SQLiteGateway) Collections() ([]string, error) {
	rows, err := g.db.Query(`SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
