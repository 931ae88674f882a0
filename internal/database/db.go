package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// NewDB creates a new database connection with optimized pooling
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "zscore_engine.db")

	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		// Assessment audit trail. One row per scored request; explanation
		// and trust breakdown are stored as JSON for replay and review.
		`CREATE TABLE IF NOT EXISTS assessments (
			id TEXT PRIMARY KEY,
			applicant_id TEXT NOT NULL,
			record_version INTEGER NOT NULL,
			overall_trust REAL NOT NULL,
			behavioral_score REAL NOT NULL,
			social_score REAL NOT NULL,
			digital_score REAL NOT NULL,
			obscurity_index REAL NOT NULL,
			probability_of_default REAL NOT NULL,
			ci_lower REAL NOT NULL,
			ci_upper REAL NOT NULL,
			category TEXT NOT NULL,
			credit_eligible BOOLEAN NOT NULL,
			model_version TEXT NOT NULL,
			used_fallback BOOLEAN NOT NULL,
			explanation TEXT,
			created_at DATETIME NOT NULL
		)`,

		// Append-only gamification event log. Rows are never updated or
		// deleted; state is rebuilt by replaying in occurred_at order.
		`CREATE TABLE IF NOT EXISTS gamification_events (
			id TEXT PRIMARY KEY,
			applicant_id TEXT NOT NULL,
			action_type TEXT NOT NULL,
			credits INTEGER NOT NULL,
			occurred_at DATETIME NOT NULL
		)`,

		// Indexes for performance
		`CREATE INDEX IF NOT EXISTS idx_assessments_applicant ON assessments(applicant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_applicant ON gamification_events(applicant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON gamification_events(occurred_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_assessment": `INSERT INTO assessments (
			id, applicant_id, record_version, overall_trust, behavioral_score,
			social_score, digital_score, obscurity_index, probability_of_default,
			ci_lower, ci_upper, category, credit_eligible, model_version,
			used_fallback, explanation, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		"insert_event": `INSERT INTO gamification_events (id, applicant_id, action_type, credits, occurred_at)
			VALUES (?, ?, ?, ?, ?)`,

		"get_assessments": `SELECT id, applicant_id, record_version, overall_trust,
			obscurity_index, probability_of_default, ci_lower, ci_upper, category,
			credit_eligible, model_version, used_fallback, created_at
			FROM assessments WHERE applicant_id = ? ORDER BY created_at DESC LIMIT ?`,

		"get_assessment": `SELECT id, applicant_id, record_version, overall_trust,
			behavioral_score, social_score, digital_score, obscurity_index,
			probability_of_default, ci_lower, ci_upper, category, credit_eligible,
			model_version, used_fallback, explanation, created_at
			FROM assessments WHERE id = ?`,

		"get_events": `SELECT id, applicant_id, action_type, credits, occurred_at
			FROM gamification_events ORDER BY occurred_at ASC`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}

	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
