package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// MySQLConfig holds MySQL connection configuration
type MySQLConfig struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	SSLMode         string
	Charset         string
	ParseTime       bool
	Loc             string
}

// MySQLDatabase represents a MySQL database connection
type MySQLDatabase struct {
	db     *sql.DB
	config MySQLConfig
	logger *logrus.Logger
}

// NewMySQLDatabase creates a new MySQL database connection
func NewMySQLDatabase(config MySQLConfig, logger *logrus.Logger) (*MySQLDatabase, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
		config.Charset,
		config.ParseTime,
		config.Loc,
	)

	if config.SSLMode != "" {
		dsn += "&tls=" + config.SSLMode
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	mysql := &MySQLDatabase{
		db:     db,
		config: config,
		logger: logger,
	}

	logger.WithFields(logrus.Fields{
		"host":     config.Host,
		"port":     config.Port,
		"database": config.Database,
	}).Info("Connected to MySQL database")

	return mysql, nil
}

// Close closes the database connection
func (m *MySQLDatabase) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Health checks database health
func (m *MySQLDatabase) Health() error {
	ctx, cancel := m.getContext(context.Background())
	defer cancel()

	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Migrate runs database migrations
func (m *MySQLDatabase) Migrate() error {
	migrations := []string{
		createConversationsTable,
		createOrdersTable,
		createOrderItemsTable,
		createTranscriptsTable,
	}

	for i, migration := range migrations {
		m.logger.WithField("migration", i+1).Debug("Running migration")

		if _, err := m.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	m.logger.Info("Database migrations completed successfully")
	return nil
}

// getContext bounds a storage round trip with a timeout
func (m *MySQLDatabase) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, 30*time.Second)
}

// Database schema definitions
const createConversationsTable = `
CREATE TABLE IF NOT EXISTS conversations (
    id VARCHAR(36) PRIMARY KEY,
    conversation_id VARCHAR(64) NOT NULL UNIQUE,
    session_id VARCHAR(255) NOT NULL UNIQUE,
    status ENUM('pending', 'in_progress', 'completed', 'abandoned') NOT NULL DEFAULT 'pending',
    success BOOLEAN NOT NULL DEFAULT FALSE,
    duration_seconds DOUBLE NOT NULL DEFAULT 0,
    total_turns INT NOT NULL DEFAULT 0,
    user_turns INT NOT NULL DEFAULT 0,
    agent_turns INT NOT NULL DEFAULT 0,
    tool_calls_count INT NOT NULL DEFAULT 0,
    successful_tool_calls INT NOT NULL DEFAULT 0,
    error_count INT NOT NULL DEFAULT 0,
    summary TEXT NULL,
    sentiment_score DOUBLE NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    INDEX idx_status (status),
    INDEX idx_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

const createOrdersTable = `
CREATE TABLE IF NOT EXISTS orders (
    id VARCHAR(36) PRIMARY KEY,
    conversation_id VARCHAR(64) NOT NULL,
    status VARCHAR(16) NOT NULL,
    total_price DECIMAL(8,2) NOT NULL DEFAULT 0,
    item_count INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id) ON DELETE CASCADE,
    INDEX idx_conversation_id (conversation_id),
    INDEX idx_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

const createOrderItemsTable = `
CREATE TABLE IF NOT EXISTS order_items (
    id VARCHAR(36) PRIMARY KEY,
    order_id VARCHAR(36) NOT NULL,
    item_name VARCHAR(255) NOT NULL,
    item_type ENUM('regular', 'combo') NOT NULL,
    price DECIMAL(8,2) NOT NULL DEFAULT 0,
    quantity INT NOT NULL DEFAULT 1,
    size VARCHAR(32) NULL,
    drink VARCHAR(64) NULL,
    sauce VARCHAR(64) NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
    INDEX idx_order_id (order_id),
    INDEX idx_item_type (item_type)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

const createTranscriptsTable = `
CREATE TABLE IF NOT EXISTS transcripts (
    id VARCHAR(36) PRIMARY KEY,
    conversation_id VARCHAR(64) NOT NULL,
    speaker ENUM('user', 'agent') NOT NULL,
    text TEXT NOT NULL,
    ordinal INT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id) ON DELETE CASCADE,
    INDEX idx_conversation_ordinal (conversation_id, ordinal)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`
