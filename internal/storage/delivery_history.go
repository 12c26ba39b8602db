package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DeliveryRecord is the durable trace of one notification delivery attempt
type DeliveryRecord struct {
	ID          string    `json:"id"`
	AlertID     string    `json:"alert_id"`
	ChannelType string    `json:"channel_type"`
	ChannelName string    `json:"channel_name"`
	Status      string    `json:"status"`
	RetryCount  int       `json:"retry_count"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeliveryHistoryStorage defines the interface for delivery history storage
type DeliveryHistoryStorage interface {
	// Store stores one delivery record
	Store(ctx context.Context, record *DeliveryRecord) error

	// Get retrieves a delivery record by ID
	Get(ctx context.Context, id string) (*DeliveryRecord, error)

	// List retrieves delivery records with filters and pagination, newest
	// first
	List(ctx context.Context, filters map[string]interface{}, offset, limit int) ([]*DeliveryRecord, error)

	// Count returns the number of records matching the filters
	Count(ctx context.Context, filters map[string]interface{}) (int, error)

	// DeleteBefore deletes records older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) error

	Close() error
}

// SQLiteDeliveryHistory implements DeliveryHistoryStorage using SQLite
type SQLiteDeliveryHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteDeliveryHistory opens (or creates) a SQLite-backed delivery
// history at the given path
func NewSQLiteDeliveryHistory(logger *zap.Logger, dbPath string) (*SQLiteDeliveryHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteDeliveryHistory{
		logger: logger.Named("delivery-history"),
		db:     db,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteDeliveryHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS delivery_history (
			id TEXT PRIMARY KEY,
			alert_id TEXT NOT NULL,
			channel_type TEXT NOT NULL,
			channel_name TEXT NOT NULL,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_delivery_history_alert_id ON delivery_history(alert_id);
		CREATE INDEX IF NOT EXISTS idx_delivery_history_status ON delivery_history(status);
		CREATE INDEX IF NOT EXISTS idx_delivery_history_created_at ON delivery_history(created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Store implements DeliveryHistoryStorage.Store
func (s *SQLiteDeliveryHistory) Store(ctx context.Context, record *DeliveryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_history (
			id, alert_id, channel_type, channel_name, status, retry_count, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.AlertID,
		record.ChannelType,
		record.ChannelName,
		record.Status,
		record.RetryCount,
		sql.NullString{String: record.Error, Valid: record.Error != ""},
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store delivery record: %w", err)
	}
	return nil
}

// Get implements DeliveryHistoryStorage.Get
func (s *SQLiteDeliveryHistory) Get(ctx context.Context, id string) (*DeliveryRecord, error) {
	var record DeliveryRecord
	var errStr sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, alert_id, channel_type, channel_name, status, retry_count, error, created_at
		FROM delivery_history
		WHERE id = ?`, id).Scan(
		&record.ID,
		&record.AlertID,
		&record.ChannelType,
		&record.ChannelName,
		&record.Status,
		&record.RetryCount,
		&errStr,
		&record.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan delivery record: %w", err)
	}

	if errStr.Valid {
		record.Error = errStr.String
	}
	return &record, nil
}

// List implements DeliveryHistoryStorage.List
func (s *SQLiteDeliveryHistory) List(ctx context.Context, filters map[string]interface{}, offset, limit int) ([]*DeliveryRecord, error) {
	query := "SELECT id, alert_id, channel_type, channel_name, status, retry_count, error, created_at FROM delivery_history"
	args := make([]interface{}, 0)

	if len(filters) > 0 {
		query += " WHERE"
		first := true
		for key, value := range filters {
			if !first {
				query += " AND"
			}
			query += fmt.Sprintf(" %s = ?", key)
			args = append(args, value)
			first = false
		}
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery records: %w", err)
	}
	defer rows.Close()

	var records []*DeliveryRecord
	for rows.Next() {
		record := &DeliveryRecord{}
		var errStr sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.AlertID,
			&record.ChannelType,
			&record.ChannelName,
			&record.Status,
			&record.RetryCount,
			&errStr,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}

		if errStr.Valid {
			record.Error = errStr.String
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// Count implements DeliveryHistoryStorage.Count
func (s *SQLiteDeliveryHistory) Count(ctx context.Context, filters map[string]interface{}) (int, error) {
	query := "SELECT COUNT(*) FROM delivery_history"
	args := make([]interface{}, 0)

	if len(filters) > 0 {
		query += " WHERE"
		first := true
		for key, value := range filters {
			if !first {
				query += " AND"
			}
			query += fmt.Sprintf(" %s = ?", key)
			args = append(args, value)
			first = false
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count delivery records: %w", err)
	}
	return count, nil
}

// DeleteBefore implements DeliveryHistoryStorage.DeleteBefore
func (s *SQLiteDeliveryHistory) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM delivery_history WHERE created_at < ?", before)
	if err != nil {
		return fmt.Errorf("failed to delete delivery records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old delivery records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return nil
}

// Close closes the database connection
func (s *SQLiteDeliveryHistory) Close() error {
	return s.db.Close()
}
