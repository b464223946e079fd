package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

// PostgresConfig holds configuration for the Postgres repository
type PostgresConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
	MaxConnections  int           `json:"max_connections"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// PostgresRepository implements the Repository interface on PostgreSQL. The
// model_versions primary key enforces create-only saves; deployment_events is
// insert-only with a serial ordering column.
type PostgresRepository struct {
	config *PostgresConfig
	logger *logrus.Logger
	db     *sql.DB
}

// NewPostgresRepository creates a Postgres repository
func NewPostgresRepository(config *PostgresConfig, logger *logrus.Logger) (*PostgresRepository, error) {
	if config == nil {
		return nil, errors.NewStorageError("INVALID_CONFIG", "Postgres config cannot be nil")
	}
	if config.Host == "" || config.Database == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "Postgres host and database are required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &PostgresRepository{
		config: config,
		logger: logger,
	}, nil
}

// Connect opens the connection pool and bootstraps the schema
func (r *PostgresRepository) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		r.config.Host, r.config.Port, r.config.Database, r.config.Username,
		r.config.Password, r.config.SSLMode, int(r.config.ConnectTimeout.Seconds()))

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to open Postgres connection")
	}

	db.SetMaxOpenConns(r.config.MaxConnections)
	db.SetMaxIdleConns(r.config.MaxIdleConns)
	db.SetConnMaxLifetime(r.config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to reach Postgres")
	}

	r.db = db

	if err := r.createTables(ctx); err != nil {
		db.Close()
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"host":     r.config.Host,
		"database": r.config.Database,
	}).Info("Connected to Postgres repository")

	return nil
}

// Close closes the connection pool
func (r *PostgresRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Ping tests the connection
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS model_versions (
			version TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			metadata JSONB NOT NULL,
			package_location TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS deployment_events (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL,
			version TEXT NOT NULL,
			action TEXT NOT NULL,
			previous_version TEXT,
			actor TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS performance_snapshots (
			name TEXT PRIMARY KEY,
			snapshot JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deployment_events_version ON deployment_events (version)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
				"failed to bootstrap schema")
		}
	}
	return nil
}

// SaveVersion persists a new model version; a primary-key collision maps to
// DUPLICATE_VERSION
func (r *PostgresRepository) SaveVersion(ctx context.Context, version *models.ModelVersion) error {
	metadata, err := json.Marshal(version.Metadata)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to encode metadata")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO model_versions (version, status, metadata, package_location, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		version.Version, string(version.Status), metadata, version.PackageLocation, version.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return errors.NewDuplicateVersionError(version.Version)
		}
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to insert model version")
	}
	return nil
}

// UpdateVersionStatus persists a status transition
func (r *PostgresRepository) UpdateVersionStatus(ctx context.Context, version string, status models.VersionStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE model_versions SET status = $1 WHERE version = $2`, string(status), version)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to update version status")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.NewVersionNotFoundError(version)
	}
	return nil
}

// LoadVersion reads one model version
func (r *PostgresRepository) LoadVersion(ctx context.Context, version string) (*models.ModelVersion, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT version, status, metadata, package_location, created_at
		 FROM model_versions WHERE version = $1`, version)

	record, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewVersionNotFoundError(version)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to read model version")
	}
	return record, nil
}

// DeleteVersion removes a persisted version record; absent rows are a no-op
func (r *PostgresRepository) DeleteVersion(ctx context.Context, version string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM model_versions WHERE version = $1`, version)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to delete model version")
	}
	return nil
}

// ListVersions reads all persisted versions ordered by creation time
func (r *PostgresRepository) ListVersions(ctx context.Context) ([]*models.ModelVersion, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT version, status, metadata, package_location, created_at
		 FROM model_versions ORDER BY created_at, version`)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to list model versions")
	}
	defer rows.Close()

	var out []*models.ModelVersion
	for rows.Next() {
		record, err := scanVersion(rows)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
				"failed to scan model version")
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// AppendEvent appends one deployment event
func (r *PostgresRepository) AppendEvent(ctx context.Context, event *models.DeploymentEvent) error {
	previous := sql.NullString{String: event.PreviousVersion, Valid: event.PreviousVersion != ""}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deployment_events (id, version, action, previous_version, actor, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Version, string(event.Action), previous, event.Actor, event.Timestamp)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to append deployment event")
	}
	return nil
}

// ListEvents reads the audit log in append order
func (r *PostgresRepository) ListEvents(ctx context.Context) ([]*models.DeploymentEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, action, previous_version, actor, timestamp
		 FROM deployment_events ORDER BY seq`)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to list deployment events")
	}
	defer rows.Close()

	var out []*models.DeploymentEvent
	for rows.Next() {
		var event models.DeploymentEvent
		var action string
		var previous sql.NullString
		if err := rows.Scan(&event.ID, &event.Version, &action, &previous, &event.Actor, &event.Timestamp); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
				"failed to scan deployment event")
		}
		event.Action = models.DeploymentAction(action)
		event.PreviousVersion = previous.String
		out = append(out, &event)
	}
	return out, rows.Err()
}

// SaveSnapshot upserts a performance snapshot
func (r *PostgresRepository) SaveSnapshot(ctx context.Context, name string, snapshot *models.PerformanceSnapshot) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to encode snapshot")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO performance_snapshots (name, snapshot, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET snapshot = $2, updated_at = $3`,
		name, encoded, time.Now().UTC())
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to save snapshot")
	}
	return nil
}

// LoadSnapshot reads a persisted performance snapshot
func (r *PostgresRepository) LoadSnapshot(ctx context.Context, name string) (*models.PerformanceSnapshot, error) {
	var encoded []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT snapshot FROM performance_snapshots WHERE name = $1`, name).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, errors.NewStorageError("SNAPSHOT_NOT_FOUND", "no snapshot named "+name)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to read snapshot")
	}

	var snapshot models.PerformanceSnapshot
	if err := json.Unmarshal(encoded, &snapshot); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"corrupt snapshot record")
	}
	return &snapshot, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVersion(row rowScanner) (*models.ModelVersion, error) {
	var record models.ModelVersion
	var status string
	var metadata []byte

	if err := row.Scan(&record.Version, &status, &metadata, &record.PackageLocation, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.Status = models.VersionStatus(status)
	if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
		return nil, err
	}
	return &record, nil
}
