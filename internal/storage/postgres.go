package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresConfig holds the connection pool settings for PostgresStore.
// Zero values are replaced with defaults by OpenPostgres.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// PostgresStore implements Store on PostgreSQL through database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects, verifies the connection and applies pending schema
// migrations.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateUp(cfg.DSN); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// migrateUp runs on its own connection because closing the migrate
// instance closes the database handle it was given
func migrateUp(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

const uavColumns = `id, name, status, battery_level, signal_strength, speed, altitude, last_updated`

func scanUAV(row scanner) (fleet.UAV, error) {
	var u fleet.UAV
	err := row.Scan(&u.ID, &u.Name, &u.Status, &u.BatteryLevel, &u.SignalStrength, &u.Speed, &u.Altitude, &u.LastUpdated)
	return u, notFound(err)
}

const telemetryColumns = `id, uav_id, timestamp, battery_level, signal_strength, speed, altitude, latitude, longitude, temperature`

func scanTelemetry(row scanner) (fleet.Telemetry, error) {
	var (
		t             fleet.Telemetry
		lat, lon, tmp sql.NullFloat64
	)
	err := row.Scan(&t.ID, &t.UAVID, &t.Timestamp, &t.BatteryLevel, &t.SignalStrength, &t.Speed, &t.Altitude, &lat, &lon, &tmp)
	t.Latitude = nullFloat(lat)
	t.Longitude = nullFloat(lon)
	t.Temperature = nullFloat(tmp)
	return t, notFound(err)
}

const componentColumns = `id, uav_id, type, status, details, value, last_updated`

func scanComponent(row scanner) (fleet.Component, error) {
	var (
		c       fleet.Component
		details sql.NullString
		value   sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.UAVID, &c.Type, &c.Status, &details, &value, &c.LastUpdated)
	if details.Valid {
		c.Details = &details.String
	}
	if value.Valid {
		v := int(value.Int64)
		c.Value = &v
	}
	return c, notFound(err)
}

const alertColumns = `id, uav_id, severity, message, timestamp, acknowledged, dismissed`

func scanAlert(row scanner) (fleet.Alert, error) {
	var a fleet.Alert
	err := row.Scan(&a.ID, &a.UAVID, &a.Severity, &a.Message, &a.Timestamp, &a.Acknowledged, &a.Dismissed)
	return a, notFound(err)
}

const maintenanceColumns = `id, uav_id, to_char(scheduled_date, 'YYYY-MM-DD'), description, completed, maintenance_type, created_at, completed_at`

func scanMaintenance(row scanner) (fleet.Maintenance, error) {
	var (
		r    fleet.Maintenance
		done sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UAVID, &r.ScheduledDate, &r.Description, &r.Completed, &r.MaintenanceType, &r.CreatedAt, &done)
	if done.Valid {
		r.CompletedAt = &done.Time
	}
	return r, notFound(err)
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// collect drains rows through scan, closing them in every case
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func query[T any](ctx context.Context, db *sql.DB, scan func(scanner) (T, error), q string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scan)
}

// sqlLimit maps "no limit" onto NULL, which postgres treats as LIMIT ALL
func sqlLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func (p *PostgresStore) ListUAVs(ctx context.Context) ([]fleet.UAV, error) {
	return query(ctx, p.db, scanUAV, `SELECT `+uavColumns+` FROM uavs ORDER BY id`)
}

func (p *PostgresStore) GetUAV(ctx context.Context, id int64) (fleet.UAV, error) {
	return scanUAV(p.db.QueryRowContext(ctx, `SELECT `+uavColumns+` FROM uavs WHERE id = $1`, id))
}

func (p *PostgresStore) CreateUAV(ctx context.Context, in fleet.NewUAV) (fleet.UAV, error) {
	return scanUAV(p.db.QueryRowContext(ctx,
		`INSERT INTO uavs (name, status, battery_level, signal_strength, speed, altitude, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+uavColumns,
		in.Name, in.Status, in.BatteryLevel, in.SignalStrength, in.Speed, in.Altitude, in.LastUpdated))
}

func (p *PostgresStore) UpdateUAV(ctx context.Context, id int64, patch fleet.UAVPatch) (fleet.UAV, error) {
	return withTx(ctx, p.db, func(tx *sql.Tx) (fleet.UAV, error) {
		u, err := scanUAV(tx.QueryRowContext(ctx, `SELECT `+uavColumns+` FROM uavs WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return u, err
		}
		patch.Apply(&u)
		return scanUAV(tx.QueryRowContext(ctx,
			`UPDATE uavs SET name = $2, status = $3, battery_level = $4, signal_strength = $5,
			 speed = $6, altitude = $7, last_updated = $8 WHERE id = $1 RETURNING `+uavColumns,
			id, u.Name, u.Status, u.BatteryLevel, u.SignalStrength, u.Speed, u.Altitude, u.LastUpdated))
	})
}

// DeleteUAV relies on ON DELETE CASCADE for dependent rows
func (p *PostgresStore) DeleteUAV(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM uavs WHERE id = $1`, id)
	return affected(res, err)
}

func (p *PostgresStore) ListTelemetry(ctx context.Context, uavID int64, limit int) ([]fleet.Telemetry, error) {
	return query(ctx, p.db, scanTelemetry,
		`SELECT `+telemetryColumns+` FROM telemetry WHERE uav_id = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`,
		uavID, sqlLimit(limit))
}

func (p *PostgresStore) CreateTelemetry(ctx context.Context, in fleet.NewTelemetry) (fleet.Telemetry, error) {
	return withTx(ctx, p.db, func(tx *sql.Tx) (fleet.Telemetry, error) {
		t, err := scanTelemetry(tx.QueryRowContext(ctx,
			`INSERT INTO telemetry (uav_id, timestamp, battery_level, signal_strength, speed, altitude, latitude, longitude, temperature)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+telemetryColumns,
			in.UAVID, in.Timestamp, in.BatteryLevel, in.SignalStrength, in.Speed, in.Altitude,
			in.Latitude, in.Longitude, in.Temperature))
		if err != nil {
			return t, err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE uavs SET battery_level = $2, signal_strength = $3, speed = $4, altitude = $5, last_updated = $6 WHERE id = $1`,
			in.UAVID, in.BatteryLevel, in.SignalStrength, in.Speed, in.Altitude, in.Timestamp)
		return t, err
	})
}

func (p *PostgresStore) ListComponents(ctx context.Context, uavID int64) ([]fleet.Component, error) {
	return query(ctx, p.db, scanComponent, `SELECT `+componentColumns+` FROM components WHERE uav_id = $1 ORDER BY id`, uavID)
}

func (p *PostgresStore) CreateComponent(ctx context.Context, in fleet.NewComponent) (fleet.Component, error) {
	return scanComponent(p.db.QueryRowContext(ctx,
		`INSERT INTO components (uav_id, type, status, details, value, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+componentColumns,
		in.UAVID, in.Type, in.Status, in.Details, in.Value, in.LastUpdated))
}

func (p *PostgresStore) UpdateComponent(ctx context.Context, id int64, patch fleet.ComponentPatch) (fleet.Component, error) {
	return scanComponent(p.db.QueryRowContext(ctx,
		`UPDATE components SET status = COALESCE($2, status), details = COALESCE($3, details),
		 value = COALESCE($4, value), last_updated = now() WHERE id = $1 RETURNING `+componentColumns,
		id, patch.Status, patch.Details, patch.Value))
}

func (p *PostgresStore) ListAlerts(ctx context.Context, limit int) ([]fleet.Alert, error) {
	return query(ctx, p.db, scanAlert,
		`SELECT `+alertColumns+` FROM alerts ORDER BY timestamp DESC, id DESC LIMIT $1`, sqlLimit(limit))
}

func (p *PostgresStore) ListAlertsByUAV(ctx context.Context, uavID int64) ([]fleet.Alert, error) {
	return query(ctx, p.db, scanAlert,
		`SELECT `+alertColumns+` FROM alerts WHERE uav_id = $1 ORDER BY timestamp DESC, id DESC`, uavID)
}

func (p *PostgresStore) CreateAlert(ctx context.Context, in fleet.NewAlert) (fleet.Alert, error) {
	return scanAlert(p.db.QueryRowContext(ctx,
		`INSERT INTO alerts (uav_id, severity, message, timestamp) VALUES ($1, $2, $3, $4) RETURNING `+alertColumns,
		in.UAVID, in.Severity, in.Message, in.Timestamp))
}

func (p *PostgresStore) UpdateAlert(ctx context.Context, id int64, patch fleet.AlertPatch) (fleet.Alert, error) {
	return scanAlert(p.db.QueryRowContext(ctx,
		`UPDATE alerts SET acknowledged = COALESCE($2, acknowledged), dismissed = COALESCE($3, dismissed)
		 WHERE id = $1 RETURNING `+alertColumns,
		id, patch.Acknowledged, patch.Dismissed))
}

func (p *PostgresStore) ListMaintenance(ctx context.Context, limit int) ([]fleet.Maintenance, error) {
	return query(ctx, p.db, scanMaintenance,
		`SELECT `+maintenanceColumns+` FROM maintenance ORDER BY scheduled_date, id LIMIT $1`, sqlLimit(limit))
}

func (p *PostgresStore) ListMaintenanceByUAV(ctx context.Context, uavID int64) ([]fleet.Maintenance, error) {
	return query(ctx, p.db, scanMaintenance,
		`SELECT `+maintenanceColumns+` FROM maintenance WHERE uav_id = $1 ORDER BY scheduled_date, id`, uavID)
}

func (p *PostgresStore) GetMaintenance(ctx context.Context, id int64) (fleet.Maintenance, error) {
	return scanMaintenance(p.db.QueryRowContext(ctx, `SELECT `+maintenanceColumns+` FROM maintenance WHERE id = $1`, id))
}

func (p *PostgresStore) UpcomingMaintenance(ctx context.Context, from time.Time, days int) ([]fleet.Maintenance, error) {
	start, end := upcomingWindow(from, days)
	return query(ctx, p.db, scanMaintenance,
		`SELECT `+maintenanceColumns+` FROM maintenance
		 WHERE NOT completed AND scheduled_date BETWEEN $1::date AND $2::date
		 ORDER BY scheduled_date, id`, start, end)
}

func (p *PostgresStore) CreateMaintenance(ctx context.Context, in fleet.NewMaintenance) (fleet.Maintenance, error) {
	return scanMaintenance(p.db.QueryRowContext(ctx,
		`INSERT INTO maintenance (uav_id, scheduled_date, description, completed, maintenance_type)
		 VALUES ($1, $2::date, $3, $4, $5) RETURNING `+maintenanceColumns,
		in.UAVID, in.ScheduledDate, in.Description, in.Completed, in.MaintenanceType))
}

func (p *PostgresStore) UpdateMaintenance(ctx context.Context, id int64, patch fleet.MaintenancePatch) (fleet.Maintenance, error) {
	return scanMaintenance(p.db.QueryRowContext(ctx,
		`UPDATE maintenance SET scheduled_date = COALESCE($2::date, scheduled_date),
		 description = COALESCE($3, description), maintenance_type = COALESCE($4, maintenance_type),
		 completed = COALESCE($5, completed) WHERE id = $1 RETURNING `+maintenanceColumns,
		id, patch.ScheduledDate, patch.Description, patch.MaintenanceType, patch.Completed))
}

func (p *PostgresStore) CompleteMaintenance(ctx context.Context, id int64, at time.Time) (fleet.Maintenance, error) {
	return scanMaintenance(p.db.QueryRowContext(ctx,
		`UPDATE maintenance SET completed = true, completed_at = $2 WHERE id = $1 RETURNING `+maintenanceColumns,
		id, at))
}

func (p *PostgresStore) DeleteMaintenance(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM maintenance WHERE id = $1`, id)
	return affected(res, err)
}

func (p *PostgresStore) DashboardStats(ctx context.Context) (fleet.DashboardStats, error) {
	var stats fleet.DashboardStats
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('active', 'warning', 'critical')),
			COUNT(*) FILTER (WHERE status = 'offline'),
			COALESCE(ROUND(AVG(battery_level) FILTER (WHERE status IN ('active', 'warning', 'critical'))), 0)::int,
			(SELECT COUNT(*) FROM alerts WHERE NOT acknowledged AND NOT dismissed)
		FROM uavs`).Scan(&stats.ActiveUAVs, &stats.OfflineUAVs, &stats.AvgBattery, &stats.ActiveAlerts)
	return stats, err
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func withTx[T any](ctx context.Context, db *sql.DB, fn func(*sql.Tx) (T, error)) (T, error) {
	var zero T
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}
	v, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return v, nil
}
