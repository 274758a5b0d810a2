// Package sqlstore persists city rows to a relational table through
// database/sql. Postgres is reached through pgx, SQLite through modernc.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/couchcryptid/city-data-etl/internal/observability"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

const sinkName = "sql"

// Supported DB_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store writes city rows to one table, one autocommitted upsert per row.
type Store struct {
	db      *sql.DB
	driver  string
	table   string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Open connects to the database and verifies it is reachable. A connection
// failure is returned as a *domain.PersistenceError with Op OpConnect.
func Open(ctx context.Context, driver, dsn, table string, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	var sqlDriver string
	switch driver {
	case DriverPostgres:
		sqlDriver = "pgx"
	case DriverSQLite:
		sqlDriver = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, &domain.PersistenceError{Op: domain.OpConnect, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, &domain.PersistenceError{Op: domain.OpConnect, Err: err}
	}
	return &Store{db: db, driver: driver, table: table, logger: logger, metrics: metrics}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return sinkName }

// EnsureSchema creates the city table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	city_id INTEGER PRIMARY KEY,
	city_name TEXT,
	population INTEGER,
	latitude REAL,
	longitude REAL,
	temperature REAL,
	humidity REAL,
	wind_speed REAL,
	weather_conditions TEXT,
	train_station TEXT,
	code TEXT
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return &domain.PersistenceError{Op: domain.OpConnect, Err: fmt.Errorf("create table: %w", err)}
	}
	return nil
}

// Emit upserts every city in order over a single connection. Each row commits
// on its own, so a failure leaves earlier rows in place and aborts the rest.
// Cities without an external weather id have no primary key and are skipped.
// The upsert only replaces rows from earlier runs: a second city in the same
// batch that resolves to an already written weather id is skipped as a
// collision, and the first city keeps the row.
func (s *Store) Emit(ctx context.Context, cities []domain.CityRecord) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return &domain.PersistenceError{Op: domain.OpConnect, Err: err}
	}
	defer conn.Close()

	query := s.upsertQuery()
	written, collisions := 0, 0
	seen := make(map[int64]string, len(cities))
	for _, rec := range cities {
		row := domain.ToRow(rec)
		if row.CityID == nil {
			s.logger.Warn("city has no weather id, skipping row", "city", rec.Name, "run_id", domain.RunIDFrom(ctx))
			s.metrics.SinkRows.WithLabelValues(sinkName, "skipped").Inc()
			continue
		}
		if owner, ok := seen[*row.CityID]; ok {
			s.logger.Warn("weather id already written this run, skipping row",
				"city", rec.Name, "city_id", *row.CityID, "kept", owner, "run_id", domain.RunIDFrom(ctx))
			s.metrics.SinkRows.WithLabelValues(sinkName, "collision").Inc()
			collisions++
			continue
		}
		_, err := conn.ExecContext(ctx, query,
			*row.CityID,
			row.CityName,
			nullInt(row.Population),
			nullFloat(row.Latitude),
			nullFloat(row.Longitude),
			nullFloat(row.Temperature),
			nullFloat(row.Humidity),
			nullFloat(row.WindSpeed),
			nullString(row.WeatherConditions),
			nullString(row.TrainStation),
			nullString(row.Code),
		)
		if err != nil {
			s.metrics.SinkRows.WithLabelValues(sinkName, "failed").Inc()
			s.logger.Error("row insert failed, aborting sink", "city", rec.Name, "written", written, "error", err)
			return &domain.PersistenceError{Op: domain.OpWrite, City: rec.Name, Err: err}
		}
		seen[*row.CityID] = rec.Name
		written++
		s.metrics.SinkRows.WithLabelValues(sinkName, "written").Inc()
	}
	s.logger.Info("rows persisted", "table", s.table, "written", written, "collisions", collisions, "run_id", domain.RunIDFrom(ctx))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) upsertQuery() string {
	q := fmt.Sprintf(`INSERT INTO %s (city_id, city_name, population, latitude, longitude, temperature, humidity, wind_speed, weather_conditions, train_station, code)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (city_id) DO UPDATE SET
	city_name = excluded.city_name,
	population = excluded.population,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	temperature = excluded.temperature,
	humidity = excluded.humidity,
	wind_speed = excluded.wind_speed,
	weather_conditions = excluded.weather_conditions,
	train_station = excluded.train_station,
	code = excluded.code`, s.table)
	if s.driver == DriverPostgres {
		return rebind(q)
	}
	return q
}

// rebind converts ? placeholders to Postgres $n form.
func rebind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
