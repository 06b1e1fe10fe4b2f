package export

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/torino-sdg/sdg11-cli/internal/model"
)

// SQLiteSink appends scored tables to a SQLite file, one export per run.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite file at dsn and applies the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &SQLiteSink{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS exports (
	run_id     TEXT PRIMARY KEY,
	pollutant  TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS municipalities (
	run_id                TEXT NOT NULL REFERENCES exports(run_id),
	position              INTEGER NOT NULL,
	municipality          TEXT NOT NULL,
	pollution_level       REAL,
	vehicle_per_1000      REAL,
	housing_quality_index REAL,
	total                 INTEGER,
	sdg_11_score          REAL,
	PRIMARY KEY (run_id, municipality)
);

CREATE INDEX IF NOT EXISTS idx_exports_pollutant ON exports(pollutant);
`

func (s *SQLiteSink) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Write stores one run's table in a single transaction.
func (s *SQLiteSink) Write(ctx context.Context, runID, pollutant string, createdAt time.Time, records []model.MunicipalityRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO exports (run_id, pollutant, created_at) VALUES (?, ?, ?)`,
		runID, pollutant, createdAt.UTC().Format(time.RFC3339)); err != nil {
		return eris.Wrap(err, "sqlite: insert export")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO municipalities
		(run_id, position, municipality, pollution_level, vehicle_per_1000, housing_quality_index, total, sdg_11_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, r := range records {
		var total any
		if r.Population != nil {
			total = *r.Population
		}
		if _, err := stmt.ExecContext(ctx, runID, i, r.Name,
			deref(r.PollutionLevel), deref(r.VehiclesPer1000), deref(r.HousingQualityIndex), total, deref(r.SDGScore)); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", r.Name)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// Records returns the table stored for runID in its original order.
func (s *SQLiteSink) Records(ctx context.Context, runID string) ([]model.MunicipalityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT municipality, pollution_level, vehicle_per_1000,
		housing_quality_index, total, sdg_11_score
		FROM municipalities WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query records")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.MunicipalityRecord
	for rows.Next() {
		var (
			r                       model.MunicipalityRecord
			pollution, veh, housing sql.NullFloat64
			score                   sql.NullFloat64
			total                   sql.NullInt64
		)
		if err := rows.Scan(&r.Name, &pollution, &veh, &housing, &total, &score); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		r.PollutionLevel = nullFloat(pollution)
		r.VehiclesPer1000 = nullFloat(veh)
		r.HousingQualityIndex = nullFloat(housing)
		r.SDGScore = nullFloat(score)
		if total.Valid {
			r.Population = model.Int(total.Int64)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return model.Float(n.Float64)
}
