package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is how trip timestamps are stored: UTC text that sorts
// chronologically.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLiteSource reads a local copy of the warehouse tables.
type SQLiteSource struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLiteSource opens the database at path. The schema must already exist.
func NewSQLiteSource(path string, logger *zap.SugaredLogger) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite warehouse %s: %w", path, err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteSource{db: db, logger: logger}, nil
}

// DB exposes the underlying handle for migrations.
func (s *SQLiteSource) DB() *sql.DB {
	return s.db
}

func (s *SQLiteSource) Stations(ctx context.Context) ([]analytics.Station, error) {
	rows, err := s.db.QueryContext(ctx, sqliteStationsSQL)
	if err != nil {
		return nil, queryError("loading stations", err)
	}
	defer rows.Close()

	var stations []analytics.Station
	for rows.Next() {
		var st analytics.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.DockCount); err != nil {
			return nil, queryError("scanning station", err)
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("loading stations", err)
	}
	return stations, nil
}

func (s *SQLiteSource) Trips(ctx context.Context, w analytics.Window) ([]analytics.Trip, error) {
	from, to := w.From.UTC().Format(sqliteTimeLayout), w.To.UTC().Format(sqliteTimeLayout)
	rows, err := s.db.QueryContext(ctx, sqliteTripsSQL, from, to, from, to)
	if err != nil {
		return nil, queryError("loading trips", err)
	}
	defer rows.Close()

	var trips []analytics.Trip
	for rows.Next() {
		var (
			t          analytics.Trip
			start, end string
		)
		if err := rows.Scan(&t.ID, &t.StartStationID, &t.EndStationID, &start, &end); err != nil {
			return nil, queryError("scanning trip", err)
		}
		if t.Start, err = time.ParseInLocation(sqliteTimeLayout, start, time.UTC); err != nil {
			return nil, queryError(fmt.Sprintf("trip %d start_date", t.ID), err)
		}
		if t.End, err = time.ParseInLocation(sqliteTimeLayout, end, time.UTC); err != nil {
			return nil, queryError(fmt.Sprintf("trip %d end_date", t.ID), err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("loading trips", err)
	}
	return trips, nil
}

// ImportStations inserts or updates stations in a single transaction.
func (s *SQLiteSource) ImportStations(ctx context.Context, stations []analytics.Station) error {
	return s.inTx(ctx, sqliteUpsertStationSQL, len(stations), func(stmt *sql.Stmt, i int) error {
		st := stations[i]
		_, err := stmt.ExecContext(ctx, st.ID, st.Name, st.DockCount)
		return err
	})
}

// ImportTrips inserts or updates trips in a single transaction.
func (s *SQLiteSource) ImportTrips(ctx context.Context, trips []analytics.Trip) error {
	return s.inTx(ctx, sqliteUpsertTripSQL, len(trips), func(stmt *sql.Stmt, i int) error {
		t := trips[i]
		_, err := stmt.ExecContext(ctx, t.ID, t.StartStationID, t.EndStationID,
			t.Start.UTC().Format(sqliteTimeLayout),
			t.End.UTC().Format(sqliteTimeLayout),
			int(t.End.Sub(t.Start).Seconds()))
		return err
	})
}

func (s *SQLiteSource) inTx(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("error preparing import statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("error importing row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteSource) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return queryError("ping", err)
	}
	return nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
