package warehouse

import (
	"context"
	"fmt"
	"io"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var tripCopyColumns = []string{"rental_id", "start_station_id", "end_station_id", "start_date", "end_date", "duration"}

// PostgresImporter bulk-loads hire exports into the warehouse tables.
type PostgresImporter struct {
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewPostgresImporter connects to dsn and checks the connection.
func NewPostgresImporter(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*PostgresImporter, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresImporter{pool: pool, logger: logger}, nil
}

// ImportStations upserts stations in one batch.
func (p *PostgresImporter) ImportStations(ctx context.Context, stations []analytics.Station) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, st := range stations {
		b.Queue(pgUpsertStationSQL, st.ID, st.Name, st.DockCount)
	}
	results := tx.SendBatch(ctx, b)
	for i := range stations {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to upsert station %d: %w", stations[i].ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ImportTrips streams every trip from tr into a staging table with COPY and
// merges it into cycle_hire, ignoring rentals that are already loaded. progress,
// if set, is called with the running row count every progressEvery rows.
// It returns the rows read and the rows newly inserted.
func (p *PostgresImporter) ImportTrips(ctx context.Context, tr *TripReader, progressEvery int64, progress func(int64)) (read, inserted int64, err error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, pgCreateTripStageSQL); err != nil {
		return 0, 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	src := pgx.CopyFromFunc(func() ([]any, error) {
		t, err := tr.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		read++
		if progress != nil && progressEvery > 0 && read%progressEvery == 0 {
			progress(read)
		}
		return []any{t.ID, t.StartStationID, t.EndStationID, t.Start, t.End, int32(t.End.Sub(t.Start).Seconds())}, nil
	})

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"cycle_hire_stage"}, tripCopyColumns, src); err != nil {
		return read, 0, fmt.Errorf("failed to copy trips: %w", err)
	}

	tag, err := tx.Exec(ctx, pgMergeTripStageSQL)
	if err != nil {
		return read, 0, fmt.Errorf("failed to merge trips: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return read, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.logger.Debugw("trips merged", "read", read, "inserted", tag.RowsAffected(), "skipped_rows", tr.Skipped())
	return read, tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (p *PostgresImporter) Close() {
	p.pool.Close()
}
