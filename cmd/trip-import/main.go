package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/internal/log"
	"github.com/chrissnell/cyclehire/internal/warehouse"
	"github.com/dustin/go-humanize"
)

const sqliteBatchSize = 50000

func main() {
	var (
		driver       = flag.String("driver", "postgres", "Target warehouse: postgres or sqlite")
		dsn          = flag.String("dsn", "", "Postgres connection string or SQLite file (required)")
		stationsFile = flag.String("stations", "", "Stations CSV export")
		tripsFile    = flag.String("trips", "", "Trips CSV export")
		every        = flag.Int64("progress", 250000, "Log progress every N trips")
		debug        = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if *dsn == "" || (*stationsFile == "" && *tripsFile == "") {
		fmt.Fprintf(os.Stderr, "Usage: %s -driver postgres|sqlite -dsn <dsn> [-stations stations.csv] [-trips trips.csv]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	start := time.Now()

	var err error
	switch *driver {
	case "postgres":
		err = importPostgres(ctx, *dsn, *stationsFile, *tripsFile, *every)
	case "sqlite":
		err = importSQLite(ctx, *dsn, *stationsFile, *tripsFile, *every)
	default:
		err = fmt.Errorf("unsupported driver %q", *driver)
	}
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Infof("Import finished in %s", time.Since(start).Round(time.Second))
}

func readStations(path string) ([]analytics.Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return warehouse.ReadStationsCSV(f)
}

func openTrips(path string) (*os.File, *warehouse.TripReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	tr, err := warehouse.NewTripReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, tr, nil
}

func logProgress(n int64) {
	log.Infof("Read %s trips", humanize.Comma(n))
}

func importPostgres(ctx context.Context, dsn, stationsFile, tripsFile string, every int64) error {
	imp, err := warehouse.NewPostgresImporter(ctx, dsn, log.GetSugaredLogger())
	if err != nil {
		return err
	}
	defer imp.Close()

	if stationsFile != "" {
		stations, err := readStations(stationsFile)
		if err != nil {
			return err
		}
		if err := imp.ImportStations(ctx, stations); err != nil {
			return err
		}
		log.Infof("Loaded %s stations", humanize.Comma(int64(len(stations))))
	}

	if tripsFile != "" {
		f, tr, err := openTrips(tripsFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if info, err := f.Stat(); err == nil {
			log.Infof("Copying trips from %s (%s)", tripsFile, humanize.Bytes(uint64(info.Size())))
		}

		read, inserted, err := imp.ImportTrips(ctx, tr, every, logProgress)
		if err != nil {
			return err
		}
		log.Infof("Read %s trips, inserted %s new, skipped %s incomplete rows",
			humanize.Comma(read), humanize.Comma(inserted), humanize.Comma(int64(tr.Skipped())))
	}
	return nil
}

func importSQLite(ctx context.Context, path, stationsFile, tripsFile string, every int64) error {
	src, err := warehouse.NewSQLiteSource(path, log.GetSugaredLogger())
	if err != nil {
		return err
	}
	defer src.Close()

	if stationsFile != "" {
		stations, err := readStations(stationsFile)
		if err != nil {
			return err
		}
		if err := src.ImportStations(ctx, stations); err != nil {
			return err
		}
		log.Infof("Loaded %s stations", humanize.Comma(int64(len(stations))))
	}

	if tripsFile == "" {
		return nil
	}
	f, tr, err := openTrips(tripsFile)
	if err != nil {
		return err
	}
	defer f.Close()

	var total int64
	batch := make([]analytics.Trip, 0, sqliteBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := src.ImportTrips(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		t, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		batch = append(batch, t)
		total++
		if every > 0 && total%every == 0 {
			logProgress(total)
		}
		if len(batch) == sqliteBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Infof("Loaded %s trips, skipped %s incomplete rows", humanize.Comma(total), humanize.Comma(int64(tr.Skipped())))
	return nil
}
