package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/cyclehire/pkg/config"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func memoryConfig(t *testing.T) *config.ConfigData {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.ConfigData{
		Warehouse: config.WarehouseData{
			Backend:     "memory",
			StationsCSV: writeFile(t, dir, "stations.csv", "id,name,docks_count\n1,Hyde Park Corner,2\n"),
			TripsCSV: writeFile(t, dir, "trips.csv",
				"rental_id,start_station_id,end_station_id,start_date,end_date\n"+
					"1,1,1,2022-03-07 07:40:00 UTC,2022-03-07 08:05:00 UTC\n"),
		},
	}
	if err := config.Finalize(cfg); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestService(t *testing.T) {
	a := New(memoryConfig(t), zap.NewNop().Sugar())
	svc, cleanup, err := a.Service(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if err := svc.Ping(context.Background()); err != nil {
		t.Errorf("expected the memory warehouse to be reachable: %v", err)
	}
	if svc.Options().TopN != 10 {
		t.Errorf("expected default top N, got %d", svc.Options().TopN)
	}
}

func TestServiceBadWarehouse(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Warehouse.TripsCSV = filepath.Join(t.TempDir(), "missing.csv")
	if _, _, err := New(cfg, zap.NewNop().Sugar()).Service(context.Background()); err == nil {
		t.Fatal("expected an error for a missing trips export")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
	}{
		{"cancelled before startup", 0},
		{"cancelled while running", 200 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(memoryConfig(t), zap.NewNop().Sugar())
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.delay == 0 {
				cancel()
			}

			done := make(chan error, 1)
			go func() { done <- a.Run(ctx) }()
			if tt.delay > 0 {
				time.Sleep(tt.delay)
				cancel()
			}

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("expected a clean shutdown, got %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not return after cancellation")
			}
		})
	}
}
