package database

import (
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
)

// CycleStation represents a docking station in the warehouse
type CycleStation struct {
	ID          int64      `gorm:"primaryKey;column:id"`
	Name        string     `gorm:"column:name;not null"`
	DocksCount  int        `gorm:"column:docks_count;not null"`
	Latitude    *float64   `gorm:"column:latitude"`
	Longitude   *float64   `gorm:"column:longitude"`
	InstallDate *time.Time `gorm:"column:install_date"`
	RemovalDate *time.Time `gorm:"column:removal_date"`
}

// TableName specifies the table name for CycleStation
func (CycleStation) TableName() string {
	return "cycle_stations"
}

// Station converts the row to the analytics representation.
func (s CycleStation) Station() analytics.Station {
	return analytics.Station{ID: s.ID, Name: s.Name, DockCount: s.DocksCount}
}

// CycleHire represents a single completed rental in the warehouse
type CycleHire struct {
	RentalID       int64     `gorm:"primaryKey;column:rental_id"`
	BikeID         *int64    `gorm:"column:bike_id"`
	StartStationID int64     `gorm:"column:start_station_id"`
	EndStationID   int64     `gorm:"column:end_station_id"`
	StartDate      time.Time `gorm:"column:start_date"`
	EndDate        time.Time `gorm:"column:end_date"`
	Duration       *int      `gorm:"column:duration"`
}

// TableName specifies the table name for CycleHire
func (CycleHire) TableName() string {
	return "cycle_hire"
}

// Trip converts the row to the analytics representation.
func (h CycleHire) Trip() analytics.Trip {
	return analytics.Trip{
		ID:             h.RentalID,
		StartStationID: h.StartStationID,
		EndStationID:   h.EndStationID,
		Start:          h.StartDate.UTC(),
		End:            h.EndDate.UTC(),
	}
}
