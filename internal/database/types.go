package database

import "time"

// HourlyArrivalRow is one (station, date, hour) arrival count aggregated in SQL.
type HourlyArrivalRow struct {
	StationID   int64     `gorm:"column:station_id"`
	StationName string    `gorm:"column:station_name"`
	DocksCount  int       `gorm:"column:docks_count"`
	Day         time.Time `gorm:"column:day"`
	Hour        int       `gorm:"column:hour"`
	Arrivals    int       `gorm:"column:arrivals"`
}

// StationFlowRow is the departure and arrival count of one station.
type StationFlowRow struct {
	StationID   int64  `gorm:"column:station_id"`
	StationName string `gorm:"column:station_name"`
	DocksCount  int    `gorm:"column:docks_count"`
	Outflows    int    `gorm:"column:outflows"`
	Inflows     int    `gorm:"column:inflows"`
}

// NetworkArrivalRow is the network-wide arrival count for one (weekday, hour).
type NetworkArrivalRow struct {
	DayOfWeek int `gorm:"column:dow"`
	Hour      int `gorm:"column:hour"`
	Arrivals  int `gorm:"column:arrivals"`
}
