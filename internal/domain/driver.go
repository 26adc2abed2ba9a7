package domain

import "time"

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusOnline  DriverStatus = "ONLINE"
	DriverStatusOffline DriverStatus = "OFFLINE"
	DriverStatusOnTrip  DriverStatus = "ON_TRIP"
)

// Driver represents a driver known to the server.
type Driver struct {
	ID     string
	Name   string
	Status DriverStatus
}

// DriverPosition is the latest reported location of a driver. Each report
// overwrites the previous one; no history is kept.
type DriverPosition struct {
	DriverID   string
	Location   Geopoint
	CapturedAt time.Time
}
