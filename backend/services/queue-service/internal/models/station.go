package models

// Station is the read-only snapshot of a charging station consulted at join and session start.
type Station struct {
	ID                    string  `db:"id" json:"id"`
	Name                  string  `db:"name" json:"name"`
	IsActive              bool    `db:"is_active" json:"is_active"`
	IsOpen                bool    `db:"is_open" json:"is_open"`
	MaxQueueLength        int     `db:"max_queue_length" json:"max_queue_length"`
	AverageSessionMinutes int     `db:"average_session_minutes" json:"average_session_minutes"`
	PricePerUnit          float64 `db:"price_per_unit" json:"price_per_unit"`
	RatedPowerKW          float64 `db:"rated_power_kw" json:"rated_power_kw"`
}

// Accepting reports whether the station takes new queue entries.
func (s *Station) Accepting() bool {
	return s != nil && s.IsActive && s.IsOpen
}
