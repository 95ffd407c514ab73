package models

import "time"

// SessionStatus is the lifecycle state of a charging session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusStopped   SessionStatus = "stopped"
)

// Open reports whether the session still occupies the station.
func (s SessionStatus) Open() bool {
	return s == SessionStatusActive || s == SessionStatusPaused
}

// ChargingSession is one granted access window at a station.
type ChargingSession struct {
	ID                  string        `db:"id" json:"id"`
	RequesterID         string        `db:"requester_id" json:"requester_id"`
	StationID           string        `db:"station_id" json:"station_id"`
	QueueEntryID        string        `db:"queue_entry_id" json:"queue_entry_id,omitempty"`
	StartTime           time.Time     `db:"start_time" json:"start_time"`
	EndTime             *time.Time    `db:"end_time" json:"end_time,omitempty"`
	CurrentBatteryLevel float64       `db:"current_battery_level" json:"current_battery_level"`
	TargetBatteryLevel  float64       `db:"target_battery_level" json:"target_battery_level"`
	RatedPowerKW        float64       `db:"rated_power_kw" json:"rated_power_kw"`
	ChargingRate        float64       `db:"charging_rate" json:"charging_rate"`
	PricePerUnit        float64       `db:"price_per_unit" json:"price_per_unit"`
	EnergyDelivered     float64       `db:"energy_delivered" json:"energy_delivered"`
	TotalCost           float64       `db:"total_cost" json:"total_cost"`
	Efficiency          float64       `db:"efficiency" json:"efficiency"`
	Status              SessionStatus `db:"status" json:"status"`
	PausedAt            *time.Time    `db:"paused_at" json:"paused_at,omitempty"`
	PausedTotal         time.Duration `db:"paused_total" json:"paused_total"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy.
func (s *ChargingSession) Clone() *ChargingSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	if s.PausedAt != nil {
		at := *s.PausedAt
		c.PausedAt = &at
	}
	return &c
}

// SessionPatch carries the mutable session fields written on checkpoint or transition.
type SessionPatch struct {
	Status              SessionStatus
	CurrentBatteryLevel float64
	TargetBatteryLevel  float64
	ChargingRate        float64
	EnergyDelivered     float64
	TotalCost           float64
	Efficiency          float64
	PausedAt            *time.Time
	PausedTotal         time.Duration
	EndTime             *time.Time
	UpdatedAt           time.Time
}

// PatchOf captures the current mutable state of s.
func PatchOf(s *ChargingSession) SessionPatch {
	return SessionPatch{
		Status:              s.Status,
		CurrentBatteryLevel: s.CurrentBatteryLevel,
		TargetBatteryLevel:  s.TargetBatteryLevel,
		ChargingRate:        s.ChargingRate,
		EnergyDelivered:     s.EnergyDelivered,
		TotalCost:           s.TotalCost,
		Efficiency:          s.Efficiency,
		PausedAt:            s.PausedAt,
		PausedTotal:         s.PausedTotal,
		EndTime:             s.EndTime,
		UpdatedAt:           s.UpdatedAt,
	}
}

// CostBreakdown itemizes a charge. Figures are carried at full precision.
type CostBreakdown struct {
	EnergyCost  float64 `json:"energy_cost"`
	PlatformFee float64 `json:"platform_fee"`
	GST         float64 `json:"gst"`
	TotalCost   float64 `json:"total_cost"`
}

// Progress is the derived charging state at a point in time.
type Progress struct {
	ElapsedMinutes float64 `json:"elapsed_minutes"`
	BatteryLevel   float64 `json:"battery_level"`
	ChargingRate   float64 `json:"charging_rate"`
	EnergyAdded    float64 `json:"energy_added"`
	CurrentCost    float64 `json:"current_cost"`
	Efficiency     float64 `json:"efficiency"`
	TargetReached  bool    `json:"target_reached"`
}

// SessionSummary is the settlement of a finished session.
type SessionSummary struct {
	SessionID         string        `json:"session_id"`
	Status            SessionStatus `json:"status"`
	Duration          time.Duration `json:"duration"`
	EnergyDelivered   float64       `json:"energy_delivered"`
	FinalBatteryLevel float64       `json:"final_battery_level"`
	Cost              CostBreakdown `json:"cost"`
	Efficiency        float64       `json:"efficiency"`
}
