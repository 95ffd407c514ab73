package service

import (
	"math"
	"time"

	"chargequeue/backend/services/queue-service/internal/models"
)

// ProgressModel derives simulated charging progress from elapsed charging time.
// Nothing is accumulated between evaluations, so repeated calls never drift.
type ProgressModel struct {
	InitialBatteryLevel float64
	TaperThreshold      float64
	EnergyFactor        float64
	EfficiencyFloor     float64
	EfficiencyDecay     float64
}

// DefaultProgressModel returns the stock simulation constants.
func DefaultProgressModel() ProgressModel {
	return ProgressModel{
		InitialBatteryLevel: 20,
		TaperThreshold:      80,
		EnergyFactor:        0.6,
		EfficiencyFloor:     90,
		EfficiencyDecay:     0.1,
	}
}

// TimeToTarget is how long the rated power takes to lift the battery from the initial level to target.
func (m ProgressModel) TimeToTarget(target, ratedPower float64) time.Duration {
	batteryRange := target - m.InitialBatteryLevel
	if batteryRange <= 0 {
		return 0
	}
	if ratedPower <= 0 {
		return time.Duration(math.MaxInt64)
	}
	minutes := batteryRange / ratedPower * 60
	return time.Duration(minutes * float64(time.Minute))
}

// Compute evaluates the model after elapsed charging time.
func (m ProgressModel) Compute(elapsed time.Duration, target, ratedPower, pricePerUnit float64) models.Progress {
	if elapsed < 0 {
		elapsed = 0
	}
	minutes := elapsed.Minutes()
	p := models.Progress{
		ElapsedMinutes: minutes,
		Efficiency:     m.Efficiency(minutes),
	}

	batteryRange := target - m.InitialBatteryLevel
	switch {
	case batteryRange <= 0:
		p.BatteryLevel = math.Max(target, m.InitialBatteryLevel)
		p.TargetReached = true
	case ratedPower <= 0:
		p.BatteryLevel = m.InitialBatteryLevel
	default:
		timeToTarget := batteryRange / ratedPower * 60
		if minutes < timeToTarget {
			p.BatteryLevel = m.InitialBatteryLevel + (minutes/timeToTarget)*batteryRange
			p.ChargingRate = ratedPower
			if p.BatteryLevel >= m.TaperThreshold {
				p.ChargingRate = ratedPower / 2
			}
		} else {
			p.BatteryLevel = target
			p.TargetReached = true
		}
	}

	p.EnergyAdded = m.Energy(p.BatteryLevel)
	p.CurrentCost = p.EnergyAdded * pricePerUnit
	return p
}

// Energy converts a battery level into energy added since the initial level.
func (m ProgressModel) Energy(level float64) float64 {
	return math.Max(0, level-m.InitialBatteryLevel) * m.EnergyFactor
}

// Efficiency is the cosmetic decay figure, bounded below by the floor.
func (m ProgressModel) Efficiency(elapsedMinutes float64) float64 {
	return math.Max(m.EfficiencyFloor, 100-elapsedMinutes*m.EfficiencyDecay)
}

// Tariff holds the settlement rates.
type Tariff struct {
	PlatformFeeRate  float64
	PlatformFeeFloor float64
	GSTRate          float64
}

// DefaultTariff returns the stock settlement rates.
func DefaultTariff() Tariff {
	return Tariff{PlatformFeeRate: 0.05, PlatformFeeFloor: 5, GSTRate: 0.18}
}

// Breakdown itemizes the cost of energy delivered at pricePerUnit.
func (t Tariff) Breakdown(energy, pricePerUnit float64) models.CostBreakdown {
	energyCost := energy * pricePerUnit
	fee := math.Max(t.PlatformFeeFloor, energyCost*t.PlatformFeeRate)
	gst := (energyCost + fee) * t.GSTRate
	return models.CostBreakdown{
		EnergyCost:  energyCost,
		PlatformFee: fee,
		GST:         gst,
		TotalCost:   energyCost + fee + gst,
	}
}

// Round2 rounds a monetary figure for presentation.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rounded returns a copy of b rounded for presentation.
func Rounded(b models.CostBreakdown) models.CostBreakdown {
	return models.CostBreakdown{
		EnergyCost:  Round2(b.EnergyCost),
		PlatformFee: Round2(b.PlatformFee),
		GST:         Round2(b.GST),
		TotalCost:   Round2(b.TotalCost),
	}
}
