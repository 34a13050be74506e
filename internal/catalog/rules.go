package catalog

import (
	"strings"

	"github.com/sells-group/interval-research/internal/model"
)

// Common item names shared across tables.
const (
	ItemOilFilter           = "Engine Oil & Filter"
	ItemTireRotation        = "Tire Rotation"
	ItemEngineAirFilter     = "Engine Air Filter"
	ItemCabinAirFilter      = "Cabin Air Filter"
	ItemBrakeFluid          = "Brake Fluid"
	ItemTransmissionFluid   = "Transmission Fluid"
	ItemCoolant             = "Coolant/Antifreeze"
	ItemSparkPlugs          = "Spark Plugs"
	ItemBatteryTest         = "Battery Test"
	ItemBrakeInspection     = "Brake Inspection"
	ItemMultiPoint          = "Multi-Point Inspection"
	ItemWheelAlignment      = "Wheel Alignment Check"
	ItemDifferentialFluid   = "Differential Fluid"
	ItemDEF                 = "DEF (Diesel Exhaust Fluid)"
	ItemFuelFilterPrimary   = "Fuel Filter (Primary)"
	ItemFuelFilterSecondary = "Fuel Filter (Secondary)"
)

// rule is one row of a rule table. Zero miles or months means the item has
// no trigger of that kind.
type rule struct {
	item       string
	miles      int
	months     int
	priority   model.Priority
	costLow    float64
	costHigh   float64
	confidence int
	source     string
	notes      string
	engine     model.EngineType
}

func (r rule) candidate() model.Candidate {
	c := model.Candidate{
		ServiceItem:      r.item,
		Priority:         r.priority,
		CostEstimateLow:  model.Float(r.costLow),
		CostEstimateHigh: model.Float(r.costHigh),
		Source:           r.source,
		ConfidenceScore:  r.confidence,
		Notes:            r.notes,
		EngineType:       r.engine,
	}
	if r.miles > 0 {
		c.IntervalMiles = model.Int(r.miles)
	}
	if r.months > 0 {
		c.IntervalMonths = model.Int(r.months)
	}
	return c
}

func candidates(rules ...rule) []model.Candidate {
	out := make([]model.Candidate, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.candidate())
	}
	return out
}

// modelHas reports whether the lowercased model contains any of the needles.
func modelHas(name string, needles ...string) bool {
	m := strings.ToLower(name)
	for _, n := range needles {
		if strings.Contains(m, n) {
			return true
		}
	}
	return false
}
