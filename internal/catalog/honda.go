package catalog

import "github.com/sells-group/interval-research/internal/model"

const sourceHonda = "Honda Maintenance Minder"

// HondaIntervals covers Honda and Acura.
func HondaIntervals(_ Query) []model.Candidate {
	return candidates(
		rule{item: ItemOilFilter, miles: 7500, months: 12, priority: model.PriorityHigh, costLow: 35, costHigh: 75, confidence: 9, source: sourceHonda, notes: "Follow oil life monitor (15% or 12 months)"},
		rule{item: ItemTireRotation, miles: 7500, months: 12, priority: model.PriorityMedium, costLow: 25, costHigh: 50, confidence: 9, source: sourceHonda},
		rule{item: ItemTransmissionFluid, miles: 90000, priority: model.PriorityHigh, costLow: 100, costHigh: 200, confidence: 8, source: sourceHonda, notes: "Use only Honda ATF-DW1 fluid"},
		rule{item: "Valve Adjustment", miles: 105000, priority: model.PriorityMedium, costLow: 150, costHigh: 300, confidence: 8, source: sourceHonda, notes: "Important for engine longevity"},
	)
}
