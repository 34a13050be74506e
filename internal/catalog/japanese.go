package catalog

import "github.com/sells-group/interval-research/internal/model"

const (
	sourceNissan = "Nissan Maintenance Schedule"
	sourceMazda  = "Mazda Maintenance Schedule"
	sourceSubaru = "Subaru Maintenance Schedule"
)

// NissanIntervals covers Nissan and Infiniti.
func NissanIntervals(_ Query) []model.Candidate {
	return candidates(
		rule{item: ItemOilFilter, miles: 5000, months: 6, priority: model.PriorityHigh, costLow: 35, costHigh: 75, confidence: 8, source: sourceNissan, notes: "0W-20 or 5W-30 oil depending on model"},
		rule{item: "CVT Fluid", miles: 60000, priority: model.PriorityHigh, costLow: 150, costHigh: 250, confidence: 8, source: sourceNissan, notes: "NS-2 or NS-3 CVT fluid only"},
	)
}

// MazdaIntervals covers Mazda.
func MazdaIntervals(_ Query) []model.Candidate {
	return candidates(
		rule{item: ItemOilFilter, miles: 7500, months: 12, priority: model.PriorityHigh, costLow: 40, costHigh: 80, confidence: 8, source: sourceMazda, notes: "0W-20 oil for Skyactiv engines"},
		rule{item: ItemTireRotation, miles: 7500, priority: model.PriorityMedium, costLow: 25, costHigh: 50, confidence: 8, source: sourceMazda},
	)
}

// SubaruIntervals covers Subaru.
func SubaruIntervals(_ Query) []model.Candidate {
	return candidates(
		rule{item: ItemOilFilter, miles: 6000, months: 6, priority: model.PriorityHigh, costLow: 40, costHigh: 80, confidence: 8, source: sourceSubaru, notes: "0W-20 synthetic oil recommended"},
		rule{item: ItemDifferentialFluid, miles: 30000, priority: model.PriorityMedium, costLow: 100, costHigh: 200, confidence: 8, source: sourceSubaru, notes: "Important for AWD system"},
	)
}
