package catalog

import "github.com/sells-group/interval-research/internal/model"

const (
	sourceBMWCBS      = "BMW Condition Based Service"
	sourceBMWCBSShort = "BMW CBS"
	sourceMercedes    = "Mercedes-Benz ASSYST"
	sourceVWGroup     = "VW/Audi Service Schedule"
)

// BMWIntervals covers BMW and MINI.
func BMWIntervals(_ Query) []model.Candidate {
	return candidates(
		rule{item: ItemOilFilter, miles: 10000, months: 12, priority: model.PriorityHigh, costLow: 100, costHigh: 150, confidence: 9, source: sourceBMWCBS, notes: "BMW LL-01 or LL-04 oil specification"},
		rule{item: "Microfilter (Cabin)", miles: 20000, months: 24, priority: model.PriorityLow, costLow: 60, costHigh: 120, confidence: 8, source: sourceBMWCBSShort},
		rule{item: ItemBrakeFluid, months: 24, priority: model.PriorityHigh, costLow: 120, costHigh: 200, confidence: 9, source: sourceBMWCBSShort, notes: "DOT 4 fluid required"},
	)
}

// MercedesIntervals covers Mercedes-Benz A/B service.
func MercedesIntervals(_ Query) []model.Candidate {
	return candidates(
		rule{item: "Service A (Oil & Filter)", miles: 10000, months: 12, priority: model.PriorityHigh, costLow: 150, costHigh: 250, confidence: 9, source: sourceMercedes, notes: "MB 229.5 oil specification"},
		rule{item: "Service B (Major)", miles: 20000, months: 24, priority: model.PriorityHigh, costLow: 400, costHigh: 600, confidence: 9, source: sourceMercedes, notes: "Includes all filters and comprehensive inspection"},
	)
}

// VWGroupIntervals covers Volkswagen, Audi and Porsche.
func VWGroupIntervals(_ Query) []model.Candidate {
	return candidates(
		rule{item: ItemOilFilter, miles: 10000, months: 12, priority: model.PriorityHigh, costLow: 80, costHigh: 120, confidence: 8, source: sourceVWGroup, notes: "VW 502.00/505.00 oil specification"},
		rule{item: "DSG Transmission Service", miles: 40000, priority: model.PriorityHigh, costLow: 300, costHigh: 500, confidence: 9, source: sourceVWGroup, notes: "Critical for DSG transmission longevity"},
	)
}
