package catalog

import "github.com/sells-group/interval-research/internal/model"

const (
	sourceGMOilLife  = "GM Oil Life System"
	sourceGMSchedule = "GM Maintenance Schedule"
)

// GMIntervals covers Chevrolet, GMC, Buick and Cadillac.
func GMIntervals(_ Query) []model.Candidate {
	return candidates(
		rule{item: ItemOilFilter, miles: 7500, months: 12, priority: model.PriorityHigh, costLow: 45, costHigh: 85, confidence: 8, source: sourceGMOilLife, notes: "Follow Oil Life Monitor (0% or 12 months)"},
		rule{item: ItemTireRotation, miles: 7500, priority: model.PriorityMedium, costLow: 30, costHigh: 60, confidence: 8, source: sourceGMSchedule},
		rule{item: ItemTransmissionFluid, miles: 45000, priority: model.PriorityHigh, costLow: 150, costHigh: 300, confidence: 7, source: sourceGMSchedule, notes: "Severe service interval; normal is 97,500 miles"},
	)
}
