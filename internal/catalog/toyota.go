package catalog

import "github.com/sells-group/interval-research/internal/model"

const (
	sourceToyota       = "Toyota Maintenance Guide"
	sourceToyotaHybrid = "Toyota Hybrid Guide"
)

// ToyotaIntervals covers Toyota and Lexus. Hybrid models add the hybrid
// system coolant service.
func ToyotaIntervals(q Query) []model.Candidate {
	rules := []rule{
		{item: ItemOilFilter, miles: 5000, months: 6, priority: model.PriorityHigh, costLow: 30, costHigh: 70, confidence: 9, source: sourceToyota, notes: "0W-20 synthetic oil recommended for most models"},
		{item: ItemTireRotation, miles: 5000, months: 6, priority: model.PriorityMedium, costLow: 20, costHigh: 50, confidence: 9, source: sourceToyota},
		{item: ItemMultiPoint, miles: 5000, months: 6, priority: model.PriorityMedium, costLow: 0, costHigh: 0, confidence: 9, source: sourceToyota, notes: "Comprehensive inspection included with oil change"},
		{item: ItemTransmissionFluid, miles: 60000, months: 60, priority: model.PriorityHigh, costLow: 150, costHigh: 250, confidence: 8, source: sourceToyota, notes: "WS fluid for most automatic transmissions"},
	}

	if q.EngineType == model.EngineHybrid || modelHas(q.Model, "prius", "hybrid") {
		rules = append(rules, rule{
			item: "Hybrid Coolant", miles: 100000, months: 120, priority: model.PriorityHigh,
			costLow: 150, costHigh: 250, confidence: 9, source: sourceToyotaHybrid,
			notes: "Special hybrid system coolant required", engine: model.EngineHybrid,
		})
	}
	return candidates(rules...)
}
