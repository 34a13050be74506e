package catalog

import "github.com/sells-group/interval-research/internal/model"

const (
	sourceIndustry  = "Industry Standard"
	sourceDefaults  = "Industry Standards"
	sparkPlugCutoff = 2010
)

// BaseIntervals returns the manufacturer-agnostic items that apply to any
// vehicle. Spark plug life depends on the model year, and engines without
// spark ignition (diesel, electric) get no spark plug service.
func BaseIntervals(q Query) []model.Candidate {
	rules := []rule{
		{item: ItemEngineAirFilter, miles: 30000, months: 36, priority: model.PriorityMedium, costLow: 25, costHigh: 50, confidence: 7, source: sourceIndustry, notes: "Replace more frequently in dusty conditions"},
		{item: ItemCabinAirFilter, miles: 15000, months: 12, priority: model.PriorityLow, costLow: 25, costHigh: 60, confidence: 7, source: sourceIndustry},
		{item: ItemBrakeFluid, miles: 30000, months: 36, priority: model.PriorityHigh, costLow: 70, costHigh: 120, confidence: 8, source: sourceIndustry, notes: "Critical for brake system performance"},
		{item: ItemCoolant, miles: 60000, months: 60, priority: model.PriorityHigh, costLow: 100, costHigh: 150, confidence: 7, source: sourceIndustry, notes: "Use manufacturer-specified coolant type"},
	}
	if sparkIgnition(q.EngineType) {
		plugs := rule{item: ItemSparkPlugs, miles: 100000, months: 120, priority: model.PriorityMedium, costLow: 150, costHigh: 300, confidence: 7, source: sourceIndustry, notes: "Platinum/Iridium plugs last longer"}
		if q.Year < sparkPlugCutoff {
			plugs.miles, plugs.months = 60000, 60
		}
		rules = append(rules, plugs)
	}
	rules = append(rules,
		rule{item: ItemBatteryTest, months: 12, priority: model.PriorityMedium, costLow: 0, costHigh: 20, confidence: 8, source: sourceIndustry, notes: "Most batteries last 3-5 years"},
		rule{item: ItemBrakeInspection, miles: 12000, months: 12, priority: model.PriorityHigh, costLow: 0, costHigh: 50, confidence: 8, source: sourceIndustry, notes: "Visual inspection of pads, rotors, and fluid"},
		rule{item: ItemWheelAlignment, months: 12, priority: model.PriorityMedium, costLow: 0, costHigh: 30, confidence: 7, source: sourceIndustry, notes: "Check if vehicle pulls or tires wear unevenly"},
	)
	return candidates(rules...)
}

func sparkIgnition(e model.EngineType) bool {
	return e != model.EngineDiesel && e != model.EngineElectric
}

// Defaults returns the industry-standard fallback set used when research
// produces nothing. A fresh slice is returned on every call.
func Defaults() []model.Candidate {
	return candidates(
		rule{item: ItemOilFilter, miles: 5000, months: 6, priority: model.PriorityHigh, costLow: 30, costHigh: 75, confidence: 7, source: sourceDefaults, notes: "Check owner's manual for specific oil type"},
		rule{item: ItemTireRotation, miles: 5000, months: 6, priority: model.PriorityMedium, costLow: 20, costHigh: 50, confidence: 7, source: sourceDefaults, notes: "Helps ensure even tire wear"},
		rule{item: ItemEngineAirFilter, miles: 30000, months: 36, priority: model.PriorityMedium, costLow: 25, costHigh: 50, confidence: 7, source: sourceDefaults, notes: "Replace more frequently in dusty conditions"},
		rule{item: ItemCabinAirFilter, miles: 15000, months: 12, priority: model.PriorityLow, costLow: 25, costHigh: 60, confidence: 7, source: sourceDefaults},
		rule{item: ItemBrakeFluid, miles: 30000, months: 36, priority: model.PriorityHigh, costLow: 70, costHigh: 120, confidence: 7, source: sourceDefaults, notes: "Critical for brake system performance"},
		rule{item: ItemTransmissionFluid, miles: 60000, months: 60, priority: model.PriorityHigh, costLow: 150, costHigh: 300, confidence: 7, source: sourceDefaults, notes: "Check owner's manual - some are lifetime fill"},
		rule{item: ItemCoolant, miles: 60000, months: 60, priority: model.PriorityHigh, costLow: 100, costHigh: 150, confidence: 7, source: sourceDefaults, notes: "Use manufacturer-specified coolant type"},
		rule{item: ItemSparkPlugs, miles: 100000, months: 120, priority: model.PriorityMedium, costLow: 150, costHigh: 300, confidence: 7, source: sourceDefaults, notes: "Platinum/Iridium plugs last longer"},
		rule{item: ItemBatteryTest, months: 12, priority: model.PriorityMedium, costLow: 0, costHigh: 20, confidence: 7, source: sourceDefaults, notes: "Most batteries last 3-5 years"},
		rule{item: ItemBrakeInspection, miles: 12000, months: 12, priority: model.PriorityHigh, costLow: 0, costHigh: 50, confidence: 7, source: sourceDefaults, notes: "Visual inspection of pads, rotors, and fluid"},
		rule{item: ItemMultiPoint, miles: 5000, months: 6, priority: model.PriorityMedium, costLow: 0, costHigh: 0, confidence: 7, source: sourceDefaults, notes: "Comprehensive check of vehicle systems"},
		rule{item: ItemWheelAlignment, months: 12, priority: model.PriorityMedium, costLow: 0, costHigh: 30, confidence: 7, source: sourceDefaults, notes: "Check if vehicle pulls or tires wear unevenly"},
	)
}
