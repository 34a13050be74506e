package catalog

import "github.com/sells-group/interval-research/internal/model"

const (
	sourceFordScheduled   = "Ford Scheduled Maintenance"
	sourceFordPowerStroke = "Ford Power Stroke Manual"
	sourceFordDiesel      = "Ford Diesel Specialist"
	sourceFordTruck       = "Ford Truck Manual"
	sourceFordSuperDuty   = "Ford Super Duty Manual"
	sourceFord4WD         = "Ford 4WD Maintenance"

	fordSyntheticYear = 2018
	fordModernOilYear = 2008
)

// IsFordSuperDuty reports whether the model is an F-250/F-350 class truck.
func IsFordSuperDuty(modelName string) bool {
	return modelHas(modelName, "f-250", "f250", "f-350", "f350", "super duty")
}

func isFordTruck(modelName string) bool {
	return modelHas(modelName, "f-150", "f150", "f-250", "f250", "f-350", "f350")
}

// FordIntervals covers Ford. Super Duty trucks get the Power Stroke diesel
// program only when the request names a diesel engine; otherwise they get
// the gas program. Engine-specific rows are tagged so a gas request never
// carries diesel-only service.
func FordIntervals(q Query) []model.Candidate {
	superDuty := IsFordSuperDuty(q.Model)
	diesel := superDuty && q.EngineType == model.EngineDiesel

	var rules []rule
	if diesel {
		rules = append(rules, fordPowerStroke()...)
	} else {
		oil := fordGasOil(q)
		if superDuty {
			oil.engine = model.EngineGas
		}
		rules = append(rules, oil)
	}

	rules = append(rules, rule{
		item: ItemTireRotation, miles: 7500, months: 6, priority: model.PriorityMedium,
		costLow: 30, costHigh: 60, confidence: 8, source: sourceFordScheduled, engine: model.EngineAll,
	})

	switch {
	case superDuty:
		trans := rule{
			item: ItemTransmissionFluid, miles: 150000, priority: model.PriorityHigh,
			costLow: 200, costHigh: 400, confidence: 9, source: sourceFordSuperDuty,
			notes: "TorqShift transmission - Mercon LV fluid", engine: model.EngineGas,
		}
		if diesel {
			trans.costLow, trans.costHigh = 250, 450
			trans.engine = model.EngineDiesel
		}
		rules = append(rules,
			trans,
			rule{item: "Transfer Case Fluid", miles: 60000, priority: model.PriorityMedium, costLow: 100, costHigh: 200, confidence: 8, source: sourceFord4WD, notes: "For 4WD models only", engine: model.EngineAll},
			rule{item: "Differential Fluid (Front & Rear)", miles: 60000, priority: model.PriorityMedium, costLow: 150, costHigh: 300, confidence: 8, source: sourceFordSuperDuty, notes: "Synthetic 75W-140 for heavy towing", engine: model.EngineAll},
		)
	case isFordTruck(q.Model):
		rules = append(rules, rule{
			item: ItemTransmissionFluid, miles: 150000, priority: model.PriorityHigh,
			costLow: 200, costHigh: 400, confidence: 9, source: sourceFordTruck,
			notes: "Mercon LV fluid required",
		})
	}

	return candidates(rules...)
}

func fordPowerStroke() []rule {
	d := model.EngineDiesel
	return []rule{
		{item: ItemOilFilter, miles: 10000, months: 6, priority: model.PriorityHigh, costLow: 80, costHigh: 150, confidence: 9, source: sourceFordPowerStroke, notes: "15W-40 or 10W-30 diesel oil (13 quarts)", engine: d},
		{item: ItemFuelFilterPrimary, miles: 20000, months: 24, priority: model.PriorityHigh, costLow: 50, costHigh: 100, confidence: 9, source: sourceFordPowerStroke, notes: "Replace both primary and secondary filters", engine: d},
		{item: ItemFuelFilterSecondary, miles: 20000, months: 24, priority: model.PriorityHigh, costLow: 50, costHigh: 100, confidence: 9, source: sourceFordPowerStroke, notes: "Critical for injector protection", engine: d},
		{item: ItemDEF, miles: 7500, priority: model.PriorityHigh, costLow: 15, costHigh: 30, confidence: 9, source: sourceFordPowerStroke, notes: "Refill when low - approx 2.5 gallons", engine: d},
		{item: "EGR Valve Cleaning", miles: 50000, priority: model.PriorityMedium, costLow: 200, costHigh: 400, confidence: 7, source: sourceFordDiesel, notes: "Prevents carbon buildup and costly repairs", engine: d},
		{item: "DPF (Diesel Particulate Filter) Service", miles: 100000, priority: model.PriorityMedium, costLow: 300, costHigh: 600, confidence: 7, source: sourceFordPowerStroke, notes: "Clean or replace based on condition", engine: d},
	}
}

func fordGasOil(q Query) rule {
	r := rule{
		item: ItemOilFilter, miles: 5000, months: 6, priority: model.PriorityHigh,
		costLow: 40, costHigh: 80, confidence: 8, source: sourceFordScheduled,
		notes: "5W-20 or 5W-30 Motorcraft oil",
	}
	if q.Year >= fordModernOilYear {
		r.miles = 7500
	}
	if q.Year >= fordSyntheticYear && (modelHas(q.Model, "f-150", "f150") || IsFordSuperDuty(q.Model)) {
		r.miles = 10000
		r.notes = "Extended interval with synthetic oil"
	}
	return r
}
