package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Engine Oil & Filter", "engineoilfilter"},
		{"engine oil/filter", "engineoilfilter"},
		{"  Tire Rotation ", "tirerotation"},
		{"DEF (Diesel Exhaust Fluid)", "defdieselexhaustfluid"},
		{"Coolant/Antifreeze", "coolantantifreeze"},
		{"Straße", "strasse"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeItem(tt.in))
		})
	}
}

func TestMatchItem(t *testing.T) {
	t.Parallel()

	assert.Equal(t, MatchItem("Tire Rotation"), MatchItem("  tire rotation"))
	assert.NotEqual(t, MatchItem("Tire Rotation"), MatchItem("TireRotation"))
}

func TestParseEngineType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    EngineType
		wantErr bool
	}{
		{"", EngineUnspecified, false},
		{"Diesel", EngineDiesel, false},
		{"gasoline", EngineGas, false},
		{" hybrid ", EngineHybrid, false},
		{"EV", EngineElectric, false},
		{"all", EngineAll, false},
		{"steam", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseEngineType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngineTypeConcrete(t *testing.T) {
	t.Parallel()

	assert.False(t, EngineUnspecified.Concrete())
	assert.False(t, EngineAll.Concrete())
	assert.True(t, EngineDiesel.Concrete())
	assert.True(t, EngineGas.Concrete())
}

func TestCandidateClone(t *testing.T) {
	t.Parallel()

	orig := Candidate{ServiceItem: "Brake Fluid", IntervalMiles: Int(30000), CostEstimateLow: Float(70)}
	cp := orig.Clone()
	*cp.IntervalMiles = 1
	*cp.CostEstimateLow = 1

	assert.Equal(t, 30000, *orig.IntervalMiles)
	assert.InDelta(t, 70.0, *orig.CostEstimateLow, 0.001)
	assert.Nil(t, cp.IntervalMonths)
}

func TestCandidateActionable(t *testing.T) {
	t.Parallel()

	assert.False(t, Candidate{ServiceItem: "x"}.Actionable())
	assert.True(t, Candidate{ServiceItem: "x", IntervalMonths: Int(12)}.Actionable())
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	got := Sanitize(Candidate{
		ServiceItem:     "  Tire Rotation ",
		IntervalMiles:   Int(0),
		IntervalMonths:  Int(-3),
		Priority:        " HIGH",
		ConfidenceScore: 42,
		EngineType:      "Diesel",
		Notes:           " note ",
	})

	assert.Equal(t, "Tire Rotation", got.ServiceItem)
	assert.Nil(t, got.IntervalMiles)
	assert.Nil(t, got.IntervalMonths)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, MaxConfidence, got.ConfidenceScore)
	assert.Equal(t, EngineDiesel, got.EngineType)
	assert.Equal(t, "note", got.Notes)

	low := Sanitize(Candidate{ServiceItem: "x"})
	assert.Equal(t, MinConfidence, low.ConfidenceScore)
	assert.Empty(t, low.Priority)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		c       Candidate
		wantErr bool
	}{
		{"valid", Candidate{ServiceItem: "Oil", IntervalMiles: Int(5000), Priority: PriorityHigh, ConfidenceScore: 7}, false},
		{"missing item", Candidate{ConfidenceScore: 5}, true},
		{"bad priority", Candidate{ServiceItem: "Oil", Priority: "urgent", ConfidenceScore: 5}, true},
		{"cost inverted", Candidate{ServiceItem: "Oil", CostEstimateLow: Float(90), CostEstimateHigh: Float(30), ConfidenceScore: 5}, true},
		{"cost equal", Candidate{ServiceItem: "Oil", CostEstimateLow: Float(0), CostEstimateHigh: Float(0), ConfidenceScore: 5}, false},
		{"negative cost", Candidate{ServiceItem: "Oil", CostEstimateLow: Float(-1), ConfidenceScore: 5}, true},
		{"bad engine", Candidate{ServiceItem: "Oil", EngineType: "steam", ConfidenceScore: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.c)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, ErrInvalidCandidate))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSanitizeAll(t *testing.T) {
	t.Parallel()

	t.Run("all valid", func(t *testing.T) {
		t.Parallel()
		out, err := SanitizeAll([]Candidate{{ServiceItem: " a "}, {ServiceItem: "b", Priority: "LOW"}})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "a", out[0].ServiceItem)
		assert.Equal(t, PriorityLow, out[1].Priority)
	})

	t.Run("one invalid fails set", func(t *testing.T) {
		t.Parallel()
		out, err := SanitizeAll([]Candidate{{ServiceItem: "a"}, {ServiceItem: "   "}})
		require.Error(t, err)
		assert.Nil(t, out)
		assert.Contains(t, err.Error(), "candidate 1")
	})
}

func TestServiceIntervalCandidate(t *testing.T) {
	t.Parallel()

	iv := ServiceInterval{ServiceItem: "Brake Fluid", IntervalMonths: Int(24), Priority: PriorityHigh, Source: "BMW CBS"}
	c := iv.Candidate()
	assert.Equal(t, "Brake Fluid", c.ServiceItem)
	assert.Equal(t, 24, *c.IntervalMonths)
	*c.IntervalMonths = 1
	assert.Equal(t, 24, *iv.IntervalMonths)
}

func TestValidateVehicle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		vehicle Vehicle
		wantErr bool
	}{
		{"valid", Vehicle{Make: "Toyota", Model: "Camry", Year: 2020}, false},
		{"empty model allowed", Vehicle{Make: "Subaru", Year: 2015}, false},
		{"engine type", Vehicle{Make: "Ford", Model: "F-250", Year: 2019, EngineType: EngineDiesel}, false},
		{"missing make", Vehicle{Model: "Camry", Year: 2020}, true},
		{"year too old", Vehicle{Make: "Ford", Model: "Model T", Year: 1899}, true},
		{"year too new", Vehicle{Make: "Ford", Model: "F-150", Year: 2101}, true},
		{"bad engine", Vehicle{Make: "Ford", Model: "F-150", Year: 2020, EngineType: "steam"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateVehicle(tt.vehicle)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, ErrInvalidVehicle))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidationErrorsStayDistinct(t *testing.T) {
	t.Parallel()

	err := ValidateVehicle(Vehicle{Model: "Camry", Year: 2020})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidVehicle)
	assert.NotErrorIs(t, err, ErrInvalidCandidate)

	err = Validate(Candidate{ConfidenceScore: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCandidate)
	assert.NotErrorIs(t, err, ErrInvalidVehicle)
}
