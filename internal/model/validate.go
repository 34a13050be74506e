package model

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// ErrInvalidCandidate is returned (wrapped) when a candidate fails validation.
var ErrInvalidCandidate = eris.New("invalid candidate")

// ErrInvalidVehicle is returned (wrapped) when a vehicle cannot be researched.
var ErrInvalidVehicle = eris.New("invalid vehicle")

// Confidence bounds for a candidate after sanitization.
const (
	MinConfidence = 1
	MaxConfidence = 10
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator. Field errors use json tag names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		v.RegisterStructValidation(costRangeValidation, Candidate{})
		validate = v
	})
	return validate
}

func costRangeValidation(sl validator.StructLevel) {
	c := sl.Current().Interface().(Candidate)
	if c.CostEstimateLow != nil && c.CostEstimateHigh != nil && *c.CostEstimateLow > *c.CostEstimateHigh {
		sl.ReportError(c.CostEstimateLow, "cost_estimate_low", "CostEstimateLow", "ltefield", "cost_estimate_high")
	}
}

// Sanitize returns a cleaned copy of c: strings trimmed, enums lowercased,
// non-positive intervals dropped, confidence clamped into [1, 10]. Priority
// is left empty when not supplied.
func Sanitize(c Candidate) Candidate {
	out := c.Clone()
	out.ServiceItem = strings.TrimSpace(out.ServiceItem)
	out.Source = strings.TrimSpace(out.Source)
	out.Notes = strings.TrimSpace(out.Notes)
	out.Priority = Priority(strings.ToLower(strings.TrimSpace(string(out.Priority))))
	out.EngineType = EngineType(strings.ToLower(strings.TrimSpace(string(out.EngineType))))

	if out.IntervalMiles != nil && *out.IntervalMiles <= 0 {
		out.IntervalMiles = nil
	}
	if out.IntervalMonths != nil && *out.IntervalMonths <= 0 {
		out.IntervalMonths = nil
	}

	switch {
	case out.ConfidenceScore < MinConfidence:
		out.ConfidenceScore = MinConfidence
	case out.ConfidenceScore > MaxConfidence:
		out.ConfidenceScore = MaxConfidence
	}
	return out
}

// Validate checks c against its struct tags and the cost range rule.
func Validate(c Candidate) error {
	if err := Validator().Struct(c); err != nil {
		if fields, ok := failedFields(err); ok {
			return eris.Wrapf(ErrInvalidCandidate, "model: %q failed %s", c.ServiceItem, fields)
		}
		return eris.Wrap(err, "model: validate candidate")
	}
	return nil
}

// ValidateVehicle checks v (after Normalized) before it is researched.
func ValidateVehicle(v Vehicle) error {
	if err := Validator().Struct(v); err != nil {
		if fields, ok := failedFields(err); ok {
			return eris.Wrapf(ErrInvalidVehicle, "model: vehicle failed %s", fields)
		}
		return eris.Wrap(err, "model: validate vehicle")
	}
	return nil
}

func failedFields(err error) (string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "", false
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+":"+fe.Tag())
	}
	return strings.Join(fields, ", "), true
}

// SanitizeAll sanitizes and validates each candidate. The first invalid
// candidate fails the whole set.
func SanitizeAll(cands []Candidate) ([]Candidate, error) {
	out := make([]Candidate, 0, len(cands))
	for i, c := range cands {
		s := Sanitize(c)
		if err := Validate(s); err != nil {
			return nil, eris.Wrapf(err, "model: candidate %d", i)
		}
		out = append(out, s)
	}
	return out, nil
}
