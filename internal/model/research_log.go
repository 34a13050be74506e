package model

import "time"

// ResearchLog records one research call. The engine returns it with every
// result; persisting it is the caller's job.
type ResearchLog struct {
	ID             string     `json:"id" yaml:"id"`
	UserID         int64      `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	CarID          int64      `json:"car_id,omitempty" yaml:"car_id,omitempty"`
	Make           string     `json:"make" yaml:"make"`
	Model          string     `json:"model" yaml:"model"`
	Year           int        `json:"year" yaml:"year"`
	EngineType     EngineType `json:"engine_type,omitempty" yaml:"engine_type,omitempty"`
	SourcesChecked []string   `json:"sources_checked" yaml:"sources_checked"`
	IntervalsFound int        `json:"intervals_found" yaml:"intervals_found"`
	SuccessRate    float64    `json:"success_rate" yaml:"success_rate"` // confidence * 10, as a percentage
	Confidence     int        `json:"confidence" yaml:"confidence"`
	CacheHit       bool       `json:"cache_hit,omitempty" yaml:"cache_hit,omitempty"`
	Error          string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
}

// Failed reports whether the research call ended in an error.
func (l ResearchLog) Failed() bool {
	return l.Error != ""
}
