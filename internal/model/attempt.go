package model

import "time"

// InputType distinguishes term-based from actor-based collection inputs.
type InputType string

const (
	InputTerm  InputType = "term"
	InputActor InputType = "actor"
)

// CollectionAttempt is lightweight coverage metadata written after every
// successful collection call. The admission controller's fast path only
// trusts rows with RecordsReturned > 0, IsValid set, and AttemptedAt within
// its staleness window.
type CollectionAttempt struct {
	ID              string    `json:"id"`
	Platform        string    `json:"platform"`
	InputType       InputType `json:"input_type"`
	InputValue      string    `json:"input_value"`
	RangeFrom       time.Time `json:"range_from"`
	RangeTo         time.Time `json:"range_to"`
	RecordsReturned int       `json:"records_returned"`
	IsValid         bool      `json:"is_valid"`
	AttemptedAt     time.Time `json:"attempted_at"`
}
