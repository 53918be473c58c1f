package reconcile

import (
	"encoding/json"
	"fmt"
)

// FieldConflict is one field on which the local and remote snapshots disagree
// in a way the configured strategy must settle. Only the detector creates them.
type FieldConflict struct {
	Field         string       `json:"field"`
	LocalValue    any          `json:"local_value"`
	RemoteValue   any          `json:"remote_value"`
	Strategy      StrategyKind `json:"strategy"`
	LocalVersion  *int64       `json:"local_version,omitempty"`
	RemoteVersion *int64       `json:"remote_version,omitempty"`
}

func (c FieldConflict) String() string {
	return fmt.Sprintf("FieldConflict(field=%s, local=%v, remote=%v, strategy=%s)",
		c.Field, c.LocalValue, c.RemoteValue, c.Strategy)
}

// Source names the side a resolved value came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	SourceMerged Source = "merged"
)

// OutcomeStatus distinguishes resolved outcomes from those deferred to a human.
type OutcomeStatus string

const (
	StatusResolved            OutcomeStatus = "resolved"
	StatusPendingManualReview OutcomeStatus = "pending_manual_review"
)

// Reasons attached to outcomes.
const (
	ReasonLastWriteWins  = "last write wins"
	ReasonLocalPriority  = "local priority"
	ReasonRemotePriority = "remote priority"
	ReasonMerged         = "merged"
	ReasonManualReview   = "manual review required"
)

// ResolutionOutcome is the result of resolving one FieldConflict. A pending
// outcome carries both candidate values and no Value/Source.
type ResolutionOutcome struct {
	Status      OutcomeStatus
	Field       string
	Value       any
	Source      Source
	Reason      string
	LocalValue  any
	RemoteValue any
}

// Pending reports whether the outcome awaits manual review.
func (o ResolutionOutcome) Pending() bool {
	return o.Status == StatusPendingManualReview
}

type resolvedJSON struct {
	Field  string `json:"field"`
	Value  any    `json:"value"`
	Source Source `json:"source"`
	Reason string `json:"reason"`
}

type pendingJSON struct {
	Field       string        `json:"field"`
	Status      OutcomeStatus `json:"status"`
	LocalValue  any           `json:"local_value"`
	RemoteValue any           `json:"remote_value"`
	Reason      string        `json:"reason"`
}

// MarshalJSON emits the resolved or pending shape depending on Status.
func (o ResolutionOutcome) MarshalJSON() ([]byte, error) {
	if o.Pending() {
		return json.Marshal(pendingJSON{
			Field:       o.Field,
			Status:      o.Status,
			LocalValue:  o.LocalValue,
			RemoteValue: o.RemoteValue,
			Reason:      o.Reason,
		})
	}
	return json.Marshal(resolvedJSON{Field: o.Field, Value: o.Value, Source: o.Source, Reason: o.Reason})
}

// UnmarshalJSON accepts either shape produced by MarshalJSON.
func (o *ResolutionOutcome) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field       string        `json:"field"`
		Status      OutcomeStatus `json:"status"`
		Value       any           `json:"value"`
		Source      Source        `json:"source"`
		Reason      string        `json:"reason"`
		LocalValue  any           `json:"local_value"`
		RemoteValue any           `json:"remote_value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = ResolutionOutcome{
		Status:      raw.Status,
		Field:       raw.Field,
		Value:       raw.Value,
		Source:      raw.Source,
		Reason:      raw.Reason,
		LocalValue:  raw.LocalValue,
		RemoteValue: raw.RemoteValue,
	}
	if o.Status == "" {
		o.Status = StatusResolved
	}
	return nil
}
