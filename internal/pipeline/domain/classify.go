// Package domain contains the pure pipeline rules: deriving a lead's
// status from the stage it sits in and projecting its position into a
// progress model. Nothing in this package touches storage or transport.
package domain

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	StatusReceived  LeadStatus = "received"
	StatusActive    LeadStatus = "active"
	StatusFollowUp  LeadStatus = "followup"
	StatusConverted LeadStatus = "converted"
	StatusDropped   LeadStatus = "dropped"
)

// Stage names with a special meaning for status derivation. Matching is
// exact: renaming one of these stages in the registry silently detaches
// the status side effect, which operators rely on when they want a
// stage without one.
const (
	stageNameConverted = "Lead Converted"
	stageNameDropped   = "Lead Dropped"
	stageNameFollowUp  = "Lead Follow Up"
	stageNameReceived  = "Lead Received"
)

var stageStatusByName = map[string]LeadStatus{
	stageNameConverted: StatusConverted,
	stageNameDropped:   StatusDropped,
	stageNameFollowUp:  StatusFollowUp,
	stageNameReceived:  StatusReceived,
}

// ClassifyStage returns the lead status implied by entering the named
// stage. The second return is false when the stage name carries no
// status semantics, in which case the lead's status must not change.
func ClassifyStage(stageName string) (LeadStatus, bool) {
	status, ok := stageStatusByName[stageName]
	return status, ok
}

// IsTerminal reports whether a status ends the default pipeline's
// interest in a lead. Terminal here does not freeze the lead: stage
// transitions remain legal, it only gates which processes become
// assignable.
func IsTerminal(status LeadStatus) bool {
	return status == StatusConverted || status == StatusDropped
}

// ValidStatus reports whether the value is a known lead status.
func ValidStatus(status LeadStatus) bool {
	switch status {
	case StatusReceived, StatusActive, StatusFollowUp, StatusConverted, StatusDropped:
		return true
	}
	return false
}
