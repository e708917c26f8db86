package domain

import "time"

// RequestStatus represents the current status of a service request.
// The string values are persisted and shared with existing clients;
// they must not be renamed.
type RequestStatus string

const (
	RequestStatusCreating        RequestStatus = "creating"
	RequestStatusFindingNurses   RequestStatus = "finding-nurses"
	RequestStatusPendingResponse RequestStatus = "pending-response"
	RequestStatusConfirmed       RequestStatus = "confirmed"
	RequestStatusInProgress      RequestStatus = "in-progress"
	RequestStatusCompleted       RequestStatus = "completed"
	RequestStatusCancelled       RequestStatus = "cancelled"
	RequestStatusDeclined        RequestStatus = "declined"
)

// legalTransitions is the full edge set of the request state machine.
// Cancellation from non-terminal states is added in CanTransition.
var legalTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusCreating:        {RequestStatusFindingNurses},
	RequestStatusFindingNurses:   {RequestStatusPendingResponse},
	RequestStatusPendingResponse: {RequestStatusConfirmed, RequestStatusDeclined},
	RequestStatusConfirmed:       {RequestStatusInProgress, RequestStatusCompleted},
	RequestStatusInProgress:      {RequestStatusCompleted},
}

// IsTerminal reports whether no further transitions are allowed.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusCompleted, RequestStatusCancelled, RequestStatusDeclined:
		return true
	}
	return false
}

// CanTransition reports whether the edge from -> to is legal.
func CanTransition(from, to RequestStatus) bool {
	if to == RequestStatusCancelled {
		return !from.IsTerminal()
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ServiceDetails are the immutable details of a requested visit.
type ServiceDetails struct {
	ServiceType         string
	ScheduledAt         time.Time
	DurationHours       float64
	Address             string
	Location            *Location
	SpecialRequirements string
	Urgent              bool
}

// Matching captures the result of the matching pass that created the
// request. Candidates are a snapshot taken at creation time and are
// never re-derived; a fresh matching pass is a new snapshot.
type Matching struct {
	Candidates       []Candidate
	PendingNurseIDs  []string
	DeclinedNurseIDs []string
	SelectedNurseID  string
	OfferSentAt      time.Time
	ResponseDeadline time.Time
}

// Candidate returns the snapshot entry for a nurse, or nil.
func (m *Matching) Candidate(nurseID string) *Candidate {
	for i := range m.Candidates {
		if m.Candidates[i].NurseID == nurseID {
			return &m.Candidates[i]
		}
	}
	return nil
}

// HasDeclined reports whether the nurse already declined this request.
func (m *Matching) HasDeclined(nurseID string) bool {
	for _, id := range m.DeclinedNurseIDs {
		if id == nurseID {
			return true
		}
	}
	return false
}

// IsPending reports whether the nurse currently holds an open offer.
func (m *Matching) IsPending(nurseID string) bool {
	for _, id := range m.PendingNurseIDs {
		if id == nurseID {
			return true
		}
	}
	return false
}

// RemovePending drops a nurse from the pending-offer set.
// Removing an absent nurse is a no-op.
func (m *Matching) RemovePending(nurseID string) {
	out := m.PendingNurseIDs[:0]
	for _, id := range m.PendingNurseIDs {
		if id != nurseID {
			out = append(out, id)
		}
	}
	m.PendingNurseIDs = out
}

// Payment holds the fee and payout bookkeeping for a request.
type Payment struct {
	PlatformFee float64
	FeePaid     bool
	NursePayout float64
	PayoutPaid  bool
}

// Review is an optional post-completion review.
type Review struct {
	Rating    int // 1..5
	Comment   string
	CreatedAt time.Time
}

// ServiceRequest is the aggregate root of the matching core.
// All status mutations must go through the lifecycle service so the
// single-active-status invariant holds.
type ServiceRequest struct {
	ID          string
	PatientID   string
	PatientName string
	Details     ServiceDetails
	Status      RequestStatus
	Matching    Matching
	Payment     Payment
	Review      *Review
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt time.Time
	CancelNote  string
}
