package service

import "errors"

var (
	// ErrInvalidPatientID is returned when patient ID is empty.
	ErrInvalidPatientID = errors.New("invalid patient id")

	// ErrInvalidNurseID is returned when nurse ID is empty.
	ErrInvalidNurseID = errors.New("invalid nurse id")

	// ErrInvalidRequestID is returned when request ID is empty.
	ErrInvalidRequestID = errors.New("invalid request id")

	// ErrInvalidServiceType is returned when the service type tag is empty.
	ErrInvalidServiceType = errors.New("invalid service type")

	// ErrMissingLocation is returned when the visit location is absent or
	// has out-of-range coordinates.
	ErrMissingLocation = errors.New("missing or invalid visit location")

	// ErrInvalidDuration is returned when duration is below one hour.
	ErrInvalidDuration = errors.New("duration must be at least one hour")

	// ErrInvalidSchedule is returned when the scheduled time is unset or
	// in the past.
	ErrInvalidSchedule = errors.New("invalid scheduled time")

	// ErrInvalidRating is returned when a review rating is out of range.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrRequestBusy is returned when another matching pass holds the
	// request lock.
	ErrRequestBusy = errors.New("request is being matched by another process")

	// ErrRequestNotOfferable is returned when offers cannot be dispatched
	// for the request's current status.
	ErrRequestNotOfferable = errors.New("request cannot receive offers in current state")

	// ErrOfferNotAvailable is returned when a nurse responds to an offer
	// that has expired or was taken by another nurse. The caller should
	// re-fetch the request.
	ErrOfferNotAvailable = errors.New("offer no longer available")

	// ErrNurseNotOffered is returned when a nurse responds to a request
	// they were never offered.
	ErrNurseNotOffered = errors.New("nurse does not hold an offer for this request")

	// ErrNurseNotCandidate is returned when an offer targets a nurse
	// outside the request's candidate snapshot.
	ErrNurseNotCandidate = errors.New("nurse is not among the matched candidates")

	// ErrNurseNotAssigned is returned when a nurse acts on a request
	// confirmed for a different nurse.
	ErrNurseNotAssigned = errors.New("nurse not assigned to this request")

	// ErrRequestAlreadyCancelled is returned when cancelling twice.
	ErrRequestAlreadyCancelled = errors.New("request already cancelled")

	// ErrRequestCannotBeCancelled is returned when the request reached a
	// terminal state other than cancelled.
	ErrRequestCannotBeCancelled = errors.New("request cannot be cancelled in current state")

	// ErrIllegalTransition is returned for any status edge outside the
	// request state machine.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrRequestNotCompleted is returned when reviewing an unfinished
	// request.
	ErrRequestNotCompleted = errors.New("request not completed")

	// ErrAlreadyReviewed is returned when a request already has a review.
	ErrAlreadyReviewed = errors.New("request already reviewed")

	// ErrRequestNotRematchable is returned when a fresh matching pass is
	// requested for a request that was not declined.
	ErrRequestNotRematchable = errors.New("request is not in a rematchable state")
)
