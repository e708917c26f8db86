package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"homecare/internal/domain"
	"homecare/internal/observability"
)

// NotificationKind identifies the kind of notification.
type NotificationKind string

const (
	NotificationNewOffer         NotificationKind = "new_offer"
	NotificationRequestConfirmed NotificationKind = "request_confirmed"
	NotificationRequestDeclined  NotificationKind = "request_declined"
	NotificationEnRoute          NotificationKind = "en_route"
	NotificationConfirmation     NotificationKind = "confirmation"
)

// Notification represents a notification to be delivered.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	RecipientID string           `json:"recipient_id"`
	RequestID   string           `json:"request_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        map[string]any   `json:"data,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotifyResult reports the outcome of a delivery attempt. Delivery
// failures are results, never errors: the domain transition that
// triggered the notification has already committed.
type NotifyResult struct {
	Success bool
	Message string
}

// NotifierInterface is the notification sender contract used by the
// lifecycle service.
type NotifierInterface interface {
	NotifyNewOffer(ctx context.Context, nurseID string, req *domain.ServiceRequest, estimatedCost float64) NotifyResult
	NotifyRequestConfirmed(ctx context.Context, req *domain.ServiceRequest, nurseName string) NotifyResult
	NotifyRequestDeclined(ctx context.Context, req *domain.ServiceRequest, reason string) NotifyResult
	NotifyEnRoute(ctx context.Context, req *domain.ServiceRequest, nurseName string) NotifyResult
	NotifyVisitCompleted(ctx context.Context, req *domain.ServiceRequest) NotifyResult
}

// NotificationService delivers notifications to patients and nurses.
// When a push endpoint is configured it POSTs each notification there;
// otherwise delivery is log-only.
type NotificationService struct {
	endpoint string
	client   *http.Client
}

var _ NotifierInterface = (*NotificationService)(nil)

// NewNotificationService creates a new NotificationService. endpoint may
// be empty for log-only delivery.
func NewNotificationService(endpoint string) *NotificationService {
	return &NotificationService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 3 * time.Second},
	}
}

// NotifyNewOffer notifies a nurse about a fresh offer.
func (s *NotificationService) NotifyNewOffer(ctx context.Context, nurseID string, req *domain.ServiceRequest, estimatedCost float64) NotifyResult {
	return s.Notify(ctx, Notification{
		Kind:        NotificationNewOffer,
		RecipientID: nurseID,
		RequestID:   req.ID,
		Title:       "New Visit Offer",
		Message:     fmt.Sprintf("New %s visit request near you", req.Details.ServiceType),
		Data: map[string]any{
			"service_type":      req.Details.ServiceType,
			"scheduled_at":      req.Details.ScheduledAt,
			"duration_hours":    req.Details.DurationHours,
			"estimated_cost":    estimatedCost,
			"urgent":            req.Details.Urgent,
			"response_deadline": req.Matching.ResponseDeadline,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyRequestConfirmed notifies the patient that a nurse accepted.
func (s *NotificationService) NotifyRequestConfirmed(ctx context.Context, req *domain.ServiceRequest, nurseName string) NotifyResult {
	return s.Notify(ctx, Notification{
		Kind:        NotificationRequestConfirmed,
		RecipientID: req.PatientID,
		RequestID:   req.ID,
		Title:       "Nurse Confirmed",
		Message:     fmt.Sprintf("%s has accepted your visit request", nurseName),
		Data:        map[string]any{"nurse_id": req.Matching.SelectedNurseID},
		CreatedAt:   time.Now(),
	})
}

// NotifyRequestDeclined notifies the patient that no nurse accepted.
func (s *NotificationService) NotifyRequestDeclined(ctx context.Context, req *domain.ServiceRequest, reason string) NotifyResult {
	return s.Notify(ctx, Notification{
		Kind:        NotificationRequestDeclined,
		RecipientID: req.PatientID,
		RequestID:   req.ID,
		Title:       "Request Declined",
		Message:     "No nurse is available for your request right now. Please try again.",
		Data:        map[string]any{"reason": reason},
		CreatedAt:   time.Now(),
	})
}

// NotifyEnRoute notifies the patient that the nurse started the visit.
func (s *NotificationService) NotifyEnRoute(ctx context.Context, req *domain.ServiceRequest, nurseName string) NotifyResult {
	return s.Notify(ctx, Notification{
		Kind:        NotificationEnRoute,
		RecipientID: req.PatientID,
		RequestID:   req.ID,
		Title:       "Nurse On The Way",
		Message:     fmt.Sprintf("%s is on the way to your visit", nurseName),
		CreatedAt:   time.Now(),
	})
}

// NotifyVisitCompleted sends the post-visit confirmation to the patient.
func (s *NotificationService) NotifyVisitCompleted(ctx context.Context, req *domain.ServiceRequest) NotifyResult {
	return s.Notify(ctx, Notification{
		Kind:        NotificationConfirmation,
		RecipientID: req.PatientID,
		RequestID:   req.ID,
		Title:       "Visit Completed",
		Message:     "Your visit is complete. You can now leave a review.",
		CreatedAt:   time.Now(),
	})
}

// Notify delivers a notification. It never returns an error; failures
// come back as an unsuccessful result.
func (s *NotificationService) Notify(ctx context.Context, n Notification) NotifyResult {
	if s.endpoint == "" {
		log.Info().
			Str("kind", string(n.Kind)).
			Str("recipient", n.RecipientID).
			Str("request_id", n.RequestID).
			Str("title", n.Title).
			Msg("notification delivered (log-only)")
		return NotifyResult{Success: true, Message: "logged"}
	}

	body, err := json.Marshal(n)
	if err != nil {
		return s.failure(n, fmt.Sprintf("encode notification: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return s.failure(n, fmt.Sprintf("build push request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return s.failure(n, fmt.Sprintf("push delivery failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return s.failure(n, fmt.Sprintf("push endpoint returned %d", resp.StatusCode))
	}

	log.Info().
		Str("kind", string(n.Kind)).
		Str("recipient", n.RecipientID).
		Str("request_id", n.RequestID).
		Msg("notification delivered")
	return NotifyResult{Success: true, Message: "delivered"}
}

func (s *NotificationService) failure(n Notification, msg string) NotifyResult {
	observability.NotifyFailuresTotal.Inc()
	log.Warn().
		Str("kind", string(n.Kind)).
		Str("recipient", n.RecipientID).
		Str("request_id", n.RequestID).
		Str("reason", msg).
		Msg("notification delivery failed")
	return NotifyResult{Success: false, Message: msg}
}
