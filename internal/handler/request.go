package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"homecare/internal/domain"
	"homecare/internal/service"
)

// RequestHandler handles HTTP requests for service requests.
type RequestHandler struct {
	requestService *service.RequestService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requestService *service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

// CreateRequestBody is the HTTP request body for creating a service request.
type CreateRequestBody struct {
	PatientID           string   `json:"patient_id"`
	ServiceType         string   `json:"service_type"`
	ScheduledAt         string   `json:"scheduled_at"` // RFC 3339
	DurationHours       float64  `json:"duration_hours"`
	Address             string   `json:"address,omitempty"`
	Lat                 *float64 `json:"lat"`
	Lng                 *float64 `json:"lng"`
	SpecialRequirements string   `json:"special_requirements,omitempty"`
	Urgent              bool     `json:"urgent,omitempty"`
}

// CancelRequestBody is the HTTP request body for cancelling a request.
type CancelRequestBody struct {
	Note string `json:"note,omitempty"`
}

// StartVisitBody is the HTTP request body for starting a visit.
type StartVisitBody struct {
	NurseID string `json:"nurse_id"`
}

// ReviewBody is the HTTP request body for reviewing a completed visit.
type ReviewBody struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// CandidateResponse is a matched nurse as presented to the patient.
type CandidateResponse struct {
	NurseID       string  `json:"nurse_id"`
	Name          string  `json:"name"`
	AvatarURL     string  `json:"avatar_url,omitempty"`
	Specialty     string  `json:"specialty,omitempty"`
	Score         int     `json:"score"`
	EstimatedCost float64 `json:"estimated_cost"`
	DistanceKm    float64 `json:"distance_km"`
	Rating        float64 `json:"rating"`
}

// RequestResponse is the HTTP response for service request data.
type RequestResponse struct {
	ID               string              `json:"id"`
	PatientID        string              `json:"patient_id"`
	PatientName      string              `json:"patient_name,omitempty"`
	ServiceType      string              `json:"service_type"`
	ScheduledAt      string              `json:"scheduled_at"`
	DurationHours    float64             `json:"duration_hours"`
	Address          string              `json:"address,omitempty"`
	Urgent           bool                `json:"urgent,omitempty"`
	Status           string              `json:"status"`
	Candidates       []CandidateResponse `json:"candidates,omitempty"`
	PendingNurseIDs  []string            `json:"pending_nurse_ids,omitempty"`
	SelectedNurseID  string              `json:"selected_nurse_id,omitempty"`
	ResponseDeadline string              `json:"response_deadline,omitempty"`
	PlatformFee      float64             `json:"platform_fee"`
	NursePayout      float64             `json:"nurse_payout,omitempty"`
	Review           *ReviewBody         `json:"review,omitempty"`
	CreatedAt        string              `json:"created_at"`
	CancelledAt      string              `json:"cancelled_at,omitempty"`
	CancelNote       string              `json:"cancel_note,omitempty"`
}

// CreateRequestResponse is the HTTP response for creating a request.
type CreateRequestResponse struct {
	RequestResponse
	Offered  bool     `json:"offered"`
	Warnings []string `json:"warnings,omitempty"`
}

func candidateResponses(candidates []domain.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, CandidateResponse{
			NurseID:       c.NurseID,
			Name:          c.Name,
			AvatarURL:     c.AvatarURL,
			Specialty:     c.Specialty,
			Score:         c.Score,
			EstimatedCost: c.EstimatedCost,
			DistanceKm:    c.DistanceKm,
			Rating:        c.Rating,
		})
	}
	return out
}

func requestResponse(req *domain.ServiceRequest) RequestResponse {
	response := RequestResponse{
		ID:              req.ID,
		PatientID:       req.PatientID,
		PatientName:     req.PatientName,
		ServiceType:     req.Details.ServiceType,
		ScheduledAt:     req.Details.ScheduledAt.Format(time.RFC3339),
		DurationHours:   req.Details.DurationHours,
		Address:         req.Details.Address,
		Urgent:          req.Details.Urgent,
		Status:          string(req.Status),
		Candidates:      candidateResponses(req.Matching.Candidates),
		PendingNurseIDs: req.Matching.PendingNurseIDs,
		SelectedNurseID: req.Matching.SelectedNurseID,
		PlatformFee:     req.Payment.PlatformFee,
		NursePayout:     req.Payment.NursePayout,
		CreatedAt:       req.CreatedAt.Format(time.RFC3339),
	}

	if !req.Matching.ResponseDeadline.IsZero() {
		response.ResponseDeadline = req.Matching.ResponseDeadline.Format(time.RFC3339)
	}
	if req.Review != nil {
		response.Review = &ReviewBody{Rating: req.Review.Rating, Comment: req.Review.Comment}
	}
	if !req.CancelledAt.IsZero() {
		response.CancelledAt = req.CancelledAt.Format(time.RFC3339)
		response.CancelNote = req.CancelNote
	}

	return response
}

func createResponse(result *service.CreateRequestResult) CreateRequestResponse {
	return CreateRequestResponse{
		RequestResponse: requestResponse(result.Request),
		Offered:         result.Offered,
		Warnings:        result.Warnings,
	}
}

// Create handles POST /v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	var req CreateRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "scheduled_at must be RFC 3339"})
		return
	}

	// A body without both coordinates carries no location; the service
	// rejects that, rather than treating the zero value as a position.
	var location *domain.Location
	if req.Lat != nil && req.Lng != nil {
		location = &domain.Location{Lat: *req.Lat, Lng: *req.Lng}
	}

	result, err := h.requestService.CreateRequest(c.Request.Context(), service.CreateRequestInput{
		PatientID:           req.PatientID,
		ServiceType:         req.ServiceType,
		ScheduledAt:         scheduledAt,
		DurationHours:       req.DurationHours,
		Address:             req.Address,
		Location:            location,
		SpecialRequirements: req.SpecialRequirements,
		Urgent:              req.Urgent,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, createResponse(result))
}

// Get handles GET /v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	request, err := h.requestService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, requestResponse(request))
}

// List handles GET /v1/requests?patient_id=
func (h *RequestHandler) List(c *gin.Context) {
	requests, err := h.requestService.ListPatientRequests(c.Request.Context(), c.Query("patient_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		response = append(response, requestResponse(r))
	}

	respondJSON(c, http.StatusOK, response)
}

// Cancel handles POST /v1/requests/:id/cancel
func (h *RequestHandler) Cancel(c *gin.Context) {
	// Cancellation without a note is allowed; an empty body is fine.
	var req CancelRequestBody
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.requestService.Cancel(c.Request.Context(), c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, requestResponse(request))
}

// Start handles POST /v1/requests/:id/start
func (h *RequestHandler) Start(c *gin.Context) {
	var req StartVisitBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.requestService.StartVisit(c.Request.Context(), c.Param("id"), req.NurseID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, requestResponse(request))
}

// Complete handles POST /v1/requests/:id/complete
func (h *RequestHandler) Complete(c *gin.Context) {
	request, err := h.requestService.CompleteVisit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, requestResponse(request))
}

// Review handles POST /v1/requests/:id/review
func (h *RequestHandler) Review(c *gin.Context) {
	var req ReviewBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.requestService.AddReview(c.Request.Context(), c.Param("id"), req.Rating, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, requestResponse(request))
}

// Rematch handles POST /v1/requests/:id/rematch
func (h *RequestHandler) Rematch(c *gin.Context) {
	result, err := h.requestService.Rematch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, createResponse(result))
}
