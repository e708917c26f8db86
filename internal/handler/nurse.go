package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"homecare/internal/domain"
	"homecare/internal/repository"
	"homecare/internal/service"
)

// NurseHandler handles HTTP requests for nurses.
type NurseHandler struct {
	nurseService   *service.NurseService
	requestService *service.RequestService
	nurseRepo      repository.NurseRepository
}

// NewNurseHandler creates a new NurseHandler.
func NewNurseHandler(nurseService *service.NurseService, requestService *service.RequestService, nurseRepo repository.NurseRepository) *NurseHandler {
	return &NurseHandler{
		nurseService:   nurseService,
		requestService: requestService,
		nurseRepo:      nurseRepo,
	}
}

// RegisterNurseRequest is the HTTP request body for nurse registration.
type RegisterNurseRequest struct {
	Name            string             `json:"name"`
	Phone           string             `json:"phone"`
	AvatarURL       string             `json:"avatar_url,omitempty"`
	Specialties     []string           `json:"specialties"`
	HourlyRate      float64            `json:"hourly_rate"`
	SpecialtyRates  map[string]float64 `json:"specialty_rates,omitempty"`
	ServiceRadiusKm float64            `json:"service_radius_km,omitempty"`
}

// NurseResponse is the HTTP response for nurse data.
type NurseResponse struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Phone           string             `json:"phone"`
	AvatarURL       string             `json:"avatar_url,omitempty"`
	Status          string             `json:"status"`
	Specialties     []string           `json:"specialties"`
	HourlyRate      float64            `json:"hourly_rate"`
	SpecialtyRates  map[string]float64 `json:"specialty_rates,omitempty"`
	Rating          float64            `json:"rating"`
	TotalBookings   int                `json:"total_bookings"`
	ServiceRadiusKm float64            `json:"service_radius_km,omitempty"`
}

// UpdateLocationRequest is the HTTP request body for location updates.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RespondRequest is the HTTP request body for responding to an offer.
type RespondRequest struct {
	RequestID string `json:"request_id"`
	Accept    bool   `json:"accept"`
}

func nurseResponse(n *domain.Nurse) NurseResponse {
	return NurseResponse{
		ID:              n.ID,
		Name:            n.Name,
		Phone:           n.Phone,
		AvatarURL:       n.AvatarURL,
		Status:          string(n.Status),
		Specialties:     n.Specialties,
		HourlyRate:      n.HourlyRate,
		SpecialtyRates:  n.SpecialtyRates,
		Rating:          n.Stats.Rating,
		TotalBookings:   n.Stats.TotalBookings,
		ServiceRadiusKm: n.ServiceRadiusKm,
	}
}

// Register handles POST /v1/nurses/register
func (h *NurseHandler) Register(c *gin.Context) {
	var req RegisterNurseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}
	if req.HourlyRate <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hourly_rate must be positive"})
		return
	}

	existing, err := h.nurseRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Nurse already registered",
			"nurse":   nurseResponse(existing),
		})
		return
	}

	nurse := &domain.Nurse{
		ID:              uuid.New().String(),
		Name:            req.Name,
		Phone:           req.Phone,
		AvatarURL:       req.AvatarURL,
		Status:          domain.NurseStatusOffline,
		Specialties:     req.Specialties,
		HourlyRate:      req.HourlyRate,
		SpecialtyRates:  req.SpecialtyRates,
		ServiceRadiusKm: req.ServiceRadiusKm,
	}

	if err := h.nurseRepo.Create(c.Request.Context(), nurse); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, nurseResponse(nurse))
}

// GetAll handles GET /v1/nurses
func (h *NurseHandler) GetAll(c *gin.Context) {
	nurses, err := h.nurseRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	var response []NurseResponse
	for _, n := range nurses {
		response = append(response, nurseResponse(n))
	}

	c.JSON(http.StatusOK, response)
}

// UpdateLocation handles POST /v1/nurses/:id/location
func (h *NurseHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.nurseService.UpdateLocation(c.Request.Context(), service.UpdateLocationInput{
		NurseID: c.Param("id"),
		Lat:     req.Lat,
		Lng:     req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// SetOffline handles POST /v1/nurses/:id/offline
func (h *NurseHandler) SetOffline(c *gin.Context) {
	if err := h.nurseService.SetOffline(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// Respond handles POST /v1/nurses/:id/respond
func (h *NurseHandler) Respond(c *gin.Context) {
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.requestService.Respond(c.Request.Context(), req.RequestID, c.Param("id"), req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, requestResponse(request))
}
