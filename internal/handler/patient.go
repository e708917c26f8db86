package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"homecare/internal/domain"
	"homecare/internal/repository"
)

// PatientHandler handles HTTP requests for patients.
type PatientHandler struct {
	patientRepo repository.PatientRepository
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(patientRepo repository.PatientRepository) *PatientHandler {
	return &PatientHandler{patientRepo: patientRepo}
}

// RegisterPatientRequest is the HTTP request body for patient registration.
type RegisterPatientRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// PreferencesPayload carries matching preferences over the wire.
// Absent fields mean "no constraint".
type PreferencesPayload struct {
	MaxDistanceKm        *float64 `json:"max_distance_km,omitempty"`
	PriceMin             *float64 `json:"price_min,omitempty"`
	PriceMax             *float64 `json:"price_max,omitempty"`
	PreferredSpecialties []string `json:"preferred_specialties,omitempty"`
}

// PatientResponse is the HTTP response for patient data.
type PatientResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Phone       string             `json:"phone"`
	Email       string             `json:"email,omitempty"`
	Preferences PreferencesPayload `json:"preferences"`
}

func preferencesPayload(p domain.MatchPreferences) PreferencesPayload {
	return PreferencesPayload{
		MaxDistanceKm:        p.MaxDistanceKm,
		PriceMin:             p.PriceMin,
		PriceMax:             p.PriceMax,
		PreferredSpecialties: p.PreferredSpecialties,
	}
}

func patientResponse(p *domain.Patient) PatientResponse {
	return PatientResponse{
		ID:          p.ID,
		Name:        p.Name,
		Phone:       p.Phone,
		Email:       p.Email,
		Preferences: preferencesPayload(p.Preferences),
	}
}

// Register handles POST /v1/patients/register
func (h *PatientHandler) Register(c *gin.Context) {
	var req RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}

	patient := &domain.Patient{
		ID:    uuid.New().String(),
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	}

	if err := h.patientRepo.Create(c.Request.Context(), patient); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, patientResponse(patient))
}

// Get handles GET /v1/patients/:id
func (h *PatientHandler) Get(c *gin.Context) {
	patient, err := h.patientRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, patientResponse(patient))
}

// UpdatePreferences handles PUT /v1/patients/:id/preferences
func (h *PatientHandler) UpdatePreferences(c *gin.Context) {
	var req PreferencesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.PriceMin != nil && req.PriceMax != nil && *req.PriceMin > *req.PriceMax {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "price_min must not exceed price_max"})
		return
	}
	if req.MaxDistanceKm != nil && *req.MaxDistanceKm <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "max_distance_km must be positive"})
		return
	}

	prefs := domain.MatchPreferences{
		MaxDistanceKm:        req.MaxDistanceKm,
		PriceMin:             req.PriceMin,
		PriceMax:             req.PriceMax,
		PreferredSpecialties: req.PreferredSpecialties,
	}

	id := c.Param("id")
	if err := h.patientRepo.UpdatePreferences(c.Request.Context(), id, prefs); err != nil {
		respondError(c, err)
		return
	}

	patient, err := h.patientRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, patientResponse(patient))
}
