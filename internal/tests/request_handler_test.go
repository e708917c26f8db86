package tests

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"homecare/internal/handler"
)

// ──────────────────────────────────────────────
// REQUEST HANDLER BINDING
// ──────────────────────────────────────────────

func init() {
	gin.SetMode(gin.TestMode)
}

func newRequestRouter(f *creationFixture) *gin.Engine {
	router := gin.New()
	h := handler.NewRequestHandler(f.svc)
	router.POST("/v1/requests", h.Create)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// A body that omits lat/lng must be rejected, not read as (0, 0).
func TestCreateHandler_MissingCoordinatesRejected(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(1)
	f.addOnlineNurse("n1", 40.0, -74.0)
	router := newRequestRouter(f)

	cases := []struct {
		name string
		body string
	}{
		{"no coordinates", `{"patient_id":"patient-1","service_type":"elderly-care","scheduled_at":"2099-01-02T10:00:00Z","duration_hours":2}`},
		{"latitude only", `{"patient_id":"patient-1","service_type":"elderly-care","scheduled_at":"2099-01-02T10:00:00Z","duration_hours":2,"lat":40.0}`},
		{"longitude only", `{"patient_id":"patient-1","service_type":"elderly-care","scheduled_at":"2099-01-02T10:00:00Z","duration_hours":2,"lng":-74.0}`},
	}
	for _, tc := range cases {
		rec := postJSON(t, router, "/v1/requests", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400, body %s", tc.name, rec.Code, rec.Body.String())
		}
	}

	if f.requestRepo.CountRequests() != 0 {
		t.Error("a request without a location must not be persisted")
	}
}

// Explicit coordinates, including a literal (0, 0), are a position.
func TestCreateHandler_ExplicitCoordinatesAccepted(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(1)
	f.addOnlineNurse("n1", 40.0, -74.0)
	router := newRequestRouter(f)

	body := `{"patient_id":"patient-1","service_type":"elderly-care","scheduled_at":"2099-01-02T10:00:00Z","duration_hours":2,"lat":40.0,"lng":-74.0}`
	rec := postJSON(t, router, "/v1/requests", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	if f.requestRepo.CountRequests() != 1 {
		t.Error("valid request must be persisted")
	}
}
