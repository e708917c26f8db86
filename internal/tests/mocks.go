package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"homecare/internal/domain"
	"homecare/internal/redis"
	"homecare/internal/repository"
	"homecare/internal/service"
)

// ──────────────────────────────────────────────
// MOCK NURSE REPOSITORY
// ──────────────────────────────────────────────

// MockNurseRepository is a mock implementation of NurseRepository.
type MockNurseRepository struct {
	mu     sync.RWMutex
	nurses map[string]*domain.Nurse

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32

	// Error injection
	CreateError       error
	GetAllError       error
	UpdateStatusError error
}

// NewMockNurseRepository creates a new mock nurse repository.
func NewMockNurseRepository() *MockNurseRepository {
	return &MockNurseRepository{
		nurses: make(map[string]*domain.Nurse),
	}
}

// AddNurse adds a nurse to the mock repository.
func (m *MockNurseRepository) AddNurse(nurse *domain.Nurse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nurses[nurse.ID] = nurse
}

func (m *MockNurseRepository) Create(ctx context.Context, nurse *domain.Nurse) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nurses[nurse.ID] = nurse
	return nil
}

func (m *MockNurseRepository) GetByID(ctx context.Context, id string) (*domain.Nurse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nurse, ok := m.nurses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *nurse
	return &copy, nil
}

func (m *MockNurseRepository) GetByPhone(ctx context.Context, phone string) (*domain.Nurse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.nurses {
		if n.Phone == phone {
			copy := *n
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockNurseRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Nurse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Nurse, 0, len(ids))
	for _, id := range ids {
		if n, ok := m.nurses[id]; ok {
			copy := *n
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockNurseRepository) GetAll(ctx context.Context) ([]*domain.Nurse, error) {
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Nurse, 0, len(m.nurses))
	for _, n := range m.nurses {
		copy := *n
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockNurseRepository) UpdateStatus(ctx context.Context, id string, status domain.NurseStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	nurse, ok := m.nurses[id]
	if !ok {
		return repository.ErrNotFound
	}
	nurse.Status = status
	return nil
}

func (m *MockNurseRepository) UpdateLocation(ctx context.Context, id string, loc domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	nurse, ok := m.nurses[id]
	if !ok {
		return repository.ErrNotFound
	}
	nurse.Location = &domain.Location{Lat: loc.Lat, Lng: loc.Lng}
	return nil
}

// GetNurse returns the nurse by ID for test assertions.
func (m *MockNurseRepository) GetNurse(id string) *domain.Nurse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nurses[id]
}

// ──────────────────────────────────────────────
// MOCK PATIENT REPOSITORY
// ──────────────────────────────────────────────

// MockPatientRepository is a mock implementation of PatientRepository.
type MockPatientRepository struct {
	mu       sync.RWMutex
	patients map[string]*domain.Patient

	// Counters for verification
	CreateCallCount int32

	// Error injection
	CreateError error
}

// NewMockPatientRepository creates a new mock patient repository.
func NewMockPatientRepository() *MockPatientRepository {
	return &MockPatientRepository{
		patients: make(map[string]*domain.Patient),
	}
}

// AddPatient adds a patient to the mock repository.
func (m *MockPatientRepository) AddPatient(patient *domain.Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[patient.ID] = patient
}

func (m *MockPatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[patient.ID] = patient
	return nil
}

func (m *MockPatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	patient, ok := m.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *patient
	return &copy, nil
}

func (m *MockPatientRepository) UpdatePreferences(ctx context.Context, id string, prefs domain.MatchPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	patient, ok := m.patients[id]
	if !ok {
		return repository.ErrNotFound
	}
	patient.Preferences = prefs
	return nil
}

// ──────────────────────────────────────────────
// MOCK REQUEST REPOSITORY
// ──────────────────────────────────────────────

// MockRequestRepository is a mock implementation of RequestRepository.
// UpdateIfStatus is compare-and-swap faithful: the status check and the
// write happen under one lock, matching the conditional UPDATE the real
// repository issues.
type MockRequestRepository struct {
	mu       sync.Mutex
	requests map[string]*domain.ServiceRequest

	// Counters for verification
	CreateCallCount         int32
	UpdateCallCount         int32
	UpdateIfStatusCallCount int32

	// Error injection
	CreateError         error
	UpdateError         error
	UpdateIfStatusError error
}

// NewMockRequestRepository creates a new mock request repository.
func NewMockRequestRepository() *MockRequestRepository {
	return &MockRequestRepository{
		requests: make(map[string]*domain.ServiceRequest),
	}
}

// AddRequest adds a request to the mock repository.
func (m *MockRequestRepository) AddRequest(req *domain.ServiceRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = cloneRequest(req)
}

func (m *MockRequestRepository) Create(ctx context.Context, req *domain.ServiceRequest) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (m *MockRequestRepository) ListByPatient(ctx context.Context, patientID string) ([]*domain.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.ServiceRequest, 0)
	for _, r := range m.requests {
		if r.PatientID == patientID {
			result = append(result, cloneRequest(r))
		}
	}
	// Newest first.
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].CreatedAt.After(result[i].CreatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (m *MockRequestRepository) Update(ctx context.Context, req *domain.ServiceRequest) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; !ok {
		return repository.ErrNotFound
	}
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

func (m *MockRequestRepository) UpdateIfStatus(ctx context.Context, req *domain.ServiceRequest, expected domain.RequestStatus) error {
	atomic.AddInt32(&m.UpdateIfStatusCallCount, 1)
	if m.UpdateIfStatusError != nil {
		return m.UpdateIfStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[req.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expected {
		return repository.ErrStaleState
	}
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

// GetRequest returns the stored request for test assertions.
func (m *MockRequestRepository) GetRequest(id string) *domain.ServiceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil
	}
	return cloneRequest(req)
}

// CountRequests returns the number of stored requests.
func (m *MockRequestRepository) CountRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// cloneRequest deep-copies the slices a test might mutate.
func cloneRequest(req *domain.ServiceRequest) *domain.ServiceRequest {
	copy := *req
	copy.Matching.Candidates = append([]domain.Candidate(nil), req.Matching.Candidates...)
	copy.Matching.PendingNurseIDs = append([]string(nil), req.Matching.PendingNurseIDs...)
	copy.Matching.DeclinedNurseIDs = append([]string(nil), req.Matching.DeclinedNurseIDs...)
	if req.Review != nil {
		review := *req.Review
		copy.Review = &review
	}
	return &copy
}

// ──────────────────────────────────────────────
// MOCK PRESENCE STORE
// ──────────────────────────────────────────────

// MockPresenceStore is a mock implementation of PresenceStore.
type MockPresenceStore struct {
	mu        sync.RWMutex
	locations []redis.NurseLocation

	// Counters
	UpdateLocationCallCount int32

	// Error injection
	UpdateLocationError   error
	FindNearbyNursesError error
}

// NewMockPresenceStore creates a new mock presence store.
func NewMockPresenceStore() *MockPresenceStore {
	return &MockPresenceStore{
		locations: make([]redis.NurseLocation, 0),
	}
}

// AddNurseLocation adds a nurse location to the mock store.
func (m *MockPresenceStore) AddNurseLocation(loc redis.NurseLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, loc)
}

func (m *MockPresenceStore) UpdateLocation(ctx context.Context, nurseID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.NurseID == nurseID {
			m.locations[i].Lat = lat
			m.locations[i].Lng = lng
			return nil
		}
	}
	m.locations = append(m.locations, redis.NurseLocation{
		NurseID: nurseID,
		Lat:     lat,
		Lng:     lng,
	})
	return nil
}

func (m *MockPresenceStore) FindNearbyNurses(ctx context.Context, lat, lng, radiusKm float64) ([]redis.NurseLocation, error) {
	if m.FindNearbyNursesError != nil {
		return nil, m.FindNearbyNursesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Return all locations (mock doesn't do real geo filtering).
	result := make([]redis.NurseLocation, len(m.locations))
	copy(result, m.locations)
	return result, nil
}

func (m *MockPresenceStore) RemoveLocation(ctx context.Context, nurseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.NurseID == nurseID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// HasLocation checks if a nurse location exists.
func (m *MockPresenceStore) HasLocation(nurseID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations {
		if loc.NurseID == nurseID {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireRequestLock(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:request:" + requestID
	if expiry, exists := m.locks[key]; exists {
		if time.Now().Before(expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseRequestLock(ctx context.Context, requestID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:request:"+requestID)
	return nil
}

// IsLocked checks if a request is locked (for test assertions).
func (m *MockLockStore) IsLocked(requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:request:"+requestID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// SentNotification records one delivery attempt for assertions.
type SentNotification struct {
	Kind        service.NotificationKind
	RecipientID string
	RequestID   string
}

// MockNotifier is a mock implementation of the notifier.
type MockNotifier struct {
	mu   sync.Mutex
	sent []SentNotification

	// Control behavior
	FailDelivery bool
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) record(kind service.NotificationKind, recipientID, requestID string) service.NotifyResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentNotification{Kind: kind, RecipientID: recipientID, RequestID: requestID})
	if m.FailDelivery {
		return service.NotifyResult{Success: false, Message: "mock delivery failure"}
	}
	return service.NotifyResult{Success: true, Message: "delivered"}
}

func (m *MockNotifier) NotifyNewOffer(ctx context.Context, nurseID string, req *domain.ServiceRequest, estimatedCost float64) service.NotifyResult {
	return m.record(service.NotificationNewOffer, nurseID, req.ID)
}

func (m *MockNotifier) NotifyRequestConfirmed(ctx context.Context, req *domain.ServiceRequest, nurseName string) service.NotifyResult {
	return m.record(service.NotificationRequestConfirmed, req.PatientID, req.ID)
}

func (m *MockNotifier) NotifyRequestDeclined(ctx context.Context, req *domain.ServiceRequest, reason string) service.NotifyResult {
	return m.record(service.NotificationRequestDeclined, req.PatientID, req.ID)
}

func (m *MockNotifier) NotifyEnRoute(ctx context.Context, req *domain.ServiceRequest, nurseName string) service.NotifyResult {
	return m.record(service.NotificationEnRoute, req.PatientID, req.ID)
}

func (m *MockNotifier) NotifyVisitCompleted(ctx context.Context, req *domain.ServiceRequest) service.NotifyResult {
	return m.record(service.NotificationConfirmation, req.PatientID, req.ID)
}

// Sent returns a copy of the recorded notifications.
func (m *MockNotifier) Sent() []SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]SentNotification, len(m.sent))
	copy(result, m.sent)
	return result
}

// CountKind counts recorded notifications of a kind.
func (m *MockNotifier) CountKind(kind service.NotificationKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.sent {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)
