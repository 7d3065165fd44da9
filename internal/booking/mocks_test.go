package booking

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"hostellite/internal/config"
	"hostellite/internal/events"
	"hostellite/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookingAPI struct {
	mock.Mock
}

func (m *mockBookingAPI) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingAPI) ConfirmBooking(ctx context.Context, req models.ConfirmBookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingAPI) CancelBooking(ctx context.Context, bookingID string) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

func (m *mockBookingAPI) ListUserBookings(ctx context.Context) ([]models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreatePaymentSession(ctx context.Context, amount float64, hostelID, roomID string, seats int) (models.PaymentSession, error) {
	args := m.Called(ctx, amount, hostelID, roomID, seats)
	return args.Get(0).(models.PaymentSession), args.Error(1)
}

func (m *mockGateway) PresentPaymentUI(ctx context.Context, session *models.PaymentSession) (models.PaymentOutcome, error) {
	args := m.Called(ctx, session)
	return args.Get(0).(models.PaymentOutcome), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) RecordFailedConfirmation(ctx context.Context, req models.ConfirmBookingRequest, retryable bool, cause error) (int64, error) {
	args := m.Called(ctx, req, retryable, cause)
	return args.Get(0).(int64), args.Error(1)
}

type fakeSession struct {
	mu      sync.Mutex
	cleared int
}

func (f *fakeSession) Token(ctx context.Context) (string, error) { return "tok", nil }

func (f *fakeSession) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

type recordedEvents struct {
	mu    sync.Mutex
	types []string
	last  map[string]events.WorkflowEventPayload
}

func recordAll(bus *events.EventBus) *recordedEvents {
	rec := &recordedEvents{last: make(map[string]events.WorkflowEventPayload)}
	for _, typ := range []string{
		events.EventBookingCreated,
		events.EventPaymentSessionOpened,
		events.EventBookingCompleted,
		events.EventBookingLeftPending,
		events.EventWorkflowFailed,
		events.EventConfirmationFailed,
	} {
		bus.Subscribe(typ, func(e *events.Event) error {
			var p events.WorkflowEventPayload
			_ = json.Unmarshal(e.Payload, &p)
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.types = append(rec.types, e.Type)
			rec.last[e.Type] = p
			return nil
		})
	}
	return rec
}

func (r *recordedEvents) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

type harness struct {
	api     *mockBookingAPI
	gateway *mockGateway
	ledger  *mockLedger
	session *fakeSession
	events  *recordedEvents
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		api:     new(mockBookingAPI),
		gateway: new(mockGateway),
		ledger:  new(mockLedger),
		session: &fakeSession{},
	}
	bus := events.NewEventBus()
	h.events = recordAll(bus)

	logger := zerolog.New(io.Discard)
	cfg := config.BookingConfig{MinimumStayMonths: 1, StepTimeout: time.Second, PaymentUITimeout: time.Second}
	h.orch = NewOrchestrator(h.api, h.gateway, h.session, cfg, &logger, WithLedger(h.ledger), WithEvents(bus))
	return h
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var testRoom = models.Room{ID: "r1", RoomNumber: "101", TotalBeds: 4, AvailableBeds: 2, PricePerBed: 5000}

// scenarioA is 5000 PKR per bed, one bed, 2024-01-15 to 2024-03-15.
func scenarioA(t *testing.T, method models.PaymentMethod) ReservationRequest {
	t.Helper()
	req, err := NewReservationRequest("h1", testRoom, day(2024, 1, 15), day(2024, 3, 15), 1, method, 1)
	require.NoError(t, err)
	return req
}

func readySession(t *testing.T) models.PaymentSession {
	t.Helper()
	s, err := models.NewPaymentSession("pi_1", "pi_1_secret", 1000000, "pkr")
	require.NoError(t, err)
	return s
}

func pendingBooking() *models.Booking {
	return &models.Booking{ID: "b1", Status: models.StatusPending, PaymentStatus: models.PaymentPending, SeatsBooked: 1, Amount: 10000}
}
