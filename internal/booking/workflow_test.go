package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"hostellite/internal/domain"
	"hostellite/internal/events"
	"hostellite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOnlineBookingHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := scenarioA(t, models.PaymentOnline)
	session := readySession(t)

	h.api.On("CreateBooking", mock.Anything, mock.MatchedBy(func(r models.CreateBookingRequest) bool {
		return r.PaymentStatus == models.PaymentPending && r.Amount == 10000 && r.SeatsBooked == 1 &&
			r.RoomID == "r1" && r.HostelID == "h1" && r.PaymentMethod == models.PaymentOnline
	})).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, 10000.0, "h1", "r1", 1).Return(session, nil).Once()
	h.gateway.On("PresentPaymentUI", mock.Anything, mock.Anything).
		Return(models.PaymentOutcome{Status: models.OutcomeSuccess, PaymentIntentID: "pi_1"}, nil).Once()
	h.api.On("ConfirmBooking", mock.Anything, mock.MatchedBy(func(r models.ConfirmBookingRequest) bool {
		return r.BookingID == "b1" && r.PaymentIntentID == "pi_1" && r.Amount == 10000 &&
			r.CheckOutDate.Equal(day(2024, 3, 15))
	})).Return(&models.Booking{ID: "b1", Status: models.StatusConfirmed}, nil).Once()

	w := h.orch.NewWorkflow()
	assert.IsType(t, Idle{}, w.State())

	st, err := w.Reserve(ctx, req)
	require.NoError(t, err)
	ready, ok := st.(ReadyForPayment)
	require.True(t, ok, "got %T", st)
	assert.Equal(t, "pi_1", ready.Session.ID())
	assert.Equal(t, "b1", ready.Booking.ID)

	st, err = w.Pay(ctx)
	require.NoError(t, err)
	done, ok := st.(Completed)
	require.True(t, ok, "got %T", st)
	assert.Equal(t, models.StatusConfirmed, done.Booking.Status)
	assert.Equal(t, models.PaymentCompleted, done.Booking.PaymentStatus)
	assert.Equal(t, "pi_1", done.PaymentIntentID)

	h.api.AssertExpectations(t)
	h.gateway.AssertExpectations(t)
	h.ledger.AssertNotCalled(t, "RecordFailedConfirmation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []string{
		events.EventBookingCreated,
		events.EventPaymentSessionOpened,
		events.EventBookingCompleted,
	}, h.events.Types())
}

func TestSessionCreatedOncePerBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(readySession(t), nil).Once()

	w := h.orch.NewWorkflow()
	_, err := w.Reserve(ctx, scenarioA(t, models.PaymentOnline))
	require.NoError(t, err)

	_, err = w.Reserve(ctx, scenarioA(t, models.PaymentOnline))
	assert.ErrorIs(t, err, domain.ErrWorkflowFinished)
	h.gateway.AssertNumberOfCalls(t, "CreatePaymentSession", 1)
	h.api.AssertNumberOfCalls(t, "CreateBooking", 1)
}

func TestPayBeforeSessionIsRejected(t *testing.T) {
	h := newHarness(t)
	w := h.orch.NewWorkflow()

	st, err := w.Pay(context.Background())
	assert.ErrorIs(t, err, domain.ErrPaymentNotReady)
	assert.IsType(t, Idle{}, st)
	h.gateway.AssertNotCalled(t, "PresentPaymentUI", mock.Anything, mock.Anything)
}

func TestPayWhileReserveRunningIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	release := make(chan struct{})
	entered := make(chan struct{})

	h.api.On("CreateBooking", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(entered); <-release }).
		Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(readySession(t), nil).Once()

	w := h.orch.NewWorkflow()
	done := make(chan error, 1)
	go func() {
		_, err := w.Reserve(ctx, scenarioA(t, models.PaymentOnline))
		done <- err
	}()

	<-entered
	assert.IsType(t, CreatingBooking{}, w.State())
	_, err := w.Pay(ctx)
	assert.ErrorIs(t, err, domain.ErrPaymentNotReady)
	_, err = w.Cancel(ctx)
	assert.ErrorIs(t, err, domain.ErrWorkflowBusy)

	close(release)
	require.NoError(t, <-done)
	assert.IsType(t, ReadyForPayment{}, w.State())
	h.gateway.AssertNotCalled(t, "PresentPaymentUI", mock.Anything, mock.Anything)
}

// Scenario C: booking created, payment session fails on the network.
func TestScenarioCPaymentInitNetworkFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.PaymentSession{}, domain.PaymentInitError{Err: domain.NetworkError{Op: "POST /payment/create-payment-intent", Err: errors.New("connection reset")}}).Once()

	w := h.orch.NewWorkflow()
	st, err := w.Reserve(ctx, scenarioA(t, models.PaymentOnline))
	require.Error(t, err)
	assert.True(t, domain.IsNetwork(err))

	failed, ok := st.(Failed)
	require.True(t, ok, "got %T", st)
	assert.Equal(t, StageAwaitingPaymentInit, failed.Stage)
	assert.True(t, failed.Retryable())
	assert.False(t, failed.Critical())
	require.NotNil(t, failed.Booking)
	assert.Equal(t, models.StatusPending, failed.Booking.Status)
	assert.NotEmpty(t, failed.Message)

	_, err = w.Pay(ctx)
	assert.ErrorIs(t, err, domain.ErrPaymentNotReady)

	h.api.AssertNotCalled(t, "ConfirmBooking", mock.Anything, mock.Anything)
	h.api.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything)
	h.gateway.AssertNotCalled(t, "PresentPaymentUI", mock.Anything, mock.Anything)
	assert.Equal(t, 0, h.session.cleared)
}

// Scenario D: the user backs out of the payment sheet.
func TestScenarioDUserCancelsPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(readySession(t), nil).Once()
	h.gateway.On("PresentPaymentUI", mock.Anything, mock.Anything).
		Return(models.PaymentOutcome{Status: models.OutcomeCancelled}, nil).Once()

	st, err := h.orch.Run(ctx, scenarioA(t, models.PaymentOnline))
	require.NoError(t, err)
	cancelled, ok := st.(CancelledByUser)
	require.True(t, ok, "got %T", st)
	assert.Equal(t, models.StatusPending, cancelled.Booking.Status)
	assert.True(t, st.Terminal())

	h.api.AssertNotCalled(t, "ConfirmBooking", mock.Anything, mock.Anything)
	h.api.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything)
	assert.Contains(t, h.events.Types(), events.EventBookingLeftPending)
}

func TestCancelBeforePayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(readySession(t), nil).Once()

	w := h.orch.NewWorkflow()
	_, err := w.Cancel(ctx)
	assert.ErrorIs(t, err, domain.ErrWorkflowFinished)

	_, err = w.Reserve(ctx, scenarioA(t, models.PaymentOnline))
	require.NoError(t, err)

	st, err := w.Cancel(ctx)
	require.NoError(t, err)
	assert.IsType(t, CancelledByUser{}, st)

	_, err = w.Pay(ctx)
	assert.ErrorIs(t, err, domain.ErrPaymentNotReady)
	h.api.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything)
	h.gateway.AssertNotCalled(t, "PresentPaymentUI", mock.Anything, mock.Anything)
}

func TestCashBookingSkipsPaymentSession(t *testing.T) {
	h := newHarness(t)

	h.api.On("CreateBooking", mock.Anything, mock.MatchedBy(func(r models.CreateBookingRequest) bool {
		return r.PaymentMethod == models.PaymentCash && r.PaymentStatus == models.PaymentPending
	})).Return(pendingBooking(), nil).Once()

	st, err := h.orch.Run(context.Background(), scenarioA(t, models.PaymentCash))
	require.NoError(t, err)
	done, ok := st.(Completed)
	require.True(t, ok, "got %T", st)
	assert.Equal(t, models.PaymentPending, done.Booking.PaymentStatus)
	assert.Empty(t, done.PaymentIntentID)

	h.gateway.AssertNotCalled(t, "CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	h.gateway.AssertNotCalled(t, "PresentPaymentUI", mock.Anything, mock.Anything)
	h.api.AssertNotCalled(t, "ConfirmBooking", mock.Anything, mock.Anything)
}

func TestConfirmationNetworkFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cause := domain.NetworkError{Op: "POST /payment/payment-success", Err: context.DeadlineExceeded}

	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(readySession(t), nil).Once()
	h.gateway.On("PresentPaymentUI", mock.Anything, mock.Anything).
		Return(models.PaymentOutcome{Status: models.OutcomeSuccess, PaymentIntentID: "pi_1"}, nil).Once()
	h.api.On("ConfirmBooking", mock.Anything, mock.Anything).Return(nil, cause).Once()
	h.ledger.On("RecordFailedConfirmation", mock.Anything, mock.MatchedBy(func(r models.ConfirmBookingRequest) bool {
		return r.BookingID == "b1" && r.PaymentIntentID == "pi_1"
	}), true, cause).Return(int64(1), nil).Once()

	w := h.orch.NewWorkflow()
	_, err := w.Reserve(ctx, scenarioA(t, models.PaymentOnline))
	require.NoError(t, err)

	st, err := w.Pay(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsConfirmation(err))
	assert.True(t, domain.IsNetwork(err))

	failed, ok := st.(Failed)
	require.True(t, ok, "got %T", st)
	assert.Equal(t, StageConfirming, failed.Stage)
	assert.True(t, failed.Critical())
	assert.False(t, failed.Retryable())
	assert.Contains(t, failed.Message, "pi_1")

	_, err = w.Pay(ctx)
	assert.ErrorIs(t, err, domain.ErrPaymentNotReady)

	h.api.AssertNumberOfCalls(t, "ConfirmBooking", 1)
	h.ledger.AssertExpectations(t)
	assert.Contains(t, h.events.Types(), events.EventConfirmationFailed)
}

func TestConfirmationRejectedIsNotRetryable(t *testing.T) {
	h := newHarness(t)
	rejection := domain.ConfirmationError{BookingID: "b1", PaymentIntentID: "pi_1", Msg: "payment not captured"}

	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(readySession(t), nil).Once()
	h.gateway.On("PresentPaymentUI", mock.Anything, mock.Anything).
		Return(models.PaymentOutcome{Status: models.OutcomeSuccess}, nil).Once()
	h.api.On("ConfirmBooking", mock.Anything, mock.MatchedBy(func(r models.ConfirmBookingRequest) bool {
		return r.PaymentIntentID == "pi_1"
	})).Return(nil, rejection).Once()
	h.ledger.On("RecordFailedConfirmation", mock.Anything, mock.Anything, false, rejection).Return(int64(2), nil).Once()

	st, err := h.orch.Run(context.Background(), scenarioA(t, models.PaymentOnline))
	assert.Equal(t, rejection, err)
	assert.True(t, st.(Failed).Critical())
	h.ledger.AssertExpectations(t)
}

func TestPaymentErrorOutcome(t *testing.T) {
	h := newHarness(t)

	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(readySession(t), nil).Once()
	h.gateway.On("PresentPaymentUI", mock.Anything, mock.Anything).
		Return(models.PaymentOutcome{Status: models.OutcomeError, Message: "Your card was declined."}, nil).Once()

	st, err := h.orch.Run(context.Background(), scenarioA(t, models.PaymentOnline))
	assert.True(t, domain.IsPayment(err))
	failed := st.(Failed)
	assert.Equal(t, StagePaymentInProgress, failed.Stage)
	assert.Equal(t, "Payment failed: Your card was declined.", failed.Message)
	h.api.AssertNotCalled(t, "ConfirmBooking", mock.Anything, mock.Anything)
}

func TestAuthErrorClearsSession(t *testing.T) {
	h := newHarness(t)

	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, domain.AuthError{Msg: "jwt expired"}).Once()

	st, err := h.orch.Run(context.Background(), scenarioA(t, models.PaymentOnline))
	assert.True(t, domain.IsAuth(err))
	failed := st.(Failed)
	assert.Equal(t, StageCreatingBooking, failed.Stage)
	assert.Nil(t, failed.Booking)
	assert.Equal(t, 1, h.session.cleared)
	h.gateway.AssertNotCalled(t, "CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidationFailureNotRetryable(t *testing.T) {
	h := newHarness(t)
	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, domain.ValidationError{Msg: "Not enough beds"}).Once()

	st, err := h.orch.Run(context.Background(), scenarioA(t, models.PaymentOnline))
	assert.True(t, domain.IsValidation(err))
	assert.False(t, st.(Failed).Retryable())
}

func TestStepsRunUnderTimeout(t *testing.T) {
	h := newHarness(t)

	h.api.On("CreateBooking", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= time.Second
	}), mock.Anything).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(readySession(t), nil).Once()

	_, err := h.orch.NewWorkflow().Reserve(context.Background(), scenarioA(t, models.PaymentOnline))
	require.NoError(t, err)
	h.api.AssertExpectations(t)
	h.gateway.AssertExpectations(t)
}

func TestConcurrentPayOnlyPresentsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	release := make(chan struct{})
	entered := make(chan struct{})

	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(pendingBooking(), nil).Once()
	h.gateway.On("CreatePaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(readySession(t), nil).Once()
	h.gateway.On("PresentPaymentUI", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(entered); <-release }).
		Return(models.PaymentOutcome{Status: models.OutcomeSuccess}, nil).Once()
	h.api.On("ConfirmBooking", mock.Anything, mock.Anything).Return(&models.Booking{ID: "b1", Status: models.StatusConfirmed}, nil).Once()

	w := h.orch.NewWorkflow()
	_, err := w.Reserve(ctx, scenarioA(t, models.PaymentOnline))
	require.NoError(t, err)

	done := make(chan State, 1)
	go func() {
		st, _ := w.Pay(ctx)
		done <- st
	}()

	<-entered
	assert.IsType(t, PaymentInProgress{}, w.State())
	_, err = w.Pay(ctx)
	assert.ErrorIs(t, err, domain.ErrPaymentNotReady)

	close(release)
	assert.IsType(t, Completed{}, <-done)
	h.gateway.AssertNumberOfCalls(t, "PresentPaymentUI", 1)
	h.api.AssertNumberOfCalls(t, "ConfirmBooking", 1)
}

func TestFailedEventCarriesError(t *testing.T) {
	h := newHarness(t)
	h.api.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, domain.ServerError{StatusCode: 503}).Once()

	_, err := h.orch.Run(context.Background(), scenarioA(t, models.PaymentOnline))
	require.Error(t, err)

	payload := h.events.last[events.EventWorkflowFailed]
	assert.Equal(t, StageFailed, payload.State)
	assert.Contains(t, payload.Error, "503")
	assert.NotEmpty(t, payload.WorkflowID)
}
