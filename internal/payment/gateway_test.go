package payment

import (
	"context"
	"errors"
	"io"
	"testing"

	"hostellite/internal/domain"
	"hostellite/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPaymentAPI struct {
	mock.Mock
}

func (m *mockPaymentAPI) CreatePaymentIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentIntentResponse), args.Error(1)
}

type mockPresenter struct {
	mock.Mock
}

func (m *mockPresenter) Present(ctx context.Context, session models.PaymentSession) (models.PaymentOutcome, error) {
	args := m.Called(ctx, session)
	return args.Get(0).(models.PaymentOutcome), args.Error(1)
}

func newTestGateway() (*Gateway, *mockPaymentAPI, *mockPresenter) {
	api := new(mockPaymentAPI)
	presenter := new(mockPresenter)
	logger := zerolog.New(io.Discard)
	return NewGateway(api, presenter, "PKR", &logger), api, presenter
}

func TestCreatePaymentSession(t *testing.T) {
	ctx := context.Background()

	t.Run("ConvertsToMinorUnits", func(t *testing.T) {
		g, api, _ := newTestGateway()
		api.On("CreatePaymentIntent", ctx, models.PaymentIntentRequest{
			Amount: 1000000, HostelID: "h1", RoomID: "r1", SeatsBooked: 1, Currency: "pkr",
		}).Return(&models.PaymentIntentResponse{ClientSecret: "pi_1_secret", PaymentIntentID: "pi_1"}, nil).Once()

		session, err := g.CreatePaymentSession(ctx, 10000, "h1", "r1", 1)
		require.NoError(t, err)
		assert.True(t, session.Ready())
		assert.Equal(t, "pi_1", session.ID())
		assert.Equal(t, int64(1000000), session.AmountMinor())
		api.AssertExpectations(t)
	})

	t.Run("RejectsNonPositiveAmount", func(t *testing.T) {
		g, api, _ := newTestGateway()
		for _, amount := range []float64{0, -5} {
			_, err := g.CreatePaymentSession(ctx, amount, "h1", "r1", 1)
			assert.True(t, domain.IsPaymentInit(err))
		}
		api.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
	})

	t.Run("MissingClientSecret", func(t *testing.T) {
		g, api, _ := newTestGateway()
		api.On("CreatePaymentIntent", ctx, mock.Anything).
			Return(&models.PaymentIntentResponse{PaymentIntentID: "pi_1"}, nil).Once()

		_, err := g.CreatePaymentSession(ctx, 100, "h1", "r1", 1)
		assert.True(t, domain.IsPaymentInit(err))
		assert.ErrorIs(t, err, models.ErrIncompleteSession)
	})

	t.Run("BackendFailureKeepsCause", func(t *testing.T) {
		g, api, _ := newTestGateway()
		api.On("CreatePaymentIntent", ctx, mock.Anything).
			Return(nil, domain.NetworkError{Op: "POST /payment/create-payment-intent", Err: errors.New("reset")}).Once()

		_, err := g.CreatePaymentSession(ctx, 100, "h1", "r1", 1)
		assert.True(t, domain.IsPaymentInit(err))
		assert.True(t, domain.IsNetwork(err))
	})
}

func TestPresentPaymentUI(t *testing.T) {
	ctx := context.Background()
	session, err := models.NewPaymentSession("pi_1", "pi_1_secret", 1000000, "pkr")
	require.NoError(t, err)

	t.Run("NilSessionNeverPresented", func(t *testing.T) {
		g, _, presenter := newTestGateway()
		_, err := g.PresentPaymentUI(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrPaymentNotReady)

		_, err = g.PresentPaymentUI(ctx, &models.PaymentSession{})
		assert.ErrorIs(t, err, domain.ErrPaymentNotReady)
		presenter.AssertNotCalled(t, "Present", mock.Anything, mock.Anything)
	})

	t.Run("Success", func(t *testing.T) {
		g, _, presenter := newTestGateway()
		presenter.On("Present", ctx, session).Return(models.PaymentOutcome{Status: models.OutcomeSuccess}, nil).Once()

		outcome, err := g.PresentPaymentUI(ctx, &session)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded())
		assert.Equal(t, "pi_1", outcome.PaymentIntentID)
	})

	t.Run("PresenterErrorBecomesOutcome", func(t *testing.T) {
		g, _, presenter := newTestGateway()
		presenter.On("Present", ctx, session).Return(models.PaymentOutcome{}, context.DeadlineExceeded).Once()

		outcome, err := g.PresentPaymentUI(ctx, &session)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeError, outcome.Status)
		assert.Equal(t, "payment window timed out", outcome.Message)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		g, _, presenter := newTestGateway()
		presenter.On("Present", ctx, session).Return(models.PaymentOutcome{Status: "weird"}, nil).Once()

		outcome, err := g.PresentPaymentUI(ctx, &session)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeError, outcome.Status)
	})
}
