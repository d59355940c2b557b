package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"streak/contracts/identity"
	"streak/internal/billing/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/requestcontext"
)

const secret = "whsec_test"

type MockService struct {
	mock.Mock
}

func (m *MockService) HandlePayment(ctx context.Context, evt *models.PaymentEvent) (models.Outcome, error) {
	args := m.Called(ctx, evt)
	return args.Get(0).(models.Outcome), args.Error(1)
}

func (m *MockService) Revenue(ctx context.Context, p identity.Principal) ([]models.RevenueTotals, error) {
	args := m.Called(ctx, p)
	totals, _ := args.Get(0).([]models.RevenueTotals)
	return totals, args.Error(1)
}

type WebhookSuite struct {
	suite.Suite
	service *MockService
	router  http.Handler
	owner   identity.Principal
}

func TestWebhookSuite(t *testing.T) {
	suite.Run(t, new(WebhookSuite))
}

func (s *WebhookSuite) SetupTest() {
	s.service = new(MockService)
	s.owner = identity.Principal{ExternalUserID: "owner", TenantID: id.NewTenantID(), Role: identity.RoleOwner, CanonicalKey: "biz"}
	h := New(s.service, secret, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	r := chi.NewRouter()
	h.RegisterWebhook(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(r.Context(), s.owner)))
			})
		})
		h.Register(r)
	})
	s.router = r
}

func (s *WebhookSuite) TearDownTest() {
	s.service.AssertExpectations(s.T())
}

func (s *WebhookSuite) post(body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(HeaderSignature, signature)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *WebhookSuite) payload() []byte {
	body, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "payment.succeeded",
		"data": map[string]any{
			"id": "pay_1", "user_id": "user_1", "amount_cents": 2500, "currency": "usd",
			"metadata": map[string]any{"tenant_id": s.owner.TenantID.String(), "challenge_id": id.NewChallengeID().String()},
			"extra":    "ignored",
		},
	})
	s.Require().NoError(err)
	return body
}

func (s *WebhookSuite) TestRejectsMissingAndBadSignatures() {
	body := s.payload()
	s.Equal(http.StatusUnauthorized, s.post(body, "").Code)
	s.Equal(http.StatusUnauthorized, s.post(body, Sign([]byte("other"), body)).Code)
	s.Equal(http.StatusUnauthorized, s.post(body, "not-hex").Code)
}

func (s *WebhookSuite) TestAcceptsSignedEvent() {
	body := s.payload()
	s.service.On("HandlePayment", mock.Anything, mock.MatchedBy(func(evt *models.PaymentEvent) bool {
		return evt.ID == "evt_1" && evt.Data.Currency == "USD"
	})).Return(models.OutcomeRecorded, nil)

	rec := s.post(body, Sign([]byte(secret), body))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var resp WebhookResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(models.OutcomeRecorded, resp.Outcome)
}

func (s *WebhookSuite) TestServiceErrorMapsToStatus() {
	body := s.payload()
	s.service.On("HandlePayment", mock.Anything, mock.Anything).
		Return(models.Outcome(""), dErrors.New(dErrors.CodeNotFound, "payment target not found"))

	rec := s.post(body, "sha256="+Sign([]byte(secret), body))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *WebhookSuite) TestRevenue() {
	s.service.On("Revenue", mock.Anything, s.owner).
		Return([]models.RevenueTotals{{Currency: "USD", Payments: 1, GrossCents: 100}}, nil)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/revenue", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp RevenueResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Len(resp.Totals, 1)
}

func TestVerifySignatureNeedsSecret(t *testing.T) {
	body := []byte(`{}`)
	assert.False(t, VerifySignature(nil, body, Sign(nil, body)))
	assert.True(t, VerifySignature([]byte("k"), body, Sign([]byte("k"), body)))
}
