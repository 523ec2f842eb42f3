package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"moa-be/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(srv *httptest.Server) *TossPayService {
	return &TossPayService{
		secretKey: "test_sk",
		baseURL:   srv.URL,
		client:    srv.Client(),
	}
}

func TestConfirmPaymentSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/confirm", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Basic ")

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order-1", body["orderId"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"paymentKey": "pay-1",
			"orderId":    "order-1",
			"status":     "DONE",
			"method":     "CARD",
		})
	}))
	defer srv.Close()

	info, err := newTestService(srv).ConfirmPayment("order-1", "pay-1", 14250)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", info.PaymentKey)
	assert.Equal(t, "CARD", info.Method)
}

func TestConfirmPaymentAlreadyProcessed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "ALREADY_PROCESSED_PAYMENT",
			"message": "이미 처리된 결제입니다.",
		})
	}))
	defer srv.Close()

	_, err := newTestService(srv).ConfirmPayment("order-1", "pay-1", 14250)
	assert.ErrorIs(t, err, models.ErrAlreadyProcessed)
}

func TestConfirmPaymentGenericFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "REJECT_CARD_PAYMENT",
			"message": "카드 결제가 거절되었습니다.",
		})
	}))
	defer srv.Close()

	_, err := newTestService(srv).ConfirmPayment("order-1", "pay-1", 14250)
	assert.ErrorIs(t, err, models.ErrProviderFailure)
	assert.NotErrorIs(t, err, models.ErrAlreadyProcessed)
}

func TestIssueBillingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/billing/authorizations/issue", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"billingKey":  "bk-1",
			"customerKey": "user-1",
			"card": map[string]string{
				"company": "VISA",
				"number":  "1234-56**-****-7890",
			},
		})
	}))
	defer srv.Close()

	result, err := newTestService(srv).IssueBillingKey("auth-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "bk-1", result.BillingKey)
	assert.Equal(t, "VISA", result.CardBrand)
	assert.Equal(t, "1234-56**-****-7890", result.CardNumberMasked)
}

func TestChargeBillingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/billing/bk-1", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body["customerKey"])
		assert.Equal(t, float64(4250), body["amount"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"paymentKey": "pay-2",
			"status":     "DONE",
			"method":     "BILLING",
		})
	}))
	defer srv.Close()

	info, err := newTestService(srv).ChargeBillingKey("bk-1", "user-1", "order-2", "Netflix crew 2026-09", 4250)
	require.NoError(t, err)
	assert.Equal(t, "pay-2", info.PaymentKey)
}

func TestCheckoutURL(t *testing.T) {
	svc := &TossPayService{baseURL: "https://api.tosspayments.com"}
	u := svc.CheckoutURL("order-1", 14250)
	assert.Contains(t, u, "orderId=order-1")
	assert.Contains(t, u, "amount=14250")
}
