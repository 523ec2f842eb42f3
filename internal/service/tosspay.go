package service

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"moa-be/internal/config"
	"moa-be/internal/models"
	"moa-be/internal/services"
)

// TossPayService talks to the payment provider's REST API: confirm a
// payment, issue a billing key from an auth key, charge a billing key.
type TossPayService struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

type tossErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type tossPaymentResponse struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	TotalAmount int    `json:"totalAmount"`
	ApprovedAt  string `json:"approvedAt"`
}

type tossBillingKeyResponse struct {
	BillingKey  string `json:"billingKey"`
	CustomerKey string `json:"customerKey"`
	Card        struct {
		Company string `json:"company"`
		Number  string `json:"number"`
	} `json:"card"`
}

// BillingKeyResult is the issued credential handed back to the caller.
type BillingKeyResult struct {
	BillingKey       string
	CardBrand        string
	CardNumberMasked string
}

func NewTossPayService() *TossPayService {
	secretKey := os.Getenv("TOSSPAY_SECRET_KEY")
	if secretKey == "" {
		appConfig := config.GetConfig()
		secretKey = appConfig.TossPay.SecretKey
	}

	return &TossPayService{
		secretKey: secretKey,
		baseURL:   config.GetConfig().TossPay.BaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ConfirmPayment settles a payment the user approved in the provider's
// hosted flow. Provider error codes are classified into domain errors:
// "already processed" is not a failure here, the caller decides.
func (t *TossPayService) ConfirmPayment(orderID, paymentKey string, amount int) (*services.PaymentInfo, error) {
	body := map[string]interface{}{
		"paymentKey": paymentKey,
		"orderId":    orderID,
		"amount":     amount,
	}

	var resp tossPaymentResponse
	if err := t.post("/v1/payments/confirm", body, &resp); err != nil {
		return nil, err
	}
	return &services.PaymentInfo{PaymentKey: resp.PaymentKey, Method: resp.Method}, nil
}

// IssueBillingKey exchanges the auth key from a card-registration redirect
// for a reusable billing key.
func (t *TossPayService) IssueBillingKey(authKey, customerKey string) (*BillingKeyResult, error) {
	body := map[string]interface{}{
		"authKey":     authKey,
		"customerKey": customerKey,
	}

	var resp tossBillingKeyResponse
	if err := t.post("/v1/billing/authorizations/issue", body, &resp); err != nil {
		return nil, err
	}
	return &BillingKeyResult{
		BillingKey:       resp.BillingKey,
		CardBrand:        resp.Card.Company,
		CardNumberMasked: resp.Card.Number,
	}, nil
}

// ChargeBillingKey charges a saved billing key synchronously, no redirect.
func (t *TossPayService) ChargeBillingKey(billingKey, customerKey, orderID, orderName string, amount int) (*services.PaymentInfo, error) {
	body := map[string]interface{}{
		"customerKey": customerKey,
		"orderId":     orderID,
		"orderName":   orderName,
		"amount":      amount,
	}

	var resp tossPaymentResponse
	if err := t.post("/v1/billing/"+url.PathEscape(billingKey), body, &resp); err != nil {
		return nil, err
	}
	return &services.PaymentInfo{PaymentKey: resp.PaymentKey, Method: resp.Method}, nil
}

// CheckoutURL builds the handoff URL for the provider's hosted checkout.
func (t *TossPayService) CheckoutURL(orderID string, amount int) string {
	appConfig := config.GetConfig()
	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("amount", fmt.Sprintf("%d", amount))
	q.Set("successUrl", appConfig.TossPay.SuccessURL)
	q.Set("failUrl", appConfig.TossPay.FailURL)
	return t.baseURL + "/v1/checkout?" + q.Encode()
}

func (t *TossPayService) post(path string, body map[string]interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", t.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}

	auth := base64.StdEncoding.EncodeToString([]byte(t.secretKey + ":"))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrProviderFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		var tossErr tossErrorResponse
		if err := json.Unmarshal(respBody, &tossErr); err == nil {
			return classifyProviderError(tossErr)
		}
		return fmt.Errorf("%w: status %d: %s", models.ErrProviderFailure, resp.StatusCode, string(respBody))
	}

	return json.Unmarshal(respBody, out)
}

// classifyProviderError maps provider error codes to domain errors.
// Duplicate confirmation of the same paymentKey is a success signal for the
// orchestrator, everything else stays a generic provider failure.
func classifyProviderError(tossErr tossErrorResponse) error {
	switch tossErr.Code {
	case "ALREADY_PROCESSED_PAYMENT", "ALREADY_COMPLETED_PAYMENT":
		return models.ErrAlreadyProcessed
	default:
		return fmt.Errorf("%w: %s: %s", models.ErrProviderFailure, tossErr.Code, tossErr.Message)
	}
}
