package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentAttempt struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	OrderID            string     `json:"order_id" db:"order_id"`
	ProviderPaymentKey string     `json:"provider_payment_key" db:"provider_payment_key"`
	Amount             int        `json:"amount" db:"amount"`
	Method             string     `json:"method" db:"method"`
	PartyID            *uuid.UUID `json:"party_id" db:"party_id"`
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	Purpose            string     `json:"purpose" db:"purpose"`
	Status             string     `json:"status" db:"status"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

type BillingCredential struct {
	ID               uuid.UUID `json:"id" db:"id"`
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	BillingKey       string    `json:"-" db:"billing_key"`
	CardBrand        string    `json:"card_brand" db:"card_brand"`
	CardNumberMasked string    `json:"card_number_masked" db:"card_number_masked"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// PendingTransaction is the staged record of an in-flight redirect flow.
// At most one exists per session; staging a new one supersedes the old.
type PendingTransaction struct {
	SessionID string             `json:"session_id" db:"session_id"`
	TxType    string             `json:"tx_type" db:"tx_type"`
	PartyID   *uuid.UUID         `json:"party_id" db:"party_id"`
	Payload   PartyCreatePayload `json:"payload" db:"payload"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}

// PartyCreatePayload carries everything needed to recreate a lost party
// during create-party deposit confirmation.
type PartyCreatePayload struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	ProductID  string    `json:"product_id"`
	MaxMembers int       `json:"max_members"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

type BillingIssueRequest struct {
	AuthKey     string `json:"auth_key" binding:"required"`
	CustomerKey string `json:"customer_key" binding:"required"`
}

// CallbackParams are the query parameters the provider appends to the
// return URL. All three must be present and well-formed.
type CallbackParams struct {
	OrderID    string `form:"orderId"`
	PaymentKey string `form:"paymentKey"`
	Amount     string `form:"amount"`
}

// ChargeResult is the orchestrator's terminal outcome for one settlement
// attempt, including where the client should navigate next.
type ChargeResult struct {
	PartyID          uuid.UUID `json:"party_id"`
	PartyStatus      string    `json:"party_status"`
	NextStep         string    `json:"next_step"`
	AlreadyProcessed bool      `json:"already_processed"`
	Recreated        bool      `json:"recreated"`
}

// Pending transaction types
const (
	TxTypeCreateParty        = "create_party"
	TxTypeJoinParty          = "join_party"
	TxTypeLeaderDepositRetry = "leader_deposit_retry"
)

// Payment attempt purposes and statuses
const (
	PurposeLeaderDeposit = "leader_deposit"
	PurposeMemberJoin    = "member_join"
	PurposeMonthlyFee    = "monthly_fee"

	AttemptStatusConfirmed = "confirmed"
	AttemptStatusFailed    = "failed"
)

// Resume-navigation steps encoded for the client after a flow completes
const (
	StepShareCredential = "share_credential"
	StepPartyDetail     = "party_detail"
)
