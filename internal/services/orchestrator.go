package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"moa-be/internal/models"

	"github.com/google/uuid"
)

// PaymentInfo is what the orchestrator needs back from a provider call.
type PaymentInfo struct {
	PaymentKey string
	Method     string
}

// Gateway is the payment provider boundary. Implementations classify
// provider error responses into the domain sentinels (ErrAlreadyProcessed,
// ErrProviderFailure) before returning.
type Gateway interface {
	ConfirmPayment(orderID, paymentKey string, amount int) (*PaymentInfo, error)
	ChargeBillingKey(billingKey, customerKey, orderID, orderName string, amount int) (*PaymentInfo, error)
	CheckoutURL(orderID string, amount int) string
}

// PartyStore is the lifecycle boundary the orchestrator drives. Confirm
// methods return ErrAlreadyProcessed together with the current party when
// the settlement attempt was applied earlier.
type PartyStore interface {
	GetParty(partyID uuid.UUID) (*models.Party, error)
	GetMember(partyID, userID uuid.UUID) (*models.PartyMember, error)
	CreateParty(payload models.PartyCreatePayload) (uuid.UUID, error)
	ConfirmLeaderDeposit(partyID uuid.UUID, attempt models.PaymentAttempt) (*models.Party, error)
	ConfirmMemberJoin(partyID, userID uuid.UUID, attempt models.PaymentAttempt) (*models.Party, error)
}

// StartResult is the outcome of starting a charge. Saved-credential charges
// complete synchronously and carry a ChargeResult; redirect charges carry
// the provider checkout handoff and a staged transaction behind them.
type StartResult struct {
	PartyID     uuid.UUID           `json:"party_id"`
	OrderID     string              `json:"order_id"`
	Amount      int                 `json:"amount"`
	Path        ChargePath          `json:"path"`
	CheckoutURL string              `json:"checkout_url,omitempty"`
	Result      *models.ChargeResult `json:"result,omitempty"`
}

// PaymentOrchestrator sequences a charge across credential selection, the
// provider leg and the lifecycle transition, keeping party state consistent
// with exactly one successful charge per logical transaction. External calls
// run sequentially, never in parallel: recreation depends on the first
// confirmation's failure reason.
type PaymentOrchestrator struct {
	stage    Stage
	guard    *IdempotencyGuard
	selector *CredentialSelector
	gateway  Gateway
	store    PartyStore
}

func NewPaymentOrchestrator(stage Stage, guard *IdempotencyGuard, selector *CredentialSelector, gateway Gateway, store PartyStore) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		stage:    stage,
		guard:    guard,
		selector: selector,
		gateway:  gateway,
		store:    store,
	}
}

// StartCreateParty creates the party and starts the leader's deposit +
// first charge.
func (o *PaymentOrchestrator) StartCreateParty(sessionID string, payload models.PartyCreatePayload) (*StartResult, error) {
	partyID, err := o.store.CreateParty(payload)
	if err != nil {
		return nil, err
	}
	return o.startCharge(sessionID, models.TxTypeCreateParty, partyID, payload)
}

// StartJoinParty starts a member's deposit + first charge. Capacity, status
// and rejoin invariants are checked before any payment call is made.
func (o *PaymentOrchestrator) StartJoinParty(sessionID string, userID, partyID uuid.UUID) (*StartResult, error) {
	party, err := o.store.GetParty(partyID)
	if err != nil {
		return nil, err
	}
	prior, err := o.store.GetMember(partyID, userID)
	if err != nil {
		return nil, err
	}
	if err := CheckJoin(party, prior); err != nil {
		return nil, err
	}
	payload := models.PartyCreatePayload{UserID: userID}
	return o.startCharge(sessionID, models.TxTypeJoinParty, partyID, payload)
}

// StartLeaderDepositRetry re-attempts a failed leader deposit against the
// same party id. This is an explicit user action, never automatic.
func (o *PaymentOrchestrator) StartLeaderDepositRetry(sessionID string, userID, partyID uuid.UUID) (*StartResult, error) {
	party, err := o.store.GetParty(partyID)
	if err != nil {
		return nil, err
	}
	if party.LeaderID != userID {
		return nil, models.ErrInvalidRole
	}
	if party.Status != models.PartyStatusPendingPayment {
		return nil, models.ErrInvalidTransition
	}
	payload := models.PartyCreatePayload{
		UserID:     userID,
		Name:       party.Name,
		ProductID:  party.ProductID,
		MaxMembers: party.MaxMembers,
		StartDate:  party.StartDate,
		EndDate:    party.EndDate,
	}
	return o.startCharge(sessionID, models.TxTypeLeaderDepositRetry, partyID, payload)
}

func (o *PaymentOrchestrator) startCharge(sessionID, txType string, partyID uuid.UUID, payload models.PartyCreatePayload) (*StartResult, error) {
	party, err := o.store.GetParty(partyID)
	if err != nil {
		return nil, err
	}
	amount := party.DepositAmount + party.MonthlyFee
	orderID := newOrderID()

	// Credential presence is re-queried on every charge decision.
	path, cred, err := o.selector.Select(payload.UserID)
	if err != nil {
		return nil, err
	}

	if path == PathSaved {
		// Saved-credential path: synchronous charge, no staging, no redirect.
		info, err := o.gateway.ChargeBillingKey(cred.BillingKey, payload.UserID.String(), orderID, party.Name, amount)
		if err != nil {
			return nil, err
		}
		attempt := models.PaymentAttempt{
			OrderID:            orderID,
			ProviderPaymentKey: info.PaymentKey,
			Amount:             amount,
			Method:             info.Method,
			UserID:             payload.UserID,
		}
		result, err := o.applyTransition(txType, partyID, payload, attempt)
		if err != nil {
			return nil, err
		}
		return &StartResult{PartyID: partyID, OrderID: orderID, Amount: amount, Path: path, Result: result}, nil
	}

	// New-credential path: stage first, then hand control to the provider's
	// hosted flow. Any previously staged transaction is superseded.
	pid := partyID
	rec := models.PendingTransaction{
		SessionID: sessionID,
		TxType:    txType,
		PartyID:   &pid,
		Payload:   payload,
	}
	if err := o.stage.Stage(rec); err != nil {
		return nil, err
	}
	return &StartResult{
		PartyID:     partyID,
		OrderID:     orderID,
		Amount:      amount,
		Path:        path,
		CheckoutURL: o.gateway.CheckoutURL(orderID, amount),
	}, nil
}

// HandleCallback processes the provider's return redirect. Parameter
// validation and the idempotency claim happen before any mutating call.
func (o *PaymentOrchestrator) HandleCallback(sessionID string, params models.CallbackParams) (*models.ChargeResult, error) {
	amount, err := validateCallback(params)
	if err != nil {
		return nil, err
	}

	if !o.guard.BeginProcessing(sessionID, params.OrderID, params.PaymentKey) {
		// A previous entry already claimed this attempt. Re-derive the
		// navigation from the still-staged record; if the first entry
		// finished and cleared it, the flow cannot be resumed blindly.
		rec, err := o.stage.Read(sessionID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, models.ErrStageMissing
		}
		return o.resumeNavigation(rec)
	}

	rec, err := o.stage.Read(sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, models.ErrStageMissing
	}

	info, err := o.gateway.ConfirmPayment(params.OrderID, params.PaymentKey, amount)
	alreadyProcessed := errors.Is(err, models.ErrAlreadyProcessed)
	if err != nil && !alreadyProcessed {
		// Generic provider failure: the stage stays in place so an explicit
		// user retry can resume without re-entering earlier steps.
		return nil, err
	}

	attempt := models.PaymentAttempt{
		OrderID:            params.OrderID,
		ProviderPaymentKey: params.PaymentKey,
		Amount:             amount,
		UserID:             rec.Payload.UserID,
	}
	if info != nil {
		attempt.Method = info.Method
	}

	if rec.PartyID == nil {
		return nil, models.ErrStageMissing
	}
	result, err := o.applyTransition(rec.TxType, *rec.PartyID, rec.Payload, attempt)
	if err != nil {
		return nil, err
	}
	result.AlreadyProcessed = result.AlreadyProcessed || alreadyProcessed

	// Terminal outcome applied: clear the stage exactly once.
	if err := o.stage.Clear(sessionID); err != nil {
		log.Printf("failed to clear staged transaction for session %s: %v", sessionID, err)
	}
	return result, nil
}

// applyTransition applies the lifecycle change for one confirmed settlement
// attempt. "Already processed" from the store is a success, not a failure.
// A lost party during create_party confirmation is recreated from the staged
// payload and the confirmation retried exactly once.
func (o *PaymentOrchestrator) applyTransition(txType string, partyID uuid.UUID, payload models.PartyCreatePayload, attempt models.PaymentAttempt) (*models.ChargeResult, error) {
	var party *models.Party
	var err error
	recreated := false
	alreadyProcessed := false

	switch txType {
	case models.TxTypeCreateParty:
		party, err = o.store.ConfirmLeaderDeposit(partyID, attempt)
		if errors.Is(err, models.ErrPartyNotFound) {
			newID, createErr := o.store.CreateParty(payload)
			if createErr != nil {
				return nil, createErr
			}
			recreated = true
			party, err = o.store.ConfirmLeaderDeposit(newID, attempt)
		}
	case models.TxTypeLeaderDepositRetry:
		party, err = o.store.ConfirmLeaderDeposit(partyID, attempt)
	case models.TxTypeJoinParty:
		party, err = o.store.ConfirmMemberJoin(partyID, payload.UserID, attempt)
	default:
		return nil, fmt.Errorf("unknown pending transaction type %q", txType)
	}

	if errors.Is(err, models.ErrAlreadyProcessed) {
		alreadyProcessed = true
	} else if err != nil {
		return nil, err
	}

	return &models.ChargeResult{
		PartyID:          party.ID,
		PartyStatus:      party.Status,
		NextStep:         nextStepFor(txType, party),
		AlreadyProcessed: alreadyProcessed,
		Recreated:        recreated,
	}, nil
}

// resumeNavigation rebuilds the post-payment navigation for a duplicate
// callback entry without touching the provider or the party again.
func (o *PaymentOrchestrator) resumeNavigation(rec *models.PendingTransaction) (*models.ChargeResult, error) {
	if rec.PartyID == nil {
		return nil, models.ErrStageMissing
	}
	party, err := o.store.GetParty(*rec.PartyID)
	if err != nil {
		return nil, err
	}
	return &models.ChargeResult{
		PartyID:          party.ID,
		PartyStatus:      party.Status,
		NextStep:         nextStepFor(rec.TxType, party),
		AlreadyProcessed: true,
	}, nil
}

func nextStepFor(txType string, party *models.Party) string {
	switch txType {
	case models.TxTypeCreateParty, models.TxTypeLeaderDepositRetry:
		if party.SharedCredentialID == nil || *party.SharedCredentialID == "" {
			return models.StepShareCredential
		}
		return models.StepPartyDetail
	default:
		return models.StepPartyDetail
	}
}

func validateCallback(params models.CallbackParams) (int, error) {
	if params.OrderID == "" || params.PaymentKey == "" || params.Amount == "" {
		return 0, models.ErrMalformedCallback
	}
	amount, err := strconv.Atoi(params.Amount)
	if err != nil || amount <= 0 {
		return 0, models.ErrMalformedCallback
	}
	return amount, nil
}

func newOrderID() string {
	return "moa-" + uuid.NewString()
}
