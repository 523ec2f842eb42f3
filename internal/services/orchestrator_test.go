package services

import (
	"fmt"
	"testing"
	"time"

	"moa-be/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	confirmErr   error
	confirmCalls int
	chargeCalls  int
}

func (g *fakeGateway) ConfirmPayment(orderID, paymentKey string, amount int) (*PaymentInfo, error) {
	g.confirmCalls++
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	return &PaymentInfo{PaymentKey: paymentKey, Method: "card"}, nil
}

func (g *fakeGateway) ChargeBillingKey(billingKey, customerKey, orderID, orderName string, amount int) (*PaymentInfo, error) {
	g.chargeCalls++
	return &PaymentInfo{PaymentKey: "bill-" + orderID, Method: "billing"}, nil
}

func (g *fakeGateway) CheckoutURL(orderID string, amount int) string {
	return fmt.Sprintf("https://pay.example/checkout?orderId=%s&amount=%d", orderID, amount)
}

// fakePartyStore mirrors the real store's contract: confirm methods apply a
// settlement attempt once and return ErrAlreadyProcessed with the current
// party on repeats.
type fakePartyStore struct {
	parties     map[uuid.UUID]*models.Party
	members     map[string]*models.PartyMember
	settled     map[string]bool
	createCalls int
}

func newFakePartyStore() *fakePartyStore {
	return &fakePartyStore{
		parties: make(map[uuid.UUID]*models.Party),
		members: make(map[string]*models.PartyMember),
		settled: make(map[string]bool),
	}
}

func memberKey(partyID, userID uuid.UUID) string {
	return partyID.String() + "|" + userID.String()
}

func (s *fakePartyStore) GetParty(partyID uuid.UUID) (*models.Party, error) {
	p, ok := s.parties[partyID]
	if !ok {
		return nil, models.ErrPartyNotFound
	}
	return p, nil
}

func (s *fakePartyStore) GetMember(partyID, userID uuid.UUID) (*models.PartyMember, error) {
	return s.members[memberKey(partyID, userID)], nil
}

func (s *fakePartyStore) CreateParty(payload models.PartyCreatePayload) (uuid.UUID, error) {
	s.createCalls++
	id := uuid.New()
	s.parties[id] = &models.Party{
		ID:             id,
		Name:           payload.Name,
		LeaderID:       payload.UserID,
		Status:         models.PartyStatusPendingPayment,
		MaxMembers:     payload.MaxMembers,
		CurrentMembers: 1,
		MonthlyFee:     4250,
		DepositAmount:  10000,
		StartDate:      payload.StartDate,
		EndDate:        payload.EndDate,
	}
	s.members[memberKey(id, payload.UserID)] = &models.PartyMember{
		PartyID:      id,
		UserID:       payload.UserID,
		Role:         models.MemberRoleLeader,
		MemberStatus: models.MemberStatusActive,
	}
	return id, nil
}

func (s *fakePartyStore) ConfirmLeaderDeposit(partyID uuid.UUID, attempt models.PaymentAttempt) (*models.Party, error) {
	p, ok := s.parties[partyID]
	if !ok {
		return nil, models.ErrPartyNotFound
	}
	key := attempt.OrderID + "|" + attempt.ProviderPaymentKey
	if s.settled[key] {
		return p, models.ErrAlreadyProcessed
	}
	s.settled[key] = true
	next, err := NextOnDepositConfirmed(p)
	if err != nil {
		return p, err
	}
	p.Status = next
	return p, nil
}

func (s *fakePartyStore) ConfirmMemberJoin(partyID, userID uuid.UUID, attempt models.PaymentAttempt) (*models.Party, error) {
	p, ok := s.parties[partyID]
	if !ok {
		return nil, models.ErrPartyNotFound
	}
	key := attempt.OrderID + "|" + attempt.ProviderPaymentKey
	if s.settled[key] {
		return p, models.ErrAlreadyProcessed
	}
	if err := CheckJoin(p, s.members[memberKey(partyID, userID)]); err != nil {
		return nil, err
	}
	s.settled[key] = true
	s.members[memberKey(partyID, userID)] = &models.PartyMember{
		PartyID:      partyID,
		UserID:       userID,
		Role:         models.MemberRoleMember,
		MemberStatus: models.MemberStatusActive,
	}
	p.CurrentMembers++
	return p, nil
}

func newTestOrchestrator(cred *models.BillingCredential) (*PaymentOrchestrator, *fakePartyStore, *fakeGateway, *MemoryStage) {
	store := newFakePartyStore()
	gateway := &fakeGateway{}
	stage := NewMemoryStage()
	selector := NewCredentialSelector(&fakeCredentialStore{cred: cred})
	o := NewPaymentOrchestrator(stage, NewIdempotencyGuard(), selector, gateway, store)
	return o, store, gateway, stage
}

func testPayload() models.PartyCreatePayload {
	return models.PartyCreatePayload{
		UserID:     uuid.New(),
		Name:       "Netflix crew",
		ProductID:  "netflix",
		MaxMembers: 4,
		StartDate:  time.Now(),
		EndDate:    time.Now().AddDate(1, 0, 0),
	}
}

func TestStartCreatePartySavedCredential(t *testing.T) {
	cred := &models.BillingCredential{BillingKey: "bk-1"}
	o, store, gateway, stage := newTestOrchestrator(cred)

	result, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)

	// Saved path charges synchronously: no redirect, no staging.
	assert.Equal(t, PathSaved, result.Path)
	assert.Empty(t, result.CheckoutURL)
	assert.Equal(t, 1, gateway.chargeCalls)
	require.NotNil(t, result.Result)
	assert.Equal(t, models.PartyStatusRecruiting, result.Result.PartyStatus)
	assert.Equal(t, models.StepShareCredential, result.Result.NextStep)

	rec, err := stage.Read("sess-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, models.PartyStatusRecruiting, store.parties[result.PartyID].Status)
}

func TestStartCreatePartyRegisterNew(t *testing.T) {
	o, store, gateway, stage := newTestOrchestrator(nil)

	result, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)

	// Register-new path stages the transaction and hands off to checkout
	// without charging anything yet.
	assert.Equal(t, PathRegisterNew, result.Path)
	assert.Contains(t, result.CheckoutURL, result.OrderID)
	assert.Nil(t, result.Result)
	assert.Equal(t, 0, gateway.chargeCalls)
	assert.Equal(t, models.PartyStatusPendingPayment, store.parties[result.PartyID].Status)

	rec, err := stage.Read("sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.TxTypeCreateParty, rec.TxType)
	assert.Equal(t, result.PartyID, *rec.PartyID)
}

func TestHandleCallbackConfirmsAndClears(t *testing.T) {
	o, store, gateway, stage := newTestOrchestrator(nil)

	start, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)

	result, err := o.HandleCallback("sess-1", models.CallbackParams{
		OrderID: start.OrderID, PaymentKey: "pay-1", Amount: "14250",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, gateway.confirmCalls)
	assert.Equal(t, models.PartyStatusRecruiting, result.PartyStatus)
	assert.Equal(t, models.StepShareCredential, result.NextStep)
	assert.False(t, result.AlreadyProcessed)
	assert.False(t, result.Recreated)
	assert.Equal(t, models.PartyStatusRecruiting, store.parties[start.PartyID].Status)

	rec, err := stage.Read("sess-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestHandleCallbackMalformedParams(t *testing.T) {
	o, _, gateway, _ := newTestOrchestrator(nil)

	tests := []struct {
		name   string
		params models.CallbackParams
	}{
		{"missing order id", models.CallbackParams{PaymentKey: "pay-1", Amount: "1000"}},
		{"missing payment key", models.CallbackParams{OrderID: "order-1", Amount: "1000"}},
		{"missing amount", models.CallbackParams{OrderID: "order-1", PaymentKey: "pay-1"}},
		{"non-numeric amount", models.CallbackParams{OrderID: "order-1", PaymentKey: "pay-1", Amount: "lots"}},
		{"negative amount", models.CallbackParams{OrderID: "order-1", PaymentKey: "pay-1", Amount: "-5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.HandleCallback("sess-1", tt.params)
			assert.ErrorIs(t, err, models.ErrMalformedCallback)
		})
	}
	assert.Equal(t, 0, gateway.confirmCalls)
}

func TestHandleCallbackWithoutStagedTransaction(t *testing.T) {
	o, _, gateway, _ := newTestOrchestrator(nil)

	_, err := o.HandleCallback("sess-1", models.CallbackParams{
		OrderID: "order-1", PaymentKey: "pay-1", Amount: "14250",
	})
	assert.ErrorIs(t, err, models.ErrStageMissing)
	assert.Equal(t, 0, gateway.confirmCalls)
}

func TestHandleCallbackDuplicateEntryResumesNavigation(t *testing.T) {
	o, _, gateway, stage := newTestOrchestrator(nil)

	start, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)

	// First entry fails at the provider leg: the claim stands, the stage
	// stays in place.
	gateway.confirmErr = fmt.Errorf("%w: timeout", models.ErrProviderFailure)
	params := models.CallbackParams{OrderID: start.OrderID, PaymentKey: "pay-1", Amount: "14250"}
	_, err = o.HandleCallback("sess-1", params)
	require.ErrorIs(t, err, models.ErrProviderFailure)

	rec, err := stage.Read("sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	// Second entry with the same parameters never reaches the provider; it
	// re-derives the navigation from the staged record.
	gateway.confirmErr = nil
	result, err := o.HandleCallback("sess-1", params)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, 1, gateway.confirmCalls)
}

func TestHandleCallbackProviderAlreadyProcessed(t *testing.T) {
	o, store, gateway, stage := newTestOrchestrator(nil)

	start, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)

	// Provider says this paymentKey was settled before. That's a success
	// signal: the transition still applies and the stage clears.
	gateway.confirmErr = models.ErrAlreadyProcessed
	result, err := o.HandleCallback("sess-1", models.CallbackParams{
		OrderID: start.OrderID, PaymentKey: "pay-1", Amount: "14250",
	})
	require.NoError(t, err)

	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, models.PartyStatusRecruiting, store.parties[start.PartyID].Status)

	rec, err := stage.Read("sess-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestHandleCallbackRecreatesLostParty(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(nil)

	start, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)

	// The party vanished between staging and the callback.
	delete(store.parties, start.PartyID)
	createCallsBefore := store.createCalls

	result, err := o.HandleCallback("sess-1", models.CallbackParams{
		OrderID: start.OrderID, PaymentKey: "pay-1", Amount: "14250",
	})
	require.NoError(t, err)

	assert.True(t, result.Recreated)
	assert.Equal(t, createCallsBefore+1, store.createCalls)
	assert.Equal(t, models.PartyStatusRecruiting, result.PartyStatus)
	assert.NotEqual(t, start.PartyID, result.PartyID)
}

func TestHandleCallbackRetryDoesNotRecreate(t *testing.T) {
	o, store, _, stage := newTestOrchestrator(nil)

	start, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)

	// Force the staged record into a deposit retry and lose the party: a
	// retry must not recreate, the party id is supposed to exist.
	rec, err := stage.Read("sess-1")
	require.NoError(t, err)
	rec.TxType = models.TxTypeLeaderDepositRetry
	require.NoError(t, stage.Stage(*rec))
	delete(store.parties, start.PartyID)

	_, err = o.HandleCallback("sess-1", models.CallbackParams{
		OrderID: start.OrderID, PaymentKey: "pay-1", Amount: "14250",
	})
	assert.ErrorIs(t, err, models.ErrPartyNotFound)
	assert.Equal(t, 1, store.createCalls)
}

func TestStartJoinPartyValidatesBeforeCharging(t *testing.T) {
	cred := &models.BillingCredential{BillingKey: "bk-1"}
	o, store, gateway, _ := newTestOrchestrator(cred)

	start, err := o.StartCreateParty("sess-leader", testPayload())
	require.NoError(t, err)
	chargesAfterCreate := gateway.chargeCalls

	party := store.parties[start.PartyID]
	party.CurrentMembers = party.MaxMembers

	_, err = o.StartJoinParty("sess-member", uuid.New(), start.PartyID)
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.Equal(t, chargesAfterCreate, gateway.chargeCalls)
}

func TestStartJoinPartySavedCredential(t *testing.T) {
	cred := &models.BillingCredential{BillingKey: "bk-1"}
	o, store, _, _ := newTestOrchestrator(cred)

	start, err := o.StartCreateParty("sess-leader", testPayload())
	require.NoError(t, err)

	memberID := uuid.New()
	result, err := o.StartJoinParty("sess-member", memberID, start.PartyID)
	require.NoError(t, err)

	require.NotNil(t, result.Result)
	assert.Equal(t, models.StepPartyDetail, result.Result.NextStep)
	assert.Equal(t, 2, store.parties[start.PartyID].CurrentMembers)
}

func TestStartLeaderDepositRetryChecks(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(nil)

	start, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)
	party := store.parties[start.PartyID]

	t.Run("only the leader may retry", func(t *testing.T) {
		_, err := o.StartLeaderDepositRetry("sess-2", uuid.New(), start.PartyID)
		assert.ErrorIs(t, err, models.ErrInvalidRole)
	})

	t.Run("only a pending party may retry", func(t *testing.T) {
		party.Status = models.PartyStatusRecruiting
		defer func() { party.Status = models.PartyStatusPendingPayment }()

		_, err := o.StartLeaderDepositRetry("sess-1", party.LeaderID, start.PartyID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("retry stages a fresh transaction", func(t *testing.T) {
		result, err := o.StartLeaderDepositRetry("sess-1", party.LeaderID, start.PartyID)
		require.NoError(t, err)
		assert.Equal(t, PathRegisterNew, result.Path)
		assert.NotEqual(t, start.OrderID, result.OrderID)
	})
}

func TestDuplicateCallbackAfterClearIsFatal(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(nil)

	start, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)

	params := models.CallbackParams{OrderID: start.OrderID, PaymentKey: "pay-1", Amount: "14250"}
	_, err = o.HandleCallback("sess-1", params)
	require.NoError(t, err)

	// The stage was cleared by the first entry; a duplicate arriving now has
	// nothing to resume from.
	_, err = o.HandleCallback("sess-1", params)
	assert.ErrorIs(t, err, models.ErrStageMissing)
}

func TestDuplicateJoinDeliveryAfterRestart(t *testing.T) {
	store := newFakePartyStore()
	stage := NewMemoryStage()
	selector := NewCredentialSelector(&fakeCredentialStore{})
	gateway := &fakeGateway{}
	o := NewPaymentOrchestrator(stage, NewIdempotencyGuard(), selector, gateway, store)

	start, err := o.StartCreateParty("sess-leader", testPayload())
	require.NoError(t, err)
	store.parties[start.PartyID].Status = models.PartyStatusRecruiting

	memberID := uuid.New()
	join, err := o.StartJoinParty("sess-member", memberID, start.PartyID)
	require.NoError(t, err)

	params := models.CallbackParams{OrderID: join.OrderID, PaymentKey: "pay-join", Amount: "14250"}
	_, err = o.HandleCallback("sess-member", params)
	require.NoError(t, err)
	require.Equal(t, 2, store.parties[start.PartyID].CurrentMembers)

	// The process died between applying the join and clearing the stage: the
	// staged record is back, the in-memory guard is gone. The redelivered
	// callback must come out as already-processed success, not a join
	// rejection against the membership it created.
	pid := start.PartyID
	require.NoError(t, stage.Stage(models.PendingTransaction{
		SessionID: "sess-member",
		TxType:    models.TxTypeJoinParty,
		PartyID:   &pid,
		Payload:   models.PartyCreatePayload{UserID: memberID},
	}))
	restarted := NewPaymentOrchestrator(stage, NewIdempotencyGuard(), selector, gateway, store)
	gateway.confirmErr = models.ErrAlreadyProcessed

	result, err := restarted.HandleCallback("sess-member", params)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, models.StepPartyDetail, result.NextStep)
	assert.Equal(t, 2, store.parties[start.PartyID].CurrentMembers)

	rec, err := stage.Read("sess-member")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStoreAlreadyProcessedIsSuccess(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(nil)

	start, err := o.StartCreateParty("sess-1", testPayload())
	require.NoError(t, err)

	// Pre-settle the attempt in the store, as if a concurrent path applied
	// it first. The callback must still report success, not double-apply.
	store.settled[start.OrderID+"|pay-1"] = true
	store.parties[start.PartyID].Status = models.PartyStatusRecruiting

	result, err := o.HandleCallback("sess-1", models.CallbackParams{
		OrderID: start.OrderID, PaymentKey: "pay-1", Amount: "14250",
	})
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, models.PartyStatusRecruiting, result.PartyStatus)
}
