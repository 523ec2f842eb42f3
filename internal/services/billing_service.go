package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"moa-be/internal/models"

	"github.com/google/uuid"
)

// BillingService runs the recurring monthly pass: every active member of an
// active party is charged their monthly fee against their saved billing key.
// Members without a saved credential are skipped and reported — recurring
// charges never trigger a redirect flow.
type BillingService struct {
	db       *sql.DB
	gateway  Gateway
	selector *CredentialSelector
	parties  *PartyService
}

func NewBillingService(db *sql.DB, gateway Gateway, selector *CredentialSelector, parties *PartyService) *BillingService {
	return &BillingService{db: db, gateway: gateway, selector: selector, parties: parties}
}

type MemberChargeResult struct {
	UserID  uuid.UUID `json:"user_id"`
	OrderID string    `json:"order_id,omitempty"`
	Amount  int       `json:"amount"`
	Status  string    `json:"status"`
	Reason  string    `json:"reason,omitempty"`
}

type MonthlyBillingReport struct {
	PartyID uuid.UUID            `json:"party_id"`
	Charged int                  `json:"charged"`
	Skipped int                  `json:"skipped"`
	Failed  int                  `json:"failed"`
	Results []MemberChargeResult `json:"results"`
}

// RunMonthlyBilling charges every active member of the party once.
func (s *BillingService) RunMonthlyBilling(partyID uuid.UUID) (*MonthlyBillingReport, error) {
	party, err := s.parties.GetParty(partyID)
	if err != nil {
		return nil, err
	}
	if party.Status != models.PartyStatusActive {
		return nil, models.ErrInvalidTransition
	}

	rows, err := s.db.Query(`
		SELECT user_id FROM party_members
		WHERE party_id = $1 AND member_status = $2
	`, partyID, models.MemberStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list party members: %v", err)
	}
	defer rows.Close()

	var memberIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		memberIDs = append(memberIDs, id)
	}

	report := &MonthlyBillingReport{PartyID: partyID}
	for _, userID := range memberIDs {
		result := s.chargeMember(party, userID)
		switch result.Status {
		case "charged":
			report.Charged++
		case "skipped":
			report.Skipped++
		default:
			report.Failed++
		}
		report.Results = append(report.Results, result)
	}
	return report, nil
}

func (s *BillingService) chargeMember(party *models.Party, userID uuid.UUID) MemberChargeResult {
	path, cred, err := s.selector.Select(userID)
	if err != nil {
		return MemberChargeResult{UserID: userID, Amount: party.MonthlyFee, Status: "failed", Reason: err.Error()}
	}
	if path != PathSaved {
		return MemberChargeResult{UserID: userID, Amount: party.MonthlyFee, Status: "skipped", Reason: "no billing credential on file"}
	}

	orderID := newOrderID()
	info, err := s.gateway.ChargeBillingKey(cred.BillingKey, userID.String(), orderID, party.Name+" "+time.Now().Format("2006-01"), party.MonthlyFee)
	if err != nil {
		log.Printf("monthly charge failed for user %s in party %s: %v", userID, party.ID, err)
		return MemberChargeResult{UserID: userID, OrderID: orderID, Amount: party.MonthlyFee, Status: "failed", Reason: err.Error()}
	}

	pid := party.ID
	err = s.parties.RecordAttempt(models.PaymentAttempt{
		OrderID:            orderID,
		ProviderPaymentKey: info.PaymentKey,
		Amount:             party.MonthlyFee,
		Method:             info.Method,
		PartyID:            &pid,
		UserID:             userID,
		Purpose:            models.PurposeMonthlyFee,
	})
	if err != nil {
		log.Printf("failed to record monthly attempt for user %s: %v", userID, err)
	}
	return MemberChargeResult{UserID: userID, OrderID: orderID, Amount: party.MonthlyFee, Status: "charged"}
}
