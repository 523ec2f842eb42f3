package services

import (
	"moa-be/internal/models"
)

// Party lifecycle state machine. All status changes go through the event
// functions below; they return the next status or a typed rejection and
// never mutate anything themselves.

// validPartyTransitions defines the allowed party status transitions
var validPartyTransitions = map[string][]string{
	models.PartyStatusPendingPayment: {models.PartyStatusRecruiting, models.PartyStatusActive, models.PartyStatusClosed},
	models.PartyStatusRecruiting:     {models.PartyStatusActive, models.PartyStatusClosed},
	models.PartyStatusActive:         {models.PartyStatusClosed},
	models.PartyStatusClosed:         {}, // End state
}

// validMemberTransitions defines the allowed membership status transitions
var validMemberTransitions = map[string][]string{
	models.MemberStatusActive:   {models.MemberStatusInactive},
	models.MemberStatusInactive: {}, // End state, rejoin is permanently blocked
}

// CanTransitionParty reports whether a party status transition is allowed
func CanTransitionParty(current, next string) bool {
	allowed, exists := validPartyTransitions[current]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == next {
			return true
		}
	}
	return false
}

// CanTransitionMember reports whether a membership status transition is allowed
func CanTransitionMember(current, next string) bool {
	allowed, exists := validMemberTransitions[current]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == next {
			return true
		}
	}
	return false
}

// NextOnDepositConfirmed returns the party status after the leader's deposit
// clears. A party whose shared credential is already set skips recruiting and
// goes straight to active.
func NextOnDepositConfirmed(p *models.Party) (string, error) {
	if p.Status != models.PartyStatusPendingPayment {
		// Deposit already applied earlier; the party moved on.
		return "", models.ErrAlreadyProcessed
	}
	next := models.PartyStatusRecruiting
	if p.SharedCredentialID != nil && *p.SharedCredentialID != "" {
		next = models.PartyStatusActive
	}
	if !CanTransitionParty(p.Status, next) {
		return "", models.ErrInvalidTransition
	}
	return next, nil
}

// NextOnCredentialShared returns the party status after the leader shares the
// account credential. Active requires a cleared deposit, so only recruiting
// parties move; a pending_payment party keeps its status until the deposit
// confirmation re-evaluates it.
func NextOnCredentialShared(p *models.Party) (string, error) {
	switch p.Status {
	case models.PartyStatusRecruiting:
		return models.PartyStatusActive, nil
	case models.PartyStatusPendingPayment:
		return models.PartyStatusPendingPayment, nil
	default:
		return "", models.ErrInvalidTransition
	}
}

// NextOnClose returns the party status for the administrative close event
func NextOnClose(p *models.Party) (string, error) {
	if p.Status == models.PartyStatusClosed {
		return "", models.ErrInvalidTransition
	}
	return models.PartyStatusClosed, nil
}

// CheckJoin validates that user may join the party. prior is the user's
// existing membership row in this party, nil if none. Rejections are typed
// and nothing is mutated; capacity, status and membership history are all
// enforced before any payment call is made.
func CheckJoin(p *models.Party, prior *models.PartyMember) error {
	if p.Status != models.PartyStatusRecruiting && p.Status != models.PartyStatusActive {
		return models.ErrInvalidTransition
	}
	if prior != nil {
		if prior.MemberStatus == models.MemberStatusInactive {
			return models.ErrRejoinBlocked
		}
		// Already an active member; joining twice makes no sense.
		return models.ErrInvalidTransition
	}
	if p.CurrentMembers >= p.MaxMembers {
		return models.ErrCapacityExceeded
	}
	return nil
}

// CheckLeave validates that member may leave the party. Leaders cannot leave;
// they close the party instead. No refund is issued on leave.
func CheckLeave(p *models.Party, m *models.PartyMember) error {
	if m == nil {
		return models.ErrPartyNotFound
	}
	if m.Role == models.MemberRoleLeader {
		return models.ErrInvalidRole
	}
	if !CanTransitionMember(m.MemberStatus, models.MemberStatusInactive) {
		return models.ErrInvalidTransition
	}
	return nil
}
