package services

import (
	"testing"

	"moa-be/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionParty(t *testing.T) {
	tests := []struct {
		name    string
		current string
		next    string
		allowed bool
	}{
		{"pending to recruiting", models.PartyStatusPendingPayment, models.PartyStatusRecruiting, true},
		{"pending to active", models.PartyStatusPendingPayment, models.PartyStatusActive, true},
		{"recruiting to active", models.PartyStatusRecruiting, models.PartyStatusActive, true},
		{"active to closed", models.PartyStatusActive, models.PartyStatusClosed, true},
		{"closed is terminal", models.PartyStatusClosed, models.PartyStatusRecruiting, false},
		{"active cannot go back", models.PartyStatusActive, models.PartyStatusRecruiting, false},
		{"recruiting cannot regress", models.PartyStatusRecruiting, models.PartyStatusPendingPayment, false},
		{"unknown status", "deleted", models.PartyStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionParty(tt.current, tt.next))
		})
	}
}

func TestCanTransitionMember(t *testing.T) {
	assert.True(t, CanTransitionMember(models.MemberStatusActive, models.MemberStatusInactive))
	assert.False(t, CanTransitionMember(models.MemberStatusInactive, models.MemberStatusActive))
}

func TestNextOnDepositConfirmed(t *testing.T) {
	t.Run("pending party becomes recruiting", func(t *testing.T) {
		p := &models.Party{Status: models.PartyStatusPendingPayment}
		next, err := NextOnDepositConfirmed(p)
		require.NoError(t, err)
		assert.Equal(t, models.PartyStatusRecruiting, next)
	})

	t.Run("credential already shared skips recruiting", func(t *testing.T) {
		cred := "acc-123"
		p := &models.Party{Status: models.PartyStatusPendingPayment, SharedCredentialID: &cred}
		next, err := NextOnDepositConfirmed(p)
		require.NoError(t, err)
		assert.Equal(t, models.PartyStatusActive, next)
	})

	t.Run("deposit applied twice is already processed", func(t *testing.T) {
		p := &models.Party{Status: models.PartyStatusRecruiting}
		_, err := NextOnDepositConfirmed(p)
		assert.ErrorIs(t, err, models.ErrAlreadyProcessed)
	})
}

func TestNextOnCredentialShared(t *testing.T) {
	t.Run("recruiting party activates", func(t *testing.T) {
		next, err := NextOnCredentialShared(&models.Party{Status: models.PartyStatusRecruiting})
		require.NoError(t, err)
		assert.Equal(t, models.PartyStatusActive, next)
	})

	t.Run("pending party stays pending until deposit clears", func(t *testing.T) {
		next, err := NextOnCredentialShared(&models.Party{Status: models.PartyStatusPendingPayment})
		require.NoError(t, err)
		assert.Equal(t, models.PartyStatusPendingPayment, next)
	})

	t.Run("closed party rejects", func(t *testing.T) {
		_, err := NextOnCredentialShared(&models.Party{Status: models.PartyStatusClosed})
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestNextOnClose(t *testing.T) {
	for _, status := range []string{models.PartyStatusPendingPayment, models.PartyStatusRecruiting, models.PartyStatusActive} {
		next, err := NextOnClose(&models.Party{Status: status})
		require.NoError(t, err)
		assert.Equal(t, models.PartyStatusClosed, next)
	}

	_, err := NextOnClose(&models.Party{Status: models.PartyStatusClosed})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestCheckJoin(t *testing.T) {
	recruiting := func(current, max int) *models.Party {
		return &models.Party{Status: models.PartyStatusRecruiting, CurrentMembers: current, MaxMembers: max}
	}

	t.Run("open seat in recruiting party", func(t *testing.T) {
		assert.NoError(t, CheckJoin(recruiting(2, 4), nil))
	})

	t.Run("open seat in active party", func(t *testing.T) {
		p := &models.Party{Status: models.PartyStatusActive, CurrentMembers: 2, MaxMembers: 4}
		assert.NoError(t, CheckJoin(p, nil))
	})

	t.Run("full party rejects", func(t *testing.T) {
		assert.ErrorIs(t, CheckJoin(recruiting(4, 4), nil), models.ErrCapacityExceeded)
	})

	t.Run("pending party rejects", func(t *testing.T) {
		p := &models.Party{Status: models.PartyStatusPendingPayment, MaxMembers: 4}
		assert.ErrorIs(t, CheckJoin(p, nil), models.ErrInvalidTransition)
	})

	t.Run("closed party rejects", func(t *testing.T) {
		p := &models.Party{Status: models.PartyStatusClosed, MaxMembers: 4}
		assert.ErrorIs(t, CheckJoin(p, nil), models.ErrInvalidTransition)
	})

	t.Run("former member cannot rejoin", func(t *testing.T) {
		prior := &models.PartyMember{MemberStatus: models.MemberStatusInactive}
		assert.ErrorIs(t, CheckJoin(recruiting(2, 4), prior), models.ErrRejoinBlocked)
	})

	t.Run("active member cannot join twice", func(t *testing.T) {
		prior := &models.PartyMember{MemberStatus: models.MemberStatusActive}
		assert.ErrorIs(t, CheckJoin(recruiting(2, 4), prior), models.ErrInvalidTransition)
	})
}

func TestCheckLeave(t *testing.T) {
	p := &models.Party{Status: models.PartyStatusActive}

	t.Run("member may leave", func(t *testing.T) {
		m := &models.PartyMember{Role: models.MemberRoleMember, MemberStatus: models.MemberStatusActive}
		assert.NoError(t, CheckLeave(p, m))
	})

	t.Run("leader cannot leave", func(t *testing.T) {
		m := &models.PartyMember{Role: models.MemberRoleLeader, MemberStatus: models.MemberStatusActive}
		assert.ErrorIs(t, CheckLeave(p, m), models.ErrInvalidRole)
	})

	t.Run("non-member cannot leave", func(t *testing.T) {
		assert.ErrorIs(t, CheckLeave(p, nil), models.ErrPartyNotFound)
	})

	t.Run("inactive member cannot leave again", func(t *testing.T) {
		m := &models.PartyMember{Role: models.MemberRoleMember, MemberStatus: models.MemberStatusInactive}
		assert.ErrorIs(t, CheckLeave(p, m), models.ErrInvalidTransition)
	})
}
