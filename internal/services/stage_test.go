package services

import (
	"testing"

	"moa-be/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStageReadBack(t *testing.T) {
	s := NewMemoryStage()
	partyID := uuid.New()

	err := s.Stage(models.PendingTransaction{
		SessionID: "sess-1",
		TxType:    models.TxTypeCreateParty,
		PartyID:   &partyID,
		Payload:   models.PartyCreatePayload{UserID: uuid.New(), Name: "Netflix crew"},
	})
	require.NoError(t, err)

	rec, err := s.Read("sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.TxTypeCreateParty, rec.TxType)
	assert.Equal(t, partyID, *rec.PartyID)
	assert.Equal(t, "Netflix crew", rec.Payload.Name)
}

func TestMemoryStageReadDoesNotConsume(t *testing.T) {
	s := NewMemoryStage()
	partyID := uuid.New()
	require.NoError(t, s.Stage(models.PendingTransaction{SessionID: "sess-1", TxType: models.TxTypeJoinParty, PartyID: &partyID}))

	first, err := s.Read("sess-1")
	require.NoError(t, err)
	second, err := s.Read("sess-1")
	require.NoError(t, err)
	assert.NotNil(t, first)
	assert.NotNil(t, second)
}

func TestMemoryStageSupersedes(t *testing.T) {
	s := NewMemoryStage()
	oldParty := uuid.New()
	newParty := uuid.New()

	require.NoError(t, s.Stage(models.PendingTransaction{SessionID: "sess-1", TxType: models.TxTypeCreateParty, PartyID: &oldParty}))
	require.NoError(t, s.Stage(models.PendingTransaction{SessionID: "sess-1", TxType: models.TxTypeJoinParty, PartyID: &newParty}))

	rec, err := s.Read("sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.TxTypeJoinParty, rec.TxType)
	assert.Equal(t, newParty, *rec.PartyID)
}

func TestMemoryStageClear(t *testing.T) {
	s := NewMemoryStage()
	partyID := uuid.New()
	require.NoError(t, s.Stage(models.PendingTransaction{SessionID: "sess-1", TxType: models.TxTypeCreateParty, PartyID: &partyID}))

	require.NoError(t, s.Clear("sess-1"))

	rec, err := s.Read("sess-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryStageMissingSession(t *testing.T) {
	s := NewMemoryStage()
	rec, err := s.Read("nothing-here")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
