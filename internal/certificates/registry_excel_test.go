package certificates

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"certifica/cert-portal/cert-portal-backend/internal/participants"
)

func TestExportRegistry(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	exporter := NewRegistryExporter(repo, partsRepo)

	ctx := context.Background()
	eventID := uuid.New()
	participantID := uuid.New()
	now := time.Now()

	partsRepo.On("GetParticipantByID", ctx, participantID).Return(&participants.Participant{
		ID:       participantID,
		DNI:      "87654321",
		FullName: "Carla Nunez",
	}, nil)
	partsRepo.On("GetEventByID", ctx, eventID).Return(&participants.Event{
		ID:   eventID,
		Name: "Seminario de Fisica",
	}, nil)

	certs := []Certificate{{
		UUID:            uuid.New(),
		ParticipantID:   participantID,
		EventID:         &eventID,
		Status:          StatusSignedFinal,
		IsSigned:        true,
		SignedAt:        &now,
		VerificationURL: "https://certificados.example.edu/verificar/x/",
	}}

	workbook, err := exporter.ExportRegistry(ctx, certs)
	assert.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(workbook))
	assert.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows("Registro")
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "UUID", rows[0][0])
	assert.Equal(t, "87654321", rows[1][1])
	assert.Equal(t, "Carla Nunez", rows[1][2])
	assert.Equal(t, "Seminario de Fisica", rows[1][3])
	assert.Equal(t, "SIGNED_FINAL", rows[1][4])
	assert.Equal(t, "Si", rows[1][5])
}
