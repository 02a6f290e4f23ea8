package certificates

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"certifica/cert-portal/cert-portal-backend/internal/participants"
)

// registryColumns is the column order of the operator registry workbook.
var registryColumns = []string{"UUID", "DNI", "Nombre", "Evento", "Estado", "Firmado", "Fecha_Firma", "URL_Verificacion"}

// RegistryExporter produces the operator-facing certificate registry as an
// Excel workbook.
type RegistryExporter struct {
	repo         Repository
	participants participants.Repository
}

func NewRegistryExporter(repo Repository, participantsRepo participants.Repository) *RegistryExporter {
	return &RegistryExporter{repo: repo, participants: participantsRepo}
}

// ExportRegistry writes every certificate of the event (or all certificates
// when eventID is nil) into a single-sheet workbook.
func (e *RegistryExporter) ExportRegistry(ctx context.Context, certs []Certificate) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Registro"
	file.SetSheetName("Sheet1", sheet)

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range registryColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(sheet, cell, col)
		file.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	for rowIdx := range certs {
		cert := &certs[rowIdx]
		dni, name := "", ""
		if participant, err := e.participants.GetParticipantByID(ctx, cert.ParticipantID); err == nil && participant != nil {
			dni, name = participant.DNI, participant.FullName
		}
		eventName := ""
		if cert.EventID != nil {
			if event, err := e.participants.GetEventByID(ctx, *cert.EventID); err == nil && event != nil {
				eventName = event.Name
			}
		}
		signedAt := ""
		if cert.SignedAt != nil {
			signedAt = cert.SignedAt.Format("2006-01-02 15:04:05")
		}
		signed := "No"
		if cert.IsSigned {
			signed = "Si"
		}

		values := []interface{}{
			cert.UUID.String(), dni, name, eventName,
			string(cert.Status), signed, signedAt, cert.VerificationURL,
		}
		for colIdx, val := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			file.SetCellValue(sheet, cell, val)
		}
	}

	if len(certs) > 0 {
		lastCol, _ := excelize.CoordinatesToCellName(len(registryColumns), 1)
		file.AutoFilter(sheet, "A1:"+lastCol, nil)
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportRegistryForEvent loads the event's certificates and exports them.
func (e *RegistryExporter) ExportRegistryForEvent(ctx context.Context, eventID uuid.UUID) ([]byte, error) {
	certs, err := e.repo.ListCertificatesByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return e.ExportRegistry(ctx, certs)
}
