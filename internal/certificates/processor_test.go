package certificates

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"certifica/cert-portal/cert-portal-backend/internal/audit"
	"certifica/cert-portal/cert-portal-backend/internal/participants"
	"certifica/cert-portal/cert-portal-backend/pkg/pdfstamp"
	"certifica/cert-portal/cert-portal-backend/pkg/qr"
	"certifica/cert-portal/cert-portal-backend/pkg/workflows"
)

func makeTestPDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 14)
		pdf.Text(100, 100, fmt.Sprintf("page %d", i+1))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("building test PDF: %v", err)
	}
	return buf.Bytes()
}

func newTestProcessor(repo *MockRepository, partsRepo *MockParticipantsRepository) (*Processor, *memStore) {
	qrCfg := testQRConfig()
	store := newMemStore()
	processor := NewProcessor(repo, partsRepo, store,
		qr.NewGenerator(qrCfg.CanonicalSize), pdfstamp.NewStamper(),
		audit.NopRecorder{}, qrCfg, zap.NewNop())
	return processor, store
}

func TestImportBatchIsolation(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, _ := newTestProcessor(repo, partsRepo)

	ctx := context.Background()
	partsRepo.On("FindOrCreateByName", ctx, mock.AnythingOfType("string")).Return(&participants.Participant{
		ID:       uuid.New(),
		FullName: "Juan Perez Garcia",
	}, nil)
	repo.On("CreateCertificate", ctx, mock.AnythingOfType("*certificates.Certificate")).Return(nil)

	uploads := []UploadedPDF{
		{Filename: "Juan_Perez_Garcia.pdf", Data: makeTestPDF(t, 1)},
		{Filename: "not_a_pdf.pdf", Data: []byte("plain text")},
		{Filename: "Luisa_Mendez.pdf", Data: makeTestPDF(t, 2)},
	}

	result := processor.ImportBatch(ctx, uploads)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, "not_a_pdf.pdf", result.Errors[0].Item)
	assert.Equal(t, len(uploads), result.SuccessCount+result.ErrorCount)
}

func TestImportBatchRejectsOversizedFile(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, _ := newTestProcessor(repo, partsRepo)
	processor.qrCfg.MaxUploadBytes = 64

	result := processor.ImportBatch(context.Background(), []UploadedPDF{
		{Filename: "huge.pdf", Data: makeTestPDF(t, 1)},
	})
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	repo.AssertNotCalled(t, "CreateCertificate", mock.Anything, mock.Anything)
}

func TestProcessQRAdvancesStatus(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, store := newTestProcessor(repo, partsRepo)

	ctx := context.Background()
	certID := uuid.New()
	originalKey := fmt.Sprintf("certificates/%s/original.pdf", certID)
	assert.NoError(t, store.Save(ctx, originalKey, bytes.NewReader(makeTestPDF(t, 2))))

	cert := &Certificate{
		UUID:            certID,
		ParticipantID:   uuid.New(),
		VerificationURL: processor.qrCfg.VerificationURL(certID.String()),
		OriginalPDFKey:  originalKey,
		QRPositionX:     450,
		QRPositionY:     700,
		QRPositionSize:  110,
		Status:          StatusImported,
	}
	repo.On("GetCertificateByUUID", ctx, certID).Return(cert, nil)
	repo.On("UpdateCertificate", ctx, cert).Return(nil)

	updated, err := processor.ProcessQR(ctx, certID)
	assert.NoError(t, err)
	assert.Equal(t, StatusQRInserted, updated.Status)
	assert.NotEmpty(t, updated.QRImageKey)
	assert.NotEmpty(t, updated.QRPDFKey)

	stamped, ok := store.files[updated.QRPDFKey]
	assert.True(t, ok)
	assert.True(t, bytes.HasPrefix(stamped, []byte("%PDF-")))
}

func TestProcessQRRejectsWrongStatus(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, _ := newTestProcessor(repo, partsRepo)

	ctx := context.Background()
	certID := uuid.New()
	cert := &Certificate{UUID: certID, Status: StatusQRInserted}
	repo.On("GetCertificateByUUID", ctx, certID).Return(cert, nil)

	updated, err := processor.ProcessQR(ctx, certID)
	assert.Nil(t, updated)

	var transition *workflows.TransitionError[ProcessingStatus]
	assert.ErrorAs(t, err, &transition)
	assert.Equal(t, StatusQRInserted, transition.From)

	// The guard must not mutate anything.
	assert.Equal(t, StatusQRInserted, cert.Status)
	repo.AssertNotCalled(t, "UpdateCertificate", mock.Anything, mock.Anything)
}

func TestProcessQRFailureMovesToError(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, _ := newTestProcessor(repo, partsRepo)

	ctx := context.Background()
	certID := uuid.New()
	// The original PDF key points nowhere, so stamping cannot proceed.
	cert := &Certificate{
		UUID:            certID,
		VerificationURL: processor.qrCfg.VerificationURL(certID.String()),
		OriginalPDFKey:  "certificates/missing/original.pdf",
		Status:          StatusImported,
	}
	repo.On("GetCertificateByUUID", ctx, certID).Return(cert, nil)
	repo.On("UpdateCertificate", ctx, cert).Return(nil)

	_, err := processor.ProcessQR(ctx, certID)
	assert.Error(t, err)
	assert.Equal(t, StatusError, cert.Status)
	assert.NotNil(t, cert.LastStatus)
	assert.Equal(t, StatusImported, *cert.LastStatus)
	assert.NotEmpty(t, cert.ErrorMessage)
}

func TestImportFinalRequiresExportedStatus(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, _ := newTestProcessor(repo, partsRepo)

	ctx := context.Background()
	certID := uuid.New()
	cert := &Certificate{UUID: certID, Status: StatusImported}
	repo.On("GetCertificateByUUID", ctx, certID).Return(cert, nil)

	_, err := processor.ImportFinal(ctx, certID.String()+"_signed.pdf", makeTestPDF(t, 1))
	var transition *workflows.TransitionError[ProcessingStatus]
	assert.ErrorAs(t, err, &transition)
}

func TestImportFinalMarksSigned(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, store := newTestProcessor(repo, partsRepo)

	ctx := context.Background()
	certID := uuid.New()
	cert := &Certificate{UUID: certID, Status: StatusExportedForSigning}
	repo.On("GetCertificateByUUID", ctx, certID).Return(cert, nil)
	repo.On("UpdateCertificate", ctx, cert).Return(nil)

	updated, err := processor.ImportFinal(ctx, "firmado_"+certID.String()+".pdf", makeTestPDF(t, 1))
	assert.NoError(t, err)
	assert.Equal(t, StatusSignedFinal, updated.Status)
	assert.True(t, updated.IsSigned)
	assert.NotNil(t, updated.SignedAt)

	_, ok := store.files[updated.FinalPDFKey]
	assert.True(t, ok)
}

func TestImportFinalRejectsFilenameWithoutUUID(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, _ := newTestProcessor(repo, partsRepo)

	_, err := processor.ImportFinal(context.Background(), "signed_document.pdf", makeTestPDF(t, 1))
	assert.Error(t, err)
	repo.AssertNotCalled(t, "GetCertificateByUUID", mock.Anything, mock.Anything)
}

func TestRetryFromErrorRestoresPriorStatus(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, _ := newTestProcessor(repo, partsRepo)

	ctx := context.Background()
	certID := uuid.New()
	prior := StatusImported
	cert := &Certificate{
		UUID:         certID,
		Status:       StatusError,
		LastStatus:   &prior,
		ErrorMessage: "stamp failed",
	}
	repo.On("GetCertificateByUUID", ctx, certID).Return(cert, nil)
	repo.On("UpdateCertificate", ctx, cert).Return(nil)

	updated, err := processor.RetryFromError(ctx, certID)
	assert.NoError(t, err)
	assert.Equal(t, StatusImported, updated.Status)
	assert.Nil(t, updated.LastStatus)
	assert.Empty(t, updated.ErrorMessage)
}

func TestRetryFromErrorRejectsNonErrorStatus(t *testing.T) {
	repo := new(MockRepository)
	partsRepo := new(MockParticipantsRepository)
	processor, _ := newTestProcessor(repo, partsRepo)

	ctx := context.Background()
	certID := uuid.New()
	repo.On("GetCertificateByUUID", ctx, certID).Return(&Certificate{
		UUID:   certID,
		Status: StatusQRInserted,
	}, nil)

	_, err := processor.RetryFromError(ctx, certID)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "UpdateCertificate", mock.Anything, mock.Anything)
}
