package certificates

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"certifica/cert-portal/cert-portal-backend/internal/participants"
	"certifica/cert-portal/cert-portal-backend/internal/templates"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateCertificate(ctx context.Context, cert *Certificate) error {
	args := m.Called(ctx, cert)
	return args.Error(0)
}

func (m *MockRepository) GetCertificateByUUID(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Certificate), args.Error(1)
}

func (m *MockRepository) GetCertificateByParticipant(ctx context.Context, participantID uuid.UUID) (*Certificate, error) {
	args := m.Called(ctx, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Certificate), args.Error(1)
}

func (m *MockRepository) ListCertificatesByStatus(ctx context.Context, status ProcessingStatus) ([]Certificate, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]Certificate), args.Error(1)
}

func (m *MockRepository) ListCertificatesByEvent(ctx context.Context, eventID uuid.UUID) ([]Certificate, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]Certificate), args.Error(1)
}

func (m *MockRepository) UpdateCertificate(ctx context.Context, cert *Certificate) error {
	args := m.Called(ctx, cert)
	return args.Error(0)
}

// MockParticipantsRepository is a mock implementation of participants.Repository
type MockParticipantsRepository struct {
	mock.Mock
}

func (m *MockParticipantsRepository) GetParticipantByID(ctx context.Context, id uuid.UUID) (*participants.Participant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participants.Participant), args.Error(1)
}

func (m *MockParticipantsRepository) ListParticipantsByEvent(ctx context.Context, eventID uuid.UUID) ([]participants.Participant, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]participants.Participant), args.Error(1)
}

func (m *MockParticipantsRepository) FindParticipantByName(ctx context.Context, fullName string) (*participants.Participant, error) {
	args := m.Called(ctx, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participants.Participant), args.Error(1)
}

func (m *MockParticipantsRepository) CreateParticipant(ctx context.Context, p *participants.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockParticipantsRepository) FindOrCreateByName(ctx context.Context, fullName string) (*participants.Participant, error) {
	args := m.Called(ctx, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participants.Participant), args.Error(1)
}

func (m *MockParticipantsRepository) GetEventByID(ctx context.Context, id uuid.UUID) (*participants.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participants.Event), args.Error(1)
}

// MockTemplatesRepository is a mock implementation of templates.Repository
type MockTemplatesRepository struct {
	mock.Mock
}

func (m *MockTemplatesRepository) CreateTemplate(ctx context.Context, t *templates.Template) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTemplatesRepository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*templates.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*templates.Template), args.Error(1)
}

func (m *MockTemplatesRepository) GetDefaultTemplate(ctx context.Context) (*templates.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*templates.Template), args.Error(1)
}

func (m *MockTemplatesRepository) ListTemplates(ctx context.Context) ([]templates.Template, error) {
	args := m.Called(ctx)
	return args.Get(0).([]templates.Template), args.Error(1)
}

func (m *MockTemplatesRepository) CreateElement(ctx context.Context, e *templates.TemplateElement) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockTemplatesRepository) ListElements(ctx context.Context, templateID uuid.UUID) ([]templates.TemplateElement, error) {
	args := m.Called(ctx, templateID)
	return args.Get(0).([]templates.TemplateElement), args.Error(1)
}

func (m *MockTemplatesRepository) CreateAsset(ctx context.Context, a *templates.Asset) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockTemplatesRepository) GetAsset(ctx context.Context, id uuid.UUID) (*templates.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*templates.Asset), args.Error(1)
}

// memStore is an in-memory FileStore for pipeline tests.
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (s *memStore) Save(ctx context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = data
	return nil
}

func (s *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}
