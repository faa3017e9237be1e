package service

import (
	"context"
	"time"

	"github.com/phleudt/mailscheduler/internal/domain"
)

// Hand-written mocks for the domain ports. Each method delegates to its
// function field when set and returns zero values otherwise, so tests only
// wire the calls they care about.

type MockEmailRepository struct {
	CreateFn                     func(ctx context.Context, email *domain.Email, metadata *domain.EmailMetadata) error
	UpdateFn                     func(ctx context.Context, email *domain.Email, metadata *domain.EmailMetadata) error
	GetByIDFn                    func(ctx context.Context, id string) (*domain.EmailWithMetadata, error)
	ListFn                       func(ctx context.Context) ([]*domain.EmailWithMetadata, error)
	FindByRecipientFn            func(ctx context.Context, recipientID string) ([]*domain.EmailWithMetadata, error)
	FindPendingScheduledBeforeFn func(ctx context.Context, cutoff time.Time) ([]*domain.EmailWithMetadata, error)

	CreateCalls []*domain.EmailWithMetadata
	UpdateCalls []*domain.EmailWithMetadata
}

func (m *MockEmailRepository) Create(ctx context.Context, email *domain.Email, metadata *domain.EmailMetadata) error {
	m.CreateCalls = append(m.CreateCalls, &domain.EmailWithMetadata{Email: email, Metadata: metadata})
	if m.CreateFn != nil {
		return m.CreateFn(ctx, email, metadata)
	}
	return nil
}

func (m *MockEmailRepository) Update(ctx context.Context, email *domain.Email, metadata *domain.EmailMetadata) error {
	m.UpdateCalls = append(m.UpdateCalls, &domain.EmailWithMetadata{Email: email, Metadata: metadata})
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, email, metadata)
	}
	return nil
}

func (m *MockEmailRepository) GetByID(ctx context.Context, id string) (*domain.EmailWithMetadata, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, &domain.ErrNotFound{Entity: "email", ID: id}
}

func (m *MockEmailRepository) List(ctx context.Context) ([]*domain.EmailWithMetadata, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return nil, nil
}

func (m *MockEmailRepository) FindByRecipient(ctx context.Context, recipientID string) ([]*domain.EmailWithMetadata, error) {
	if m.FindByRecipientFn != nil {
		return m.FindByRecipientFn(ctx, recipientID)
	}
	return nil, nil
}

func (m *MockEmailRepository) FindPendingScheduledBefore(ctx context.Context, cutoff time.Time) ([]*domain.EmailWithMetadata, error) {
	if m.FindPendingScheduledBeforeFn != nil {
		return m.FindPendingScheduledBeforeFn(ctx, cutoff)
	}
	return nil, nil
}

type MockRecipientRepository struct {
	CreateFn         func(ctx context.Context, recipient *domain.Recipient) error
	UpdateFn         func(ctx context.Context, recipient *domain.Recipient) error
	GetByIDFn        func(ctx context.Context, id string) (*domain.Recipient, error)
	GetByEmailFn     func(ctx context.Context, address domain.EmailAddress) (*domain.Recipient, error)
	ListFn           func(ctx context.Context) ([]*domain.Recipient, error)
	UpdateThreadIDFn func(ctx context.Context, recipientID string, threadID string) error
	MarkRepliedFn    func(ctx context.Context, recipientID string) error

	UpdateThreadIDCalls []string
	MarkRepliedCalls    []string
}

func (m *MockRecipientRepository) Create(ctx context.Context, recipient *domain.Recipient) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, recipient)
	}
	return nil
}

func (m *MockRecipientRepository) Update(ctx context.Context, recipient *domain.Recipient) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, recipient)
	}
	return nil
}

func (m *MockRecipientRepository) GetByID(ctx context.Context, id string) (*domain.Recipient, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, &domain.ErrNotFound{Entity: "recipient", ID: id}
}

func (m *MockRecipientRepository) GetByEmail(ctx context.Context, address domain.EmailAddress) (*domain.Recipient, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(ctx, address)
	}
	return nil, &domain.ErrNotFound{Entity: "recipient", ID: string(address)}
}

func (m *MockRecipientRepository) List(ctx context.Context) ([]*domain.Recipient, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return nil, nil
}

func (m *MockRecipientRepository) UpdateThreadID(ctx context.Context, recipientID string, threadID string) error {
	m.UpdateThreadIDCalls = append(m.UpdateThreadIDCalls, recipientID)
	if m.UpdateThreadIDFn != nil {
		return m.UpdateThreadIDFn(ctx, recipientID, threadID)
	}
	return nil
}

func (m *MockRecipientRepository) MarkReplied(ctx context.Context, recipientID string) error {
	m.MarkRepliedCalls = append(m.MarkRepliedCalls, recipientID)
	if m.MarkRepliedFn != nil {
		return m.MarkRepliedFn(ctx, recipientID)
	}
	return nil
}

type MockContactRepository struct {
	CreateFn        func(ctx context.Context, contact *domain.Contact) error
	UpdateFn        func(ctx context.Context, contact *domain.Contact) error
	GetByIDFn       func(ctx context.Context, id string) (*domain.Contact, error)
	GetBySheetRowFn func(ctx context.Context, sheetTitle string, row int) (*domain.Contact, error)
	ListFn          func(ctx context.Context) ([]*domain.Contact, error)
}

func (m *MockContactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, contact)
	}
	return nil
}

func (m *MockContactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, contact)
	}
	return nil
}

func (m *MockContactRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, &domain.ErrNotFound{Entity: "contact", ID: id}
}

func (m *MockContactRepository) GetBySheetRow(ctx context.Context, sheetTitle string, row int) (*domain.Contact, error) {
	if m.GetBySheetRowFn != nil {
		return m.GetBySheetRowFn(ctx, sheetTitle, row)
	}
	return nil, &domain.ErrNotFound{Entity: "contact", ID: sheetTitle}
}

func (m *MockContactRepository) List(ctx context.Context) ([]*domain.Contact, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return nil, nil
}

type MockTemplateRepository struct {
	CreateFn  func(ctx context.Context, template *domain.Template) error
	UpdateFn  func(ctx context.Context, template *domain.Template) error
	GetByIDFn func(ctx context.Context, id string) (*domain.Template, error)
	ListFn    func(ctx context.Context) ([]*domain.Template, error)
	DeleteFn  func(ctx context.Context, id string) error
}

func (m *MockTemplateRepository) Create(ctx context.Context, template *domain.Template) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, template)
	}
	return nil
}

func (m *MockTemplateRepository) Update(ctx context.Context, template *domain.Template) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, template)
	}
	return nil
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, &domain.ErrNotFound{Entity: "template", ID: id}
}

func (m *MockTemplateRepository) List(ctx context.Context) ([]*domain.Template, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return nil, nil
}

func (m *MockTemplateRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}

type MockPlanRepository struct {
	CreateFn  func(ctx context.Context, plan *domain.FollowUpPlan) error
	GetByIDFn func(ctx context.Context, id string) (*domain.FollowUpPlan, error)
	ListFn    func(ctx context.Context) ([]*domain.FollowUpPlan, error)
	DeleteFn  func(ctx context.Context, id string) error
}

func (m *MockPlanRepository) Create(ctx context.Context, plan *domain.FollowUpPlan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, plan)
	}
	return nil
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id string) (*domain.FollowUpPlan, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, &domain.ErrNotFound{Entity: "plan", ID: id}
}

func (m *MockPlanRepository) List(ctx context.Context) ([]*domain.FollowUpPlan, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return nil, nil
}

func (m *MockPlanRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}

type MockSpreadsheetGateway struct {
	ReadBatchFn    func(ctx context.Context, spreadsheetID string, refs []domain.SpreadsheetReference) ([]domain.ValueRange, error)
	WriteFn        func(ctx context.Context, spreadsheetID string, ref domain.SpreadsheetReference, value string) error
	WriteBatchFn   func(ctx context.Context, spreadsheetID string, refs []domain.SpreadsheetReference, values []string) error
	SearchColumnFn func(ctx context.Context, spreadsheetID string, column domain.SpreadsheetReference, value string) (*domain.SpreadsheetReference, error)

	ReadBatchCalls [][]domain.SpreadsheetReference
}

func (m *MockSpreadsheetGateway) ReadBatch(ctx context.Context, spreadsheetID string, refs []domain.SpreadsheetReference) ([]domain.ValueRange, error) {
	m.ReadBatchCalls = append(m.ReadBatchCalls, refs)
	if m.ReadBatchFn != nil {
		return m.ReadBatchFn(ctx, spreadsheetID, refs)
	}
	return make([]domain.ValueRange, len(refs)), nil
}

func (m *MockSpreadsheetGateway) Write(ctx context.Context, spreadsheetID string, ref domain.SpreadsheetReference, value string) error {
	if m.WriteFn != nil {
		return m.WriteFn(ctx, spreadsheetID, ref, value)
	}
	return nil
}

func (m *MockSpreadsheetGateway) WriteBatch(ctx context.Context, spreadsheetID string, refs []domain.SpreadsheetReference, values []string) error {
	if m.WriteBatchFn != nil {
		return m.WriteBatchFn(ctx, spreadsheetID, refs, values)
	}
	return nil
}

func (m *MockSpreadsheetGateway) SearchColumn(ctx context.Context, spreadsheetID string, column domain.SpreadsheetReference, value string) (*domain.SpreadsheetReference, error) {
	if m.SearchColumnFn != nil {
		return m.SearchColumnFn(ctx, spreadsheetID, column, value)
	}
	return nil, nil
}

type MockMailGateway struct {
	SendFn       func(ctx context.Context, email *domain.Email, threadID *string) (*domain.SendResult, error)
	SaveDraftFn  func(ctx context.Context, email *domain.Email, threadID *string) (*domain.SendResult, error)
	HasRepliesFn func(ctx context.Context, threadID string, expectedMessageCount int) (bool, error)

	SendCalls      []*domain.Email
	SaveDraftCalls []*domain.Email
}

func (m *MockMailGateway) Send(ctx context.Context, email *domain.Email, threadID *string) (*domain.SendResult, error) {
	m.SendCalls = append(m.SendCalls, email)
	if m.SendFn != nil {
		return m.SendFn(ctx, email, threadID)
	}
	return &domain.SendResult{Status: domain.SendStatusSuccess}, nil
}

func (m *MockMailGateway) SaveDraft(ctx context.Context, email *domain.Email, threadID *string) (*domain.SendResult, error) {
	m.SaveDraftCalls = append(m.SaveDraftCalls, email)
	if m.SaveDraftFn != nil {
		return m.SaveDraftFn(ctx, email, threadID)
	}
	return &domain.SendResult{Status: domain.SendStatusSuccess}, nil
}

func (m *MockMailGateway) HasReplies(ctx context.Context, threadID string, expectedMessageCount int) (bool, error) {
	if m.HasRepliesFn != nil {
		return m.HasRepliesFn(ctx, threadID, expectedMessageCount)
	}
	return false, nil
}
