package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/domain"
)

func setupRecipientMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *RecipientRepository) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return db, mock, NewRecipientRepository(db)
}

func testRecipient(t *testing.T, id string) *domain.Recipient {
	t.Helper()
	address, err := domain.NewEmailAddress("Someone@Example.com")
	require.NoError(t, err)
	return &domain.Recipient{
		ID:           id,
		EmailAddress: address,
		Metadata:     domain.RecipientMetadata{ContactID: "c1"},
	}
}

func recipientRows(recipients ...*domain.Recipient) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "email_address", "salutation", "has_replied", "initial_contact_date",
		"contact_id", "plan_id", "thread_id",
	})
	for _, r := range recipients {
		rows.AddRow(
			r.ID, r.EmailAddress, r.Salutation, r.HasReplied, r.InitialContactDate,
			r.Metadata.ContactID, r.Metadata.PlanID, r.Metadata.ThreadID,
		)
	}
	return rows
}

func TestRecipientRepository_Create(t *testing.T) {
	db, mock, repo := setupRecipientMock(t)
	defer db.Close()

	recipient := testRecipient(t, "r1")
	mock.ExpectExec(`INSERT INTO recipients`).
		WithArgs(
			recipient.ID, recipient.EmailAddress, recipient.Salutation, recipient.HasReplied,
			recipient.InitialContactDate, recipient.Metadata.ContactID, recipient.Metadata.PlanID,
			recipient.Metadata.ThreadID, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), recipient))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepository_GetByEmail(t *testing.T) {
	db, mock, repo := setupRecipientMock(t)
	defer db.Close()

	recipient := testRecipient(t, "r1")
	mock.ExpectQuery(`SELECT .* FROM recipients WHERE email_address = \$1`).
		WithArgs(recipient.EmailAddress).
		WillReturnRows(recipientRows(recipient))

	got, err := repo.GetByEmail(context.Background(), recipient.EmailAddress)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, domain.EmailAddress("someone@example.com"), got.EmailAddress)
	assert.False(t, got.HasReplied)
	assert.Nil(t, got.InitialContactDate)

	mock.ExpectQuery(`SELECT .* FROM recipients WHERE email_address = \$1`).
		WillReturnRows(recipientRows())
	_, err = repo.GetByEmail(context.Background(), "other@example.com")
	assert.True(t, domain.IsNotFound(err))
}

func TestRecipientRepository_Update(t *testing.T) {
	db, mock, repo := setupRecipientMock(t)
	defer db.Close()

	recipient := testRecipient(t, "r1")
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, recipient.SetInitialContactDate(date))

	mock.ExpectExec(`UPDATE recipients SET`).
		WithArgs(
			recipient.ID, recipient.EmailAddress, recipient.Salutation, recipient.HasReplied,
			recipient.InitialContactDate, recipient.Metadata.ContactID, recipient.Metadata.PlanID,
			recipient.Metadata.ThreadID, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), recipient))

	mock.ExpectExec(`UPDATE recipients SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), recipient)
	assert.True(t, domain.IsNotFound(err))
}

func TestRecipientRepository_UpdateThreadID(t *testing.T) {
	db, mock, repo := setupRecipientMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE recipients SET thread_id = \$2`).
		WithArgs("r1", "thread-77", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateThreadID(context.Background(), "r1", "thread-77"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepository_MarkReplied(t *testing.T) {
	db, mock, repo := setupRecipientMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE recipients SET has_replied = TRUE`).
		WithArgs("r1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkReplied(context.Background(), "r1"))

	mock.ExpectExec(`UPDATE recipients SET has_replied = TRUE`).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkReplied(context.Background(), "missing")
	assert.True(t, domain.IsNotFound(err))
}
