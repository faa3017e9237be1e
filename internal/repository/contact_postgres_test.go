package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/domain"
)

func setupContactMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *ContactRepository) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return db, mock, NewContactRepository(db)
}

func TestContactRepository_CreateAndGetBySheetRow(t *testing.T) {
	db, mock, repo := setupContactMock(t)
	defer db.Close()

	row, err := domain.NewRowReferenceFromNumber(7)
	require.NoError(t, err)
	name := "Acme GmbH"
	contact := &domain.Contact{
		ID:         "c1",
		SheetTitle: "Leads",
		Row:        row,
		Name:       &name,
	}

	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs("c1", "Leads", 7, &name, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(context.Background(), contact))

	rows := sqlmock.NewRows([]string{"id", "sheet_title", "row_number", "name", "website", "phone"}).
		AddRow("c1", "Leads", 7, name, nil, nil)
	mock.ExpectQuery(`SELECT .* FROM contacts WHERE sheet_title = \$1 AND row_number = \$2`).
		WithArgs("Leads", 7).
		WillReturnRows(rows)

	got, err := repo.GetBySheetRow(context.Background(), "Leads", 7)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	gotRow, err := got.Row.RowNumber()
	require.NoError(t, err)
	assert.Equal(t, 7, gotRow)
	require.NotNil(t, got.Name)
	assert.Equal(t, name, *got.Name)
	assert.Nil(t, got.Website)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_GetBySheetRowNotFound(t *testing.T) {
	db, mock, repo := setupContactMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM contacts WHERE sheet_title = \$1 AND row_number = \$2`).
		WithArgs("Leads", 99).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sheet_title", "row_number", "name", "website", "phone"}))

	_, err := repo.GetBySheetRow(context.Background(), "Leads", 99)
	assert.True(t, domain.IsNotFound(err))
}
