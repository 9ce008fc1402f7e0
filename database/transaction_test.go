package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/billsdeck/ledgersync/model"
)

func transactionRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"transaction_id", "organization_id", "payee", "type", "amount",
		"tax_amount", "discount_amount", "tax_extracted", "notes", "date",
		"status", "external_id", "accounting_platform", "accounting_id", "accounting_url",
		"meta_data", "created_at",
	}).AddRow(
		"txn_1", "org_1", "Acme Supplies", "expense", int64(12345),
		int64(500), int64(0), true, "office chairs", now,
		"ready", nil, nil, nil, nil,
		[]byte(`{"source":"import"}`), now,
	)
}

func TestGetTransaction(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectQuery("SELECT .* FROM transactions").
		WithArgs("txn_1").
		WillReturnRows(transactionRow())

	txn, err := d.GetTransaction(context.Background(), "txn_1")
	assert.NoError(t, err)
	assert.Equal(t, "Acme Supplies", txn.Payee)
	assert.Equal(t, int64(12345), txn.Amount)
	assert.Equal(t, "import", txn.MetaData["source"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLineItems(t *testing.T) {
	d, mock := newTestDatasource(t)

	rows := sqlmock.NewRows([]string{
		"line_item_id", "transaction_id", "product_name", "quantity", "price",
		"tax_rate", "taxable", "discount", "total_amount", "line_account_id",
		"line_account_code", "external_id", "created_at",
	}).
		AddRow("li_1", "txn_1", "Chair", 2.0, int64(5000), 10.0, true, int64(0), int64(10000), "acc_9", nil, nil, time.Now()).
		AddRow("li_2", "txn_1", "Desk", 1.0, int64(2345), 0.0, false, int64(0), int64(2345), nil, "400", nil, time.Now())

	mock.ExpectQuery("SELECT .* FROM transaction_line_items").
		WithArgs("txn_1").
		WillReturnRows(rows)

	lines, err := d.GetLineItems(context.Background(), "txn_1")
	assert.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Equal(t, "acc_9", lines[0].LineAccountID)
	assert.Equal(t, "400", lines[1].LineAccountCode)
	assert.Empty(t, lines[1].LineAccountID)
}

func TestMarkTransactionSynced(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectExec("UPDATE transactions").
		WithArgs("txn_1", "qb_88", "https://qbo.intuit.com/app/expense?txnId=88").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.MarkTransactionSynced(context.Background(), "txn_1", "qb_88", "https://qbo.intuit.com/app/expense?txnId=88")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStampTransactionsPlatform(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectExec("UPDATE transactions").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := d.StampTransactionsPlatform(context.Background(), []string{"txn_1", "txn_2"}, "xero")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUnsyncedReadyTransactions(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectQuery("SELECT .* FROM transactions").
		WithArgs("org_1").
		WillReturnRows(transactionRow())

	transactions, err := d.GetUnsyncedReadyTransactions(context.Background(), "org_1")
	assert.NoError(t, err)
	assert.Len(t, transactions, 1)
	assert.Equal(t, "ready", transactions[0].Status)
}

func TestUpdateLineItemExternal(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectExec("UPDATE transaction_line_items").
		WithArgs("li_1", "1", "acc_9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.UpdateLineItemExternal(context.Background(), "li_1", "1", "acc_9")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertReferences(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reference_entities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO reference_entities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	refs := []model.Reference{
		{ID: "acc_1", Code: "400", Name: "Office Expenses", Type: "EXPENSE"},
		{ID: "acc_2", Code: "200", Name: "Sales", Type: "REVENUE"},
	}
	err := d.UpsertReferences(context.Background(), "org_1", "xero", model.ReferenceKindAccount, refs)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReferences(t *testing.T) {
	d, mock := newTestDatasource(t)

	rows := sqlmock.NewRows([]string{"external_id", "name", "code", "type"}).
		AddRow("acc_1", "Office Expenses", "400", "EXPENSE")

	mock.ExpectQuery("SELECT .* FROM reference_entities").
		WithArgs("org_1", "xero", model.ReferenceKindAccount).
		WillReturnRows(rows)

	refs, err := d.GetReferences(context.Background(), "org_1", "xero", model.ReferenceKindAccount)
	assert.NoError(t, err)
	assert.Len(t, refs, 1)
	assert.Equal(t, "400", refs[0].Code)
}
