package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
)

const transactionColumns = `transaction_id, organization_id, payee, type, amount, tax_amount, discount_amount, tax_extracted, notes, date, status, external_id, accounting_platform, accounting_id, accounting_url, meta_data, created_at`

func (d Datasource) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE transaction_id = $1
	`, transactionColumns), transactionID)

	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", transactionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}
	return txn, nil
}

func (d Datasource) GetLineItems(ctx context.Context, transactionID string) ([]*model.LineItem, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT line_item_id, transaction_id, product_name, quantity, price, tax_rate, taxable, discount, total_amount, line_account_id, line_account_code, external_id, created_at
		FROM transaction_line_items
		WHERE transaction_id = $1
		ORDER BY id ASC
	`, transactionID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve line items", err)
	}
	defer rows.Close()

	var lines []*model.LineItem
	for rows.Next() {
		line := &model.LineItem{}
		var accountID, accountCode, externalID sql.NullString
		err = rows.Scan(
			&line.LineItemID, &line.TransactionID, &line.ProductName, &line.Quantity,
			&line.Price, &line.TaxRate, &line.Taxable, &line.Discount, &line.TotalAmount,
			&accountID, &accountCode, &externalID, &line.CreatedAt,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan line item", err)
		}
		line.LineAccountID = accountID.String
		line.LineAccountCode = accountCode.String
		line.ExternalID = externalID.String
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over line items", err)
	}
	return lines, nil
}

// MarkTransactionSynced stamps the remote ids onto a successfully synced
// transaction and moves it to synced.
func (d Datasource) MarkTransactionSynced(ctx context.Context, transactionID, externalID, accountingURL string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET external_id = $2, accounting_id = $2, accounting_url = $3, status = 'synced'
		WHERE transaction_id = $1
	`, transactionID, externalID, accountingURL)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark transaction synced", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", transactionID), nil)
	}
	return nil
}

// StampTransactionsPlatform records the chosen platform on every transaction
// of a newly submitted job.
func (d Datasource) StampTransactionsPlatform(ctx context.Context, transactionIDs []string, platform string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET accounting_platform = $2
		WHERE transaction_id = ANY($1)
	`, pq.Array(transactionIDs), platform)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to stamp transactions with platform", err)
	}
	return nil
}

// GetUnsyncedReadyTransactions lists an organization's transactions eligible
// for a bulk sync job: ready, never pushed to any platform.
func (d Datasource) GetUnsyncedReadyTransactions(ctx context.Context, organizationID string) ([]*model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE organization_id = $1 AND status = 'ready' AND external_id IS NULL
		ORDER BY created_at ASC
	`, transactionColumns), organizationID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve unsynced transactions", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		transactions = append(transactions, txn)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over transactions", err)
	}
	return transactions, nil
}

// UpdateLineItemExternal back-fills the remote line id and account reference
// matched from a create response.
func (d Datasource) UpdateLineItemExternal(ctx context.Context, lineItemID, externalID, accountID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE transaction_line_items
		SET external_id = $2, line_account_id = COALESCE(NULLIF($3, ''), line_account_id)
		WHERE line_item_id = $1
	`, lineItemID, externalID, accountID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update line item reference", err)
	}
	return nil
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	txn := &model.Transaction{}
	var notes, externalID, platform, accountingID, accountingURL sql.NullString
	var metaDataJSON []byte
	err := row.Scan(
		&txn.TransactionID, &txn.OrganizationID, &txn.Payee, &txn.Type, &txn.Amount,
		&txn.TaxAmount, &txn.DiscountAmount, &txn.TaxExtracted, &notes, &txn.Date,
		&txn.Status, &externalID, &platform, &accountingID, &accountingURL,
		&metaDataJSON, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	txn.Notes = notes.String
	txn.ExternalID = externalID.String
	txn.Platform = platform.String
	txn.AccountingID = accountingID.String
	txn.AccountingURL = accountingURL.String
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &txn.MetaData); err != nil {
			return nil, err
		}
	}
	return txn, nil
}
