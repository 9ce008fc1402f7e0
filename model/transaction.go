package model

import (
	"encoding/json"
	"time"
)

// Transaction status values. The job engine only moves ready transactions to
// synced; draft transactions never reach a sync job.
const (
	TransactionStatusDraft  = "draft"
	TransactionStatusReady  = "ready"
	TransactionStatusSynced = "synced"
)

// Transaction type values.
const (
	TransactionTypeExpense = "expense"
	TransactionTypeIncome  = "income"
)

// Transaction is an externally-owned business record. Amounts are integer
// minor units; conversion to decimal major units happens only at the wire
// boundary.
type Transaction struct {
	TransactionID  string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	Payee          string                 `json:"payee"`
	Type           string                 `json:"type"`
	Amount         int64                  `json:"amount"`
	TaxAmount      int64                  `json:"tax_amount,omitempty"`
	DiscountAmount int64                  `json:"discount_amount,omitempty"`
	TaxExtracted   bool                   `json:"tax_extracted,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
	Date           time.Time              `json:"date"`
	Status         string                 `json:"status"`
	ExternalID     string                 `json:"external_id,omitempty"`
	Platform       string                 `json:"accounting_platform,omitempty"`
	AccountingID   string                 `json:"accounting_id,omitempty"`
	AccountingURL  string                 `json:"accounting_url,omitempty"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// LineItem is one line of a transaction. TotalAmount and Price are minor
// units.
type LineItem struct {
	LineItemID      string    `json:"id"`
	TransactionID   string    `json:"transaction_id"`
	ProductName     string    `json:"product_name"`
	Quantity        float64   `json:"quantity"`
	Price           int64     `json:"price"`
	TaxRate         float64   `json:"tax_rate,omitempty"`
	Taxable         bool      `json:"taxable"`
	Discount        int64     `json:"discount"`
	TotalAmount     int64     `json:"total_amount"`
	LineAccountID   string    `json:"line_account_id,omitempty"`
	LineAccountCode string    `json:"line_account_code,omitempty"`
	ExternalID      string    `json:"external_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (t *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}
