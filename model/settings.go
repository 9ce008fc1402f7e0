package model

// Default entity names used as tier-3 fallbacks when the organization never
// configured explicit mappings.
const (
	DefaultContactName       = "BillsDeck Customer"
	DefaultContactEmail      = "default@billsdeck.example"
	DefaultAccountName       = "Uncategorized Expense"
	DefaultProductName       = "Sales"
	DefaultIncomeAccountName = "Services"
	DefaultBankAccountName   = "Business Bank Account"
)

// Expense and sales document type preferences.
const (
	ExpenseTypeExpense      = "expense"
	ExpenseTypeJournalEntry = "journalentry"

	SalesTypeInvoice      = "invoice"
	SalesTypeSalesReceipt = "salesreceipt"
	SalesTypeJournalEntry = "journalentry"
)

// ProviderDefaults carries the organization-wide fallback entities for one
// provider. IDs are filled in lazily the first time a default entity is
// resolved against the remote platform.
type ProviderDefaults struct {
	ContactID   string `json:"default_contact_id,omitempty"`
	ContactName string `json:"default_contact_name,omitempty"`

	AccountID   string `json:"default_account_id,omitempty"`
	AccountCode string `json:"default_account_code,omitempty"`
	AccountName string `json:"default_account_name,omitempty"`

	ProductID   string `json:"default_product_id,omitempty"`
	ProductName string `json:"default_product_name,omitempty"`

	BankAccountID   string `json:"bank_account_id,omitempty"`
	BankAccountCode string `json:"bank_account_code,omitempty"`
	BankAccountName string `json:"bank_account_name,omitempty"`
}

// Settings is an organization's sync configuration. The processor loads one
// snapshot per job; lazily-created defaults are written back through a
// conditional update, never by mutating a shared object.
type Settings struct {
	AutoCreateList     bool   `json:"auto_create_list"`
	DefaultExpenseType string `json:"default_expense_type,omitempty"`
	DefaultSalesType   string `json:"default_sales_type,omitempty"`

	Providers map[string]ProviderDefaults `json:"providers,omitempty"`
}

// DefaultSettings is the built-in configuration used when an organization has
// no settings row.
func DefaultSettings() *Settings {
	return &Settings{
		AutoCreateList:     false,
		DefaultExpenseType: ExpenseTypeExpense,
		DefaultSalesType:   SalesTypeInvoice,
		Providers:          map[string]ProviderDefaults{},
	}
}

// ExpenseType returns the organization's expense document preference.
func (s *Settings) ExpenseType() string {
	if s.DefaultExpenseType == "" {
		return ExpenseTypeExpense
	}
	return s.DefaultExpenseType
}

// SalesType returns the organization's sales document preference.
func (s *Settings) SalesType() string {
	if s.DefaultSalesType == "" {
		return SalesTypeInvoice
	}
	return s.DefaultSalesType
}

// ForProvider returns the default-entity block for a provider, zero-valued
// when unset.
func (s *Settings) ForProvider(provider string) ProviderDefaults {
	if s.Providers == nil {
		return ProviderDefaults{}
	}
	return s.Providers[provider]
}
