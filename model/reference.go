package model

// Reference entity kinds resolvable against a remote platform.
const (
	ReferenceKindContact = "contact"
	ReferenceKindAccount = "account"
	ReferenceKindProduct = "product"
	ReferenceKindBank    = "bank_account"
	ReferenceKindTaxRate = "tax_rate"
)

// Reference is a remote platform's handle for a local concept. Code is only
// set where the platform models one (Xero account codes); Name and Type carry
// whatever the platform returned for bulk-synced entities.
type Reference struct {
	ID   string `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// ResolvedReferences is the set of remote ids a payload needs. Account and
// bank codes ride along for providers that address accounts by code.
type ResolvedReferences struct {
	ContactID       string
	AccountID       string
	AccountCode     string
	BankAccountID   string
	BankAccountCode string
}
