/*
Copyright 2025 BillsDeck Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/billsdeck/ledgersync/config"
	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
)

// ZohoBooks adapter. Every request carries the organization_id query
// parameter and the Zoho-oauthtoken auth scheme; responses wrap payloads in a
// code/message envelope where code zero means success.
type ZohoBooks struct {
	c       *client
	baseURL string
	orgID   string
}

func newZohoBooks(integration *model.Integration, creds config.ProviderCredentials, tokens *TokenManager) *ZohoBooks {
	return &ZohoBooks{
		c: &client{
			integration: integration,
			creds:       creds,
			tokens:      tokens,
			scheme:      "Zoho-oauthtoken",
		},
		baseURL: strings.TrimRight(creds.APIBaseURL, "/"),
		orgID:   integration.OrgID,
	}
}

func (z *ZohoBooks) Platform() Platform { return PlatformZohoBooks }

// endpoint appends the organization id to every URL.
func (z *ZohoBooks) endpoint(resource string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("organization_id", z.orgID)
	return z.baseURL + "/" + resource + "?" + params.Encode()
}

type zohoEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e zohoEnvelope) check() error {
	if e.Code != 0 {
		return apierror.NewAPIError(apierror.ErrRemoteAPI, fmt.Sprintf("Zoho Books error %d: %s", e.Code, e.Message), nil)
	}
	return nil
}

type zohoContact struct {
	ContactID   string `json:"contact_id,omitempty"`
	ContactName string `json:"contact_name"`
	ContactType string `json:"contact_type,omitempty"`
	Email       string `json:"email,omitempty"`
}

type zohoAccount struct {
	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name"`
	AccountType string `json:"account_type,omitempty"`
	AccountCode string `json:"account_code,omitempty"`
}

type zohoItem struct {
	ItemID   string  `json:"item_id,omitempty"`
	Name     string  `json:"name"`
	Rate     float64 `json:"rate,omitempty"`
	ItemType string  `json:"item_type,omitempty"`
}

type zohoTax struct {
	TaxID         string  `json:"tax_id,omitempty"`
	TaxName       string  `json:"tax_name"`
	TaxPercentage float64 `json:"tax_percentage"`
}

func (z *ZohoBooks) Query(ctx context.Context, kind, name string) (*model.Reference, error) {
	switch kind {
	case model.ReferenceKindContact:
		var response struct {
			zohoEnvelope
			Contacts []zohoContact `json:"contacts"`
		}
		params := url.Values{"contact_name": {name}}
		if err := z.c.call(ctx, http.MethodGet, z.endpoint("contacts", params), nil, &response); err != nil {
			return nil, err
		}
		if err := response.check(); err != nil {
			return nil, err
		}
		for _, c := range response.Contacts {
			if c.ContactName == name {
				return &model.Reference{ID: c.ContactID, Name: c.ContactName}, nil
			}
		}
		return nil, nil
	case model.ReferenceKindAccount, model.ReferenceKindBank:
		var response struct {
			zohoEnvelope
			Accounts []zohoAccount `json:"chartofaccounts"`
		}
		if err := z.c.call(ctx, http.MethodGet, z.endpoint("chartofaccounts", nil), nil, &response); err != nil {
			return nil, err
		}
		if err := response.check(); err != nil {
			return nil, err
		}
		for _, a := range response.Accounts {
			if a.AccountName == name {
				return &model.Reference{ID: a.AccountID, Code: a.AccountCode, Name: a.AccountName, Type: a.AccountType}, nil
			}
		}
		return nil, nil
	case model.ReferenceKindProduct:
		var response struct {
			zohoEnvelope
			Items []zohoItem `json:"items"`
		}
		params := url.Values{"name": {name}}
		if err := z.c.call(ctx, http.MethodGet, z.endpoint("items", params), nil, &response); err != nil {
			return nil, err
		}
		if err := response.check(); err != nil {
			return nil, err
		}
		for _, i := range response.Items {
			if i.Name == name {
				return &model.Reference{ID: i.ItemID, Name: i.Name}, nil
			}
		}
		return nil, nil
	case model.ReferenceKindTaxRate:
		var response struct {
			zohoEnvelope
			Taxes []zohoTax `json:"taxes"`
		}
		if err := z.c.call(ctx, http.MethodGet, z.endpoint("settings/taxes", nil), nil, &response); err != nil {
			return nil, err
		}
		if err := response.check(); err != nil {
			return nil, err
		}
		for _, t := range response.Taxes {
			if t.TaxName == name {
				return &model.Reference{ID: t.TaxID, Name: t.TaxName}, nil
			}
		}
		return nil, nil
	default:
		return nil, apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("Unknown reference kind: %s", kind), nil)
	}
}

func (z *ZohoBooks) CreateContact(ctx context.Context, input ContactInput) (*model.Reference, error) {
	contactType := input.Type
	if contactType == "" {
		contactType = "vendor"
	}
	payload := zohoContact{ContactName: input.Name, ContactType: contactType, Email: input.Email}

	var response struct {
		zohoEnvelope
		Contact *zohoContact `json:"contact"`
	}
	if err := z.c.call(ctx, http.MethodPost, z.endpoint("contacts", nil), payload, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	if response.Contact == nil || response.Contact.ContactID == "" {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Zoho contact creation returned no contact_id", nil)
	}
	return &model.Reference{ID: response.Contact.ContactID, Name: response.Contact.ContactName}, nil
}

func (z *ZohoBooks) CreateAccount(ctx context.Context, input AccountInput) (*model.Reference, error) {
	accountType := strings.ToLower(input.Type)
	if accountType == "" {
		accountType = "expense"
	}
	payload := zohoAccount{AccountName: input.Name, AccountType: accountType}

	var response struct {
		zohoEnvelope
		Account *zohoAccount `json:"chart_of_account"`
	}
	if err := z.c.call(ctx, http.MethodPost, z.endpoint("chartofaccounts", nil), payload, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	if response.Account == nil {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Zoho account creation returned no entity", nil)
	}
	return &model.Reference{ID: response.Account.AccountID, Name: response.Account.AccountName, Type: response.Account.AccountType}, nil
}

func (z *ZohoBooks) CreateProduct(ctx context.Context, input ProductInput) (*model.Reference, error) {
	payload := zohoItem{Name: input.Name, Rate: majorUnits(input.Price), ItemType: "service"}

	var response struct {
		zohoEnvelope
		Item *zohoItem `json:"item"`
	}
	if err := z.c.call(ctx, http.MethodPost, z.endpoint("items", nil), payload, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	if response.Item == nil || response.Item.ItemID == "" {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Zoho product creation returned no item_id", nil)
	}
	return &model.Reference{ID: response.Item.ItemID, Name: response.Item.Name}, nil
}

func (z *ZohoBooks) CreateTaxRate(ctx context.Context, input TaxRateInput) (*model.Reference, error) {
	payload := zohoTax{TaxName: input.Name, TaxPercentage: input.Rate}

	var response struct {
		zohoEnvelope
		Tax *zohoTax `json:"tax"`
	}
	if err := z.c.call(ctx, http.MethodPost, z.endpoint("settings/taxes", nil), payload, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	if response.Tax == nil {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Zoho tax creation returned no entity", nil)
	}
	return &model.Reference{ID: response.Tax.TaxID, Name: response.Tax.TaxName}, nil
}

type zohoLineItem struct {
	LineItemID string  `json:"line_item_id,omitempty"`
	AccountID  string  `json:"account_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Rate       float64 `json:"rate"`
	Quantity   float64 `json:"quantity"`
}

type zohoExpense struct {
	VendorID    string  `json:"vendor_id,omitempty"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	AccountID   string  `json:"account_id"`
	PaidThrough string  `json:"paid_through_account_id,omitempty"`
	Description string  `json:"description,omitempty"`
}

type zohoInvoice struct {
	CustomerID string         `json:"customer_id"`
	Date       string         `json:"date"`
	LineItems  []zohoLineItem `json:"line_items"`
}

type zohoJournalItem struct {
	AccountID string  `json:"account_id"`
	Debit     float64 `json:"debit,omitempty"`
	Credit    float64 `json:"credit,omitempty"`
}

type zohoJournal struct {
	JournalDate  string            `json:"journal_date"`
	JournalItems []zohoJournalItem `json:"journal_items"`
}

func (z *ZohoBooks) createJournal(ctx context.Context, input *TransactionInput) (*CreateResult, error) {
	txn := input.Transaction
	amount := majorUnits(txn.Amount)
	payload := zohoJournal{
		JournalDate: wireDate(*txn),
		JournalItems: []zohoJournalItem{
			{AccountID: input.References.AccountID, Debit: amount},
			{AccountID: input.References.BankAccountID, Credit: amount},
		},
	}

	var response struct {
		zohoEnvelope
		Journal *struct {
			JournalID string `json:"journal_id"`
		} `json:"journal"`
	}
	if err := z.c.call(ctx, http.MethodPost, z.endpoint("journals", nil), payload, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	if response.Journal == nil || response.Journal.JournalID == "" {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Zoho journal creation returned no journal_id", nil)
	}
	return &CreateResult{ID: response.Journal.JournalID}, nil
}

func (z *ZohoBooks) CreateExpense(ctx context.Context, input *TransactionInput) (*CreateResult, error) {
	if input.DocumentType == model.ExpenseTypeJournalEntry {
		return z.createJournal(ctx, input)
	}

	txn := input.Transaction
	payload := zohoExpense{
		VendorID:    input.References.ContactID,
		Date:        wireDate(*txn),
		Amount:      majorUnits(txn.Amount),
		AccountID:   input.References.AccountID,
		PaidThrough: input.References.BankAccountID,
		Description: txn.Notes,
	}

	var response struct {
		zohoEnvelope
		Expense *struct {
			ExpenseID string `json:"expense_id"`
		} `json:"expense"`
	}
	if err := z.c.call(ctx, http.MethodPost, z.endpoint("expenses", nil), payload, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	if response.Expense == nil || response.Expense.ExpenseID == "" {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Zoho expense creation returned no expense_id", nil)
	}
	return &CreateResult{ID: response.Expense.ExpenseID}, nil
}

func (z *ZohoBooks) CreateInvoice(ctx context.Context, input *TransactionInput) (*CreateResult, error) {
	if input.DocumentType == model.SalesTypeJournalEntry {
		return z.createJournal(ctx, input)
	}

	lines := syntheticLines(input.Transaction, input.Lines)
	items := make([]zohoLineItem, 0, len(lines))
	for _, item := range lines {
		accountID := item.LineAccountID
		if accountID == "" {
			accountID = input.References.AccountID
		}
		items = append(items, zohoLineItem{
			AccountID: accountID,
			Name:      item.ProductName,
			Rate:      majorUnits(item.Price),
			Quantity:  item.Quantity,
		})
	}
	payload := zohoInvoice{
		CustomerID: input.References.ContactID,
		Date:       wireDate(*input.Transaction),
		LineItems:  items,
	}

	var response struct {
		zohoEnvelope
		Invoice *struct {
			InvoiceID  string         `json:"invoice_id"`
			InvoiceURL string         `json:"invoice_url"`
			LineItems  []zohoLineItem `json:"line_items"`
		} `json:"invoice"`
	}
	if err := z.c.call(ctx, http.MethodPost, z.endpoint("invoices", nil), payload, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	if response.Invoice == nil || response.Invoice.InvoiceID == "" {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Zoho invoice creation returned no invoice_id", nil)
	}

	result := &CreateResult{ID: response.Invoice.InvoiceID, URL: response.Invoice.InvoiceURL}
	for _, line := range response.Invoice.LineItems {
		result.Lines = append(result.Lines, ResultLine{
			ExternalID:  line.LineItemID,
			Description: line.Name,
			AccountID:   line.AccountID,
		})
	}
	return result, nil
}

func (z *ZohoBooks) FetchAccounts(ctx context.Context) ([]model.Reference, error) {
	var response struct {
		zohoEnvelope
		Accounts []zohoAccount `json:"chartofaccounts"`
	}
	if err := z.c.call(ctx, http.MethodGet, z.endpoint("chartofaccounts", nil), nil, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	refs := make([]model.Reference, 0, len(response.Accounts))
	for _, a := range response.Accounts {
		refs = append(refs, model.Reference{ID: a.AccountID, Code: a.AccountCode, Name: a.AccountName, Type: a.AccountType})
	}
	return refs, nil
}

func (z *ZohoBooks) FetchTaxRates(ctx context.Context) ([]model.Reference, error) {
	var response struct {
		zohoEnvelope
		Taxes []zohoTax `json:"taxes"`
	}
	if err := z.c.call(ctx, http.MethodGet, z.endpoint("settings/taxes", nil), nil, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	refs := make([]model.Reference, 0, len(response.Taxes))
	for _, t := range response.Taxes {
		refs = append(refs, model.Reference{ID: t.TaxID, Name: t.TaxName})
	}
	return refs, nil
}

func (z *ZohoBooks) FetchContacts(ctx context.Context) ([]model.Reference, error) {
	var response struct {
		zohoEnvelope
		Contacts []zohoContact `json:"contacts"`
	}
	if err := z.c.call(ctx, http.MethodGet, z.endpoint("contacts", nil), nil, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	refs := make([]model.Reference, 0, len(response.Contacts))
	for _, c := range response.Contacts {
		refs = append(refs, model.Reference{ID: c.ContactID, Name: c.ContactName})
	}
	return refs, nil
}

func (z *ZohoBooks) FetchProducts(ctx context.Context) ([]model.Reference, error) {
	var response struct {
		zohoEnvelope
		Items []zohoItem `json:"items"`
	}
	if err := z.c.call(ctx, http.MethodGet, z.endpoint("items", nil), nil, &response); err != nil {
		return nil, err
	}
	if err := response.check(); err != nil {
		return nil, err
	}
	refs := make([]model.Reference, 0, len(response.Items))
	for _, i := range response.Items {
		refs = append(refs, model.Reference{ID: i.ItemID, Name: i.Name})
	}
	return refs, nil
}

func (z *ZohoBooks) RefreshToken(ctx context.Context) error {
	_, err := z.c.tokens.refresh(ctx, z.c.integration, z.c.creds, true)
	return err
}
