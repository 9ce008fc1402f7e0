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

// Xero adapter. Every request carries the tenant header; accounts are
// addressed by code on document lines, not by id.
type Xero struct {
	c       *client
	baseURL string
}

func newXero(integration *model.Integration, creds config.ProviderCredentials, tokens *TokenManager) *Xero {
	tenantID := integration.TenantID
	return &Xero{
		c: &client{
			integration: integration,
			creds:       creds,
			tokens:      tokens,
			scheme:      "Bearer",
			decorate: func(req *http.Request) {
				req.Header.Set("Xero-Tenant-Id", tenantID)
			},
		},
		baseURL: strings.TrimRight(creds.APIBaseURL, "/"),
	}
}

func (x *Xero) Platform() Platform { return PlatformXero }

func (x *Xero) endpoint(resource string) string {
	return x.baseURL + "/" + resource
}

type xeroContact struct {
	ContactID    string `json:"ContactID,omitempty"`
	Name         string `json:"Name"`
	EmailAddress string `json:"EmailAddress,omitempty"`
}

type xeroAccount struct {
	AccountID string `json:"AccountID,omitempty"`
	Code      string `json:"Code,omitempty"`
	Name      string `json:"Name"`
	Type      string `json:"Type,omitempty"`
}

type xeroItem struct {
	ItemID string `json:"ItemID,omitempty"`
	Code   string `json:"Code,omitempty"`
	Name   string `json:"Name"`
}

type xeroTaxRate struct {
	Name          string  `json:"Name"`
	TaxType       string  `json:"TaxType,omitempty"`
	EffectiveRate float64 `json:"EffectiveRate,omitempty"`
}

type xeroEnvelope struct {
	Contacts []xeroContact `json:"Contacts,omitempty"`
	Accounts []xeroAccount `json:"Accounts,omitempty"`
	Items    []xeroItem    `json:"Items,omitempty"`
	TaxRates []xeroTaxRate `json:"TaxRates,omitempty"`
}

// escapeXeroName escapes double quotes for where-clause literals.
func escapeXeroName(name string) string {
	return strings.ReplaceAll(name, `"`, `\"`)
}

func (x *Xero) Query(ctx context.Context, kind, name string) (*model.Reference, error) {
	var resource string
	switch kind {
	case model.ReferenceKindContact:
		resource = "Contacts"
	case model.ReferenceKindAccount, model.ReferenceKindBank:
		resource = "Accounts"
	case model.ReferenceKindProduct:
		resource = "Items"
	case model.ReferenceKindTaxRate:
		resource = "TaxRates"
	default:
		return nil, apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("Unknown reference kind: %s", kind), nil)
	}

	where := url.QueryEscape(fmt.Sprintf(`Name=="%s"`, escapeXeroName(name)))
	var response xeroEnvelope
	if err := x.c.call(ctx, http.MethodGet, x.endpoint(resource)+"?where="+where, nil, &response); err != nil {
		return nil, err
	}

	switch resource {
	case "Contacts":
		if len(response.Contacts) > 0 {
			c := response.Contacts[0]
			return &model.Reference{ID: c.ContactID, Name: c.Name}, nil
		}
	case "Accounts":
		if len(response.Accounts) > 0 {
			a := response.Accounts[0]
			return &model.Reference{ID: a.AccountID, Code: a.Code, Name: a.Name, Type: a.Type}, nil
		}
	case "Items":
		if len(response.Items) > 0 {
			i := response.Items[0]
			return &model.Reference{ID: i.ItemID, Code: i.Code, Name: i.Name}, nil
		}
	case "TaxRates":
		if len(response.TaxRates) > 0 {
			t := response.TaxRates[0]
			return &model.Reference{ID: t.TaxType, Name: t.Name}, nil
		}
	}
	return nil, nil
}

func (x *Xero) CreateContact(ctx context.Context, input ContactInput) (*model.Reference, error) {
	payload := xeroEnvelope{Contacts: []xeroContact{{Name: input.Name, EmailAddress: input.Email}}}
	var response xeroEnvelope
	if err := x.c.call(ctx, http.MethodPost, x.endpoint("Contacts"), payload, &response); err != nil {
		return nil, err
	}
	if len(response.Contacts) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Xero contact creation returned no entity", nil)
	}
	return &model.Reference{ID: response.Contacts[0].ContactID, Name: response.Contacts[0].Name}, nil
}

// xeroAccountType maps the generic account class to Xero's vocabulary.
func xeroAccountType(generic string) string {
	switch strings.ToLower(generic) {
	case "income":
		return "REVENUE"
	case "bank":
		return "BANK"
	case "":
		return "EXPENSE"
	default:
		return strings.ToUpper(generic)
	}
}

func (x *Xero) CreateAccount(ctx context.Context, input AccountInput) (*model.Reference, error) {
	payload := xeroEnvelope{Accounts: []xeroAccount{{
		Code: input.Code,
		Name: input.Name,
		Type: xeroAccountType(input.Type),
	}}}
	var response xeroEnvelope
	if err := x.c.call(ctx, http.MethodPost, x.endpoint("Accounts"), payload, &response); err != nil {
		return nil, err
	}
	if len(response.Accounts) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Xero account creation returned no entity", nil)
	}
	a := response.Accounts[0]
	return &model.Reference{ID: a.AccountID, Code: a.Code, Name: a.Name, Type: a.Type}, nil
}

func (x *Xero) CreateProduct(ctx context.Context, input ProductInput) (*model.Reference, error) {
	payload := xeroEnvelope{Items: []xeroItem{{Code: input.Name, Name: input.Name}}}
	var response xeroEnvelope
	if err := x.c.call(ctx, http.MethodPost, x.endpoint("Items"), payload, &response); err != nil {
		return nil, err
	}
	if len(response.Items) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Xero product creation returned no entity", nil)
	}
	i := response.Items[0]
	return &model.Reference{ID: i.ItemID, Code: i.Code, Name: i.Name}, nil
}

func (x *Xero) CreateTaxRate(ctx context.Context, input TaxRateInput) (*model.Reference, error) {
	payload := xeroEnvelope{TaxRates: []xeroTaxRate{{Name: input.Name, EffectiveRate: input.Rate}}}
	var response xeroEnvelope
	if err := x.c.call(ctx, http.MethodPost, x.endpoint("TaxRates"), payload, &response); err != nil {
		return nil, err
	}
	if len(response.TaxRates) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Xero tax rate creation returned no entity", nil)
	}
	t := response.TaxRates[0]
	return &model.Reference{ID: t.TaxType, Name: t.Name}, nil
}

type xeroLineItem struct {
	LineItemID  string  `json:"LineItemID,omitempty"`
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	AccountCode string  `json:"AccountCode,omitempty"`
}

type xeroContactRef struct {
	ContactID string `json:"ContactID"`
}

type xeroInvoice struct {
	Type      string         `json:"Type"`
	Contact   xeroContactRef `json:"Contact"`
	InvoiceID string         `json:"InvoiceID,omitempty"`
	Date      string         `json:"Date"`
	LineItems []xeroLineItem `json:"LineItems"`
	Status    string         `json:"Status"`
}

type xeroJournalLine struct {
	Description string  `json:"Description"`
	LineAmount  float64 `json:"LineAmount"`
	AccountCode string  `json:"AccountCode"`
}

type xeroManualJournal struct {
	ManualJournalID string            `json:"ManualJournalID,omitempty"`
	Narration       string            `json:"Narration,omitempty"`
	Date            string            `json:"Date"`
	Status          string            `json:"Status"`
	JournalLines    []xeroJournalLine `json:"JournalLines"`
}

type xeroDocEnvelope struct {
	Invoices       []xeroInvoice       `json:"Invoices,omitempty"`
	ManualJournals []xeroManualJournal `json:"ManualJournals,omitempty"`
}

func xeroLines(input *TransactionInput) []xeroLineItem {
	lines := syntheticLines(input.Transaction, input.Lines)
	out := make([]xeroLineItem, 0, len(lines))
	for _, item := range lines {
		code := item.LineAccountCode
		if code == "" {
			code = input.References.AccountCode
		}
		out = append(out, xeroLineItem{
			Description: item.ProductName,
			Quantity:    item.Quantity,
			UnitAmount:  majorUnits(item.Price),
			AccountCode: code,
		})
	}
	return out
}

func (x *Xero) createInvoiceDoc(ctx context.Context, input *TransactionInput, invoiceType string) (*CreateResult, error) {
	doc := xeroInvoice{
		Type:      invoiceType,
		Contact:   xeroContactRef{ContactID: input.References.ContactID},
		Date:      wireDate(*input.Transaction),
		LineItems: xeroLines(input),
		Status:    "AUTHORISED",
	}

	var response xeroDocEnvelope
	if err := x.c.call(ctx, http.MethodPost, x.endpoint("Invoices"), xeroDocEnvelope{Invoices: []xeroInvoice{doc}}, &response); err != nil {
		return nil, err
	}
	if len(response.Invoices) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Xero invoice creation returned no entity", nil)
	}

	created := response.Invoices[0]
	view := "AccountsReceivable"
	if invoiceType == "ACCPAY" {
		view = "AccountsPayable"
	}
	result := &CreateResult{
		ID:  created.InvoiceID,
		URL: fmt.Sprintf("https://go.xero.com/%s/View.aspx?InvoiceID=%s", view, created.InvoiceID),
	}
	for _, line := range created.LineItems {
		result.Lines = append(result.Lines, ResultLine{
			ExternalID:  line.LineItemID,
			Description: line.Description,
		})
	}
	return result, nil
}

func (x *Xero) createJournal(ctx context.Context, input *TransactionInput) (*CreateResult, error) {
	txn := input.Transaction
	amount := majorUnits(txn.Amount)
	doc := xeroManualJournal{
		Narration: txn.Payee,
		Date:      wireDate(*txn),
		Status:    "POSTED",
		JournalLines: []xeroJournalLine{
			{Description: txn.Payee, LineAmount: amount, AccountCode: input.References.AccountCode},
			{Description: txn.Payee, LineAmount: -amount, AccountCode: input.References.BankAccountCode},
		},
	}

	var response xeroDocEnvelope
	if err := x.c.call(ctx, http.MethodPost, x.endpoint("ManualJournals"), xeroDocEnvelope{ManualJournals: []xeroManualJournal{doc}}, &response); err != nil {
		return nil, err
	}
	if len(response.ManualJournals) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "Xero journal creation returned no entity", nil)
	}
	return &CreateResult{ID: response.ManualJournals[0].ManualJournalID}, nil
}

func (x *Xero) CreateExpense(ctx context.Context, input *TransactionInput) (*CreateResult, error) {
	if input.DocumentType == model.ExpenseTypeJournalEntry {
		return x.createJournal(ctx, input)
	}
	return x.createInvoiceDoc(ctx, input, "ACCPAY")
}

func (x *Xero) CreateInvoice(ctx context.Context, input *TransactionInput) (*CreateResult, error) {
	if input.DocumentType == model.SalesTypeJournalEntry {
		return x.createJournal(ctx, input)
	}
	return x.createInvoiceDoc(ctx, input, "ACCREC")
}

func (x *Xero) FetchAccounts(ctx context.Context) ([]model.Reference, error) {
	var response xeroEnvelope
	if err := x.c.call(ctx, http.MethodGet, x.endpoint("Accounts"), nil, &response); err != nil {
		return nil, err
	}
	refs := make([]model.Reference, 0, len(response.Accounts))
	for _, a := range response.Accounts {
		refs = append(refs, model.Reference{ID: a.AccountID, Code: a.Code, Name: a.Name, Type: a.Type})
	}
	return refs, nil
}

func (x *Xero) FetchTaxRates(ctx context.Context) ([]model.Reference, error) {
	var response xeroEnvelope
	if err := x.c.call(ctx, http.MethodGet, x.endpoint("TaxRates"), nil, &response); err != nil {
		return nil, err
	}
	refs := make([]model.Reference, 0, len(response.TaxRates))
	for _, t := range response.TaxRates {
		refs = append(refs, model.Reference{ID: t.TaxType, Name: t.Name})
	}
	return refs, nil
}

func (x *Xero) FetchContacts(ctx context.Context) ([]model.Reference, error) {
	var response xeroEnvelope
	if err := x.c.call(ctx, http.MethodGet, x.endpoint("Contacts"), nil, &response); err != nil {
		return nil, err
	}
	refs := make([]model.Reference, 0, len(response.Contacts))
	for _, c := range response.Contacts {
		refs = append(refs, model.Reference{ID: c.ContactID, Name: c.Name})
	}
	return refs, nil
}

func (x *Xero) FetchProducts(ctx context.Context) ([]model.Reference, error) {
	var response xeroEnvelope
	if err := x.c.call(ctx, http.MethodGet, x.endpoint("Items"), nil, &response); err != nil {
		return nil, err
	}
	refs := make([]model.Reference, 0, len(response.Items))
	for _, i := range response.Items {
		refs = append(refs, model.Reference{ID: i.ItemID, Code: i.Code, Name: i.Name})
	}
	return refs, nil
}

func (x *Xero) RefreshToken(ctx context.Context) error {
	_, err := x.c.tokens.refresh(ctx, x.c.integration, x.c.creds, true)
	return err
}
