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

	"github.com/wacul/ptr"

	"github.com/billsdeck/ledgersync/config"
	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
)

// QuickBooks adapter. Entities are addressed through the v3 company API under
// the integration's realm; lookups go through the SQL-ish query endpoint.
type QuickBooks struct {
	c       *client
	baseURL string
	realmID string
}

func newQuickBooks(integration *model.Integration, creds config.ProviderCredentials, tokens *TokenManager) *QuickBooks {
	return &QuickBooks{
		c: &client{
			integration: integration,
			creds:       creds,
			tokens:      tokens,
			scheme:      "Bearer",
		},
		baseURL: strings.TrimRight(creds.APIBaseURL, "/"),
		realmID: integration.RealmID,
	}
}

func (q *QuickBooks) Platform() Platform { return PlatformQuickBooks }

func (q *QuickBooks) endpoint(resource string) string {
	return fmt.Sprintf("%s/v3/company/%s/%s", q.baseURL, q.realmID, resource)
}

type qbRef struct {
	Value string `json:"value"`
}

type qbNamedEntity struct {
	ID          string `json:"Id"`
	Name        string `json:"Name,omitempty"`
	DisplayName string `json:"DisplayName,omitempty"`
	AcctNum     string `json:"AcctNum,omitempty"`
	AccountType string `json:"AccountType,omitempty"`
}

func (e qbNamedEntity) reference() *model.Reference {
	name := e.Name
	if name == "" {
		name = e.DisplayName
	}
	return &model.Reference{ID: e.ID, Name: name, Code: e.AcctNum, Type: e.AccountType}
}

type qbQueryResponse struct {
	QueryResponse struct {
		Customer []qbNamedEntity `json:"Customer,omitempty"`
		Vendor   []qbNamedEntity `json:"Vendor,omitempty"`
		Account  []qbNamedEntity `json:"Account,omitempty"`
		Item     []qbNamedEntity `json:"Item,omitempty"`
		TaxCode  []qbNamedEntity `json:"TaxCode,omitempty"`
	} `json:"QueryResponse"`
}

func (r qbQueryResponse) entities(table string) []qbNamedEntity {
	switch table {
	case "Customer":
		return r.QueryResponse.Customer
	case "Vendor":
		return r.QueryResponse.Vendor
	case "Account":
		return r.QueryResponse.Account
	case "Item":
		return r.QueryResponse.Item
	case "TaxCode":
		return r.QueryResponse.TaxCode
	}
	return nil
}

// escapeQBName escapes single quotes for the query grammar.
func escapeQBName(name string) string {
	return strings.ReplaceAll(name, "'", "\\'")
}

func (q *QuickBooks) runQuery(ctx context.Context, query string) (*qbQueryResponse, error) {
	var response qbQueryResponse
	u := q.endpoint("query") + "?query=" + url.QueryEscape(query)
	if err := q.c.call(ctx, http.MethodGet, u, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (q *QuickBooks) Query(ctx context.Context, kind, name string) (*model.Reference, error) {
	var table, field string
	switch kind {
	case model.ReferenceKindContact:
		table, field = "Customer", "DisplayName"
	case model.ReferenceKindAccount, model.ReferenceKindBank:
		table, field = "Account", "Name"
	case model.ReferenceKindProduct:
		table, field = "Item", "Name"
	case model.ReferenceKindTaxRate:
		table, field = "TaxCode", "Name"
	default:
		return nil, apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("Unknown reference kind: %s", kind), nil)
	}

	response, err := q.runQuery(ctx, fmt.Sprintf("select * from %s where %s = '%s' maxresults 1", table, field, escapeQBName(name)))
	if err != nil {
		return nil, err
	}
	entities := response.entities(table)
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0].reference(), nil
}

type qbEntityResponse struct {
	Customer *qbNamedEntity `json:"Customer,omitempty"`
	Vendor   *qbNamedEntity `json:"Vendor,omitempty"`
	Account  *qbNamedEntity `json:"Account,omitempty"`
	Item     *qbNamedEntity `json:"Item,omitempty"`
}

func (q *QuickBooks) CreateContact(ctx context.Context, input ContactInput) (*model.Reference, error) {
	payload := map[string]interface{}{
		"DisplayName": input.Name,
	}
	if input.Email != "" {
		payload["PrimaryEmailAddr"] = map[string]string{"Address": input.Email}
	}

	resource := "vendor"
	if input.Type == "customer" {
		resource = "customer"
	}

	var response qbEntityResponse
	if err := q.c.call(ctx, http.MethodPost, q.endpoint(resource), payload, &response); err != nil {
		return nil, err
	}
	entity := response.Vendor
	if resource == "customer" {
		entity = response.Customer
	}
	if entity == nil {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "QuickBooks contact creation returned no entity", nil)
	}
	return entity.reference(), nil
}

func (q *QuickBooks) CreateAccount(ctx context.Context, input AccountInput) (*model.Reference, error) {
	accountType := input.Type
	if accountType == "" {
		accountType = "Expense"
	}
	payload := map[string]interface{}{
		"Name":        input.Name,
		"AccountType": accountType,
	}

	var response qbEntityResponse
	if err := q.c.call(ctx, http.MethodPost, q.endpoint("account"), payload, &response); err != nil {
		return nil, err
	}
	if response.Account == nil {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "QuickBooks account creation returned no entity", nil)
	}
	return response.Account.reference(), nil
}

func (q *QuickBooks) CreateProduct(ctx context.Context, input ProductInput) (*model.Reference, error) {
	payload := map[string]interface{}{
		"Name": input.Name,
		"Type": "Service",
	}
	if input.IncomeAccountID != "" {
		payload["IncomeAccountRef"] = qbRef{Value: input.IncomeAccountID}
	}
	if input.ExpenseAccountID != "" {
		payload["ExpenseAccountRef"] = qbRef{Value: input.ExpenseAccountID}
	}

	var response qbEntityResponse
	if err := q.c.call(ctx, http.MethodPost, q.endpoint("item"), payload, &response); err != nil {
		return nil, err
	}
	if response.Item == nil {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, "QuickBooks product creation returned no entity", nil)
	}
	return response.Item.reference(), nil
}

func (q *QuickBooks) CreateTaxRate(ctx context.Context, input TaxRateInput) (*model.Reference, error) {
	payload := map[string]interface{}{
		"TaxCode": input.Name,
		"TaxRateDetails": []map[string]interface{}{
			{"TaxRateName": input.Name, "RateValue": input.Rate, "TaxAgencyId": "1", "TaxApplicableOn": "Sales"},
		},
	}

	var response struct {
		TaxCodeID string `json:"TaxCodeId"`
	}
	if err := q.c.call(ctx, http.MethodPost, q.endpoint("taxservice/taxcode"), payload, &response); err != nil {
		return nil, err
	}
	return &model.Reference{ID: response.TaxCodeID, Name: input.Name}, nil
}

// Wire shapes for document creation.
type qbLine struct {
	Description                   string      `json:"Description,omitempty"`
	Amount                        float64     `json:"Amount"`
	DetailType                    string      `json:"DetailType"`
	AccountBasedExpenseLineDetail *qbAcctLine `json:"AccountBasedExpenseLineDetail,omitempty"`
	SalesItemLineDetail           *qbItemLine `json:"SalesItemLineDetail,omitempty"`
	JournalEntryLineDetail        *qbJrnlLine `json:"JournalEntryLineDetail,omitempty"`
}

type qbAcctLine struct {
	AccountRef qbRef `json:"AccountRef"`
}

type qbItemLine struct {
	ItemRef   qbRef    `json:"ItemRef"`
	Qty       *float64 `json:"Qty,omitempty"`
	UnitPrice *float64 `json:"UnitPrice,omitempty"`
}

type qbJrnlLine struct {
	PostingType string `json:"PostingType"`
	AccountRef  qbRef  `json:"AccountRef"`
}

type qbPurchase struct {
	PaymentType string   `json:"PaymentType"`
	Line        []qbLine `json:"Line"`
	VendorRef   qbRef    `json:"VendorRef"`
	AccountRef  qbRef    `json:"AccountRef"`
	TxnDate     string   `json:"TxnDate"`
	PrivateNote string   `json:"PrivateNote,omitempty"`
}

type qbInvoice struct {
	Line        []qbLine `json:"Line"`
	CustomerRef qbRef    `json:"CustomerRef"`
	TxnDate     string   `json:"TxnDate"`
	PrivateNote string   `json:"PrivateNote,omitempty"`
}

type qbSalesReceipt struct {
	Line                []qbLine `json:"Line"`
	CustomerRef         qbRef    `json:"CustomerRef"`
	DepositToAccountRef qbRef    `json:"DepositToAccountRef"`
	TxnDate             string   `json:"TxnDate"`
}

type qbJournal struct {
	Line []qbLine `json:"Line"`
}

func qbExpenseLines(input *TransactionInput) []qbLine {
	lines := syntheticLines(input.Transaction, input.Lines)
	out := make([]qbLine, 0, len(lines))
	for _, item := range lines {
		accountID := item.LineAccountID
		if accountID == "" {
			accountID = input.References.AccountID
		}
		out = append(out, qbLine{
			Description: item.ProductName,
			Amount:      majorUnits(item.TotalAmount),
			DetailType:  "AccountBasedExpenseLineDetail",
			AccountBasedExpenseLineDetail: &qbAcctLine{
				AccountRef: qbRef{Value: accountID},
			},
		})
	}
	return out
}

func qbSalesLines(input *TransactionInput) []qbLine {
	lines := syntheticLines(input.Transaction, input.Lines)
	out := make([]qbLine, 0, len(lines))
	for _, item := range lines {
		itemID := item.LineAccountID
		if itemID == "" {
			itemID = input.References.AccountID
		}
		out = append(out, qbLine{
			Description: item.ProductName,
			Amount:      majorUnits(item.TotalAmount),
			DetailType:  "SalesItemLineDetail",
			SalesItemLineDetail: &qbItemLine{
				ItemRef:   qbRef{Value: itemID},
				Qty:       ptr.Float64(item.Quantity),
				UnitPrice: ptr.Float64(majorUnits(item.Price)),
			},
		})
	}
	return out
}

func qbJournalLines(input *TransactionInput) []qbLine {
	txn := input.Transaction
	amount := majorUnits(txn.Amount)
	return []qbLine{
		{
			Description: txn.Payee,
			Amount:      amount,
			DetailType:  "JournalEntryLineDetail",
			JournalEntryLineDetail: &qbJrnlLine{
				PostingType: "Debit",
				AccountRef:  qbRef{Value: input.References.AccountID},
			},
		},
		{
			Description: txn.Payee,
			Amount:      amount,
			DetailType:  "JournalEntryLineDetail",
			JournalEntryLineDetail: &qbJrnlLine{
				PostingType: "Credit",
				AccountRef:  qbRef{Value: input.References.BankAccountID},
			},
		},
	}
}

type qbDocument struct {
	ID   string `json:"Id"`
	Line []struct {
		ID                            string      `json:"Id"`
		Description                   string      `json:"Description"`
		AccountBasedExpenseLineDetail *qbAcctLine `json:"AccountBasedExpenseLineDetail,omitempty"`
		SalesItemLineDetail           *qbItemLine `json:"SalesItemLineDetail,omitempty"`
	} `json:"Line"`
}

type qbDocumentResponse struct {
	Purchase     *qbDocument `json:"Purchase,omitempty"`
	Invoice      *qbDocument `json:"Invoice,omitempty"`
	SalesReceipt *qbDocument `json:"SalesReceipt,omitempty"`
	JournalEntry *qbDocument `json:"JournalEntry,omitempty"`
}

func (r qbDocumentResponse) document() *qbDocument {
	switch {
	case r.Purchase != nil:
		return r.Purchase
	case r.Invoice != nil:
		return r.Invoice
	case r.SalesReceipt != nil:
		return r.SalesReceipt
	case r.JournalEntry != nil:
		return r.JournalEntry
	}
	return nil
}

func (q *QuickBooks) createDocument(ctx context.Context, resource string, payload interface{}) (*CreateResult, error) {
	var response qbDocumentResponse
	if err := q.c.call(ctx, http.MethodPost, q.endpoint(resource), payload, &response); err != nil {
		return nil, err
	}
	doc := response.document()
	if doc == nil {
		return nil, apierror.NewAPIError(apierror.ErrRemoteAPI, fmt.Sprintf("QuickBooks %s creation returned no entity", resource), nil)
	}

	result := &CreateResult{
		ID:  doc.ID,
		URL: fmt.Sprintf("https://app.qbo.intuit.com/app/%s?txnId=%s", resource, doc.ID),
	}
	for _, line := range doc.Line {
		rl := ResultLine{ExternalID: line.ID, Description: line.Description}
		if line.AccountBasedExpenseLineDetail != nil {
			rl.AccountID = line.AccountBasedExpenseLineDetail.AccountRef.Value
		}
		if line.SalesItemLineDetail != nil {
			rl.AccountID = line.SalesItemLineDetail.ItemRef.Value
		}
		result.Lines = append(result.Lines, rl)
	}
	return result, nil
}

func (q *QuickBooks) CreateExpense(ctx context.Context, input *TransactionInput) (*CreateResult, error) {
	if input.DocumentType == model.ExpenseTypeJournalEntry {
		return q.createDocument(ctx, "journalentry", qbJournal{Line: qbJournalLines(input)})
	}
	return q.createDocument(ctx, "purchase", qbPurchase{
		PaymentType: "Cash",
		Line:        qbExpenseLines(input),
		VendorRef:   qbRef{Value: input.References.ContactID},
		AccountRef:  qbRef{Value: input.References.BankAccountID},
		TxnDate:     wireDate(*input.Transaction),
		PrivateNote: input.Transaction.Notes,
	})
}

func (q *QuickBooks) CreateInvoice(ctx context.Context, input *TransactionInput) (*CreateResult, error) {
	switch input.DocumentType {
	case model.SalesTypeJournalEntry:
		return q.createDocument(ctx, "journalentry", qbJournal{Line: qbJournalLines(input)})
	case model.SalesTypeSalesReceipt:
		return q.createDocument(ctx, "salesreceipt", qbSalesReceipt{
			Line:                qbSalesLines(input),
			CustomerRef:         qbRef{Value: input.References.ContactID},
			DepositToAccountRef: qbRef{Value: input.References.BankAccountID},
			TxnDate:             wireDate(*input.Transaction),
		})
	default:
		return q.createDocument(ctx, "invoice", qbInvoice{
			Line:        qbSalesLines(input),
			CustomerRef: qbRef{Value: input.References.ContactID},
			TxnDate:     wireDate(*input.Transaction),
			PrivateNote: input.Transaction.Notes,
		})
	}
}

func (q *QuickBooks) fetchAll(ctx context.Context, table string) ([]model.Reference, error) {
	response, err := q.runQuery(ctx, fmt.Sprintf("select * from %s maxresults 500", table))
	if err != nil {
		return nil, err
	}
	entities := response.entities(table)
	refs := make([]model.Reference, 0, len(entities))
	for _, e := range entities {
		refs = append(refs, *e.reference())
	}
	return refs, nil
}

func (q *QuickBooks) FetchAccounts(ctx context.Context) ([]model.Reference, error) {
	return q.fetchAll(ctx, "Account")
}

func (q *QuickBooks) FetchTaxRates(ctx context.Context) ([]model.Reference, error) {
	return q.fetchAll(ctx, "TaxCode")
}

func (q *QuickBooks) FetchContacts(ctx context.Context) ([]model.Reference, error) {
	return q.fetchAll(ctx, "Vendor")
}

func (q *QuickBooks) FetchProducts(ctx context.Context) ([]model.Reference, error) {
	return q.fetchAll(ctx, "Item")
}

func (q *QuickBooks) RefreshToken(ctx context.Context) error {
	_, err := q.c.tokens.refresh(ctx, q.c.integration, q.c.creds, true)
	return err
}
