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
	"strings"

	"github.com/shopspring/decimal"

	"github.com/billsdeck/ledgersync/config"
	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/internal/request"
	"github.com/billsdeck/ledgersync/model"
)

// Platform identifies a supported accounting platform. The set is closed;
// adding a platform means adding an adapter.
type Platform string

const (
	PlatformQuickBooks Platform = "quickbooks"
	PlatformXero       Platform = "xero"
	PlatformZohoBooks  Platform = "zohobooks"
)

// ParsePlatform normalizes a raw platform string. "zoho" is accepted as an
// alias for zohobooks.
func ParsePlatform(raw string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "quickbooks":
		return PlatformQuickBooks, nil
	case "xero":
		return PlatformXero, nil
	case "zoho", "zohobooks":
		return PlatformZohoBooks, nil
	default:
		return "", apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("Unsupported platform: %s", raw), nil)
	}
}

// ContactInput describes a contact to create remotely.
type ContactInput struct {
	Name  string
	Email string
	// Type is customer or vendor; vendor when empty.
	Type string
}

// AccountInput describes a ledger account to create remotely. Type is a
// generic class (Expense, Income, Bank) each adapter maps to its own
// vocabulary.
type AccountInput struct {
	Name string
	Type string
	Code string
}

// ProductInput describes an item to create remotely. Price is minor units.
type ProductInput struct {
	Name             string
	Price            int64
	IncomeAccountID  string
	ExpenseAccountID string
}

// TaxRateInput describes a tax rate to create remotely. Rate is a percentage.
type TaxRateInput struct {
	Name string
	Rate float64
}

// TransactionInput is everything a payload builder needs: the business
// record, its lines, the resolved remote references and the document shape the
// organization prefers for this transaction type.
type TransactionInput struct {
	Transaction  *model.Transaction
	Lines        []*model.LineItem
	References   model.ResolvedReferences
	DocumentType string
}

// ResultLine is one line of a create response, carried back so local line
// items can be matched to their remote counterparts.
type ResultLine struct {
	ExternalID  string
	Description string
	AccountID   string
}

// CreateResult is the parsed outcome of a document creation.
type CreateResult struct {
	ID    string
	URL   string
	Lines []ResultLine
}

// Adapter is one platform's client surface. An adapter is bound to a single
// integration; construction fails for unknown platforms.
type Adapter interface {
	Platform() Platform

	// Query looks up one entity of the given reference kind by exact name.
	// A nil result with nil error means no match.
	Query(ctx context.Context, kind, name string) (*model.Reference, error)

	CreateContact(ctx context.Context, input ContactInput) (*model.Reference, error)
	CreateAccount(ctx context.Context, input AccountInput) (*model.Reference, error)
	CreateProduct(ctx context.Context, input ProductInput) (*model.Reference, error)
	CreateTaxRate(ctx context.Context, input TaxRateInput) (*model.Reference, error)

	CreateExpense(ctx context.Context, input *TransactionInput) (*CreateResult, error)
	CreateInvoice(ctx context.Context, input *TransactionInput) (*CreateResult, error)

	FetchAccounts(ctx context.Context) ([]model.Reference, error)
	FetchTaxRates(ctx context.Context) ([]model.Reference, error)
	FetchContacts(ctx context.Context) ([]model.Reference, error)
	FetchProducts(ctx context.Context) ([]model.Reference, error)

	RefreshToken(ctx context.Context) error
}

// Registry constructs adapters bound to integrations. One registry is shared
// per process so the token manager's refresh gate spans every worker
// goroutine.
type Registry struct {
	tokens *TokenManager
}

func NewRegistry(tokens *TokenManager) *Registry {
	return &Registry{tokens: tokens}
}

// AdapterFor builds the adapter for an integration's platform.
func (r *Registry) AdapterFor(integration *model.Integration) (Adapter, error) {
	platform, err := ParsePlatform(integration.Provider)
	if err != nil {
		return nil, err
	}

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	switch platform {
	case PlatformQuickBooks:
		return newQuickBooks(integration, conf.Providers.QuickBooks, r.tokens), nil
	case PlatformXero:
		return newXero(integration, conf.Providers.Xero, r.tokens), nil
	case PlatformZohoBooks:
		return newZohoBooks(integration, conf.Providers.ZohoBooks, r.tokens), nil
	default:
		return nil, apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("Unsupported platform: %s", platform), nil)
	}
}

// client is the token-aware HTTP core shared by every adapter. It injects the
// platform's auth scheme, refreshes ahead of expiry, and on a 401 forces one
// refresh and retries exactly once.
type client struct {
	integration *model.Integration
	creds       config.ProviderCredentials
	tokens      *TokenManager

	// scheme prefixes the Authorization header value, Bearer unless the
	// platform uses its own.
	scheme   string
	decorate func(*http.Request)
}

func (c *client) call(ctx context.Context, method, url string, payload, response interface{}) error {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.EnsureToken(ctx, c.integration, c.creds, attempt > 0)
		if err != nil {
			return err
		}

		req, err := request.New(ctx, method, url, payload)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to build provider request", err)
		}
		req.Header.Set("Authorization", c.scheme+" "+token)
		if c.decorate != nil {
			c.decorate(req)
		}

		resp, raw, callErr := request.Call(req, response)
		if resp == nil {
			return apierror.NewAPIError(apierror.ErrRemoteAPI, "Provider unreachable", callErr)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			if attempt == 0 {
				continue
			}
			return apierror.NewAPIError(apierror.ErrAuth, "Provider rejected credentials after refresh", string(raw))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return apierror.NewAPIError(apierror.ErrRemoteAPI,
				fmt.Sprintf("Provider returned %d: %s", resp.StatusCode, string(raw)), nil)
		}
		if callErr != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to decode provider response", callErr)
		}
		return nil
	}
}

// majorUnits converts integer minor units to a decimal major-unit amount for
// the wire. 12345 becomes 123.45 exactly.
func majorUnits(minor int64) float64 {
	f, _ := decimal.NewFromInt(minor).Div(decimal.NewFromInt(100)).Float64()
	return f
}

// wireDate formats a transaction date the way every supported platform
// expects it.
func wireDate(t model.Transaction) string {
	return t.Date.Format("2006-01-02")
}

// syntheticLines appends tax and discount pseudo-lines for transactions whose
// tax was extracted separately from the itemized lines. Quantity is always 1;
// discounts carry a negative amount.
func syntheticLines(txn *model.Transaction, lines []*model.LineItem) []*model.LineItem {
	out := lines
	if txn.TaxExtracted && txn.TaxAmount > 0 {
		out = append(out, &model.LineItem{
			ProductName: "tax",
			Quantity:    1,
			Price:       txn.TaxAmount,
			TotalAmount: txn.TaxAmount,
		})
	}
	if txn.DiscountAmount > 0 {
		out = append(out, &model.LineItem{
			ProductName: "discount",
			Quantity:    1,
			Price:       -txn.DiscountAmount,
			TotalAmount: -txn.DiscountAmount,
		})
	}
	return out
}
