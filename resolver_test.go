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

package ledgersync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/billsdeck/ledgersync/database/mocks"
	"github.com/billsdeck/ledgersync/model"
	"github.com/billsdeck/ledgersync/provider"
)

// fakeAdapter stubs the platform client surface with function fields so each
// test controls only the calls it cares about.
type fakeAdapter struct {
	queryFn         func(kind, name string) (*model.Reference, error)
	createContactFn func(input provider.ContactInput) (*model.Reference, error)
	createAccountFn func(input provider.AccountInput) (*model.Reference, error)
	createProductFn func(input provider.ProductInput) (*model.Reference, error)

	queryCalls int
}

func (f *fakeAdapter) Platform() provider.Platform { return provider.PlatformQuickBooks }

func (f *fakeAdapter) Query(ctx context.Context, kind, name string) (*model.Reference, error) {
	f.queryCalls++
	if f.queryFn == nil {
		return nil, nil
	}
	return f.queryFn(kind, name)
}

func (f *fakeAdapter) CreateContact(ctx context.Context, input provider.ContactInput) (*model.Reference, error) {
	return f.createContactFn(input)
}

func (f *fakeAdapter) CreateAccount(ctx context.Context, input provider.AccountInput) (*model.Reference, error) {
	return f.createAccountFn(input)
}

func (f *fakeAdapter) CreateProduct(ctx context.Context, input provider.ProductInput) (*model.Reference, error) {
	return f.createProductFn(input)
}

func (f *fakeAdapter) CreateTaxRate(ctx context.Context, input provider.TaxRateInput) (*model.Reference, error) {
	return nil, nil
}

func (f *fakeAdapter) CreateExpense(ctx context.Context, input *provider.TransactionInput) (*provider.CreateResult, error) {
	return nil, nil
}

func (f *fakeAdapter) CreateInvoice(ctx context.Context, input *provider.TransactionInput) (*provider.CreateResult, error) {
	return nil, nil
}

func (f *fakeAdapter) FetchAccounts(ctx context.Context) ([]model.Reference, error) {
	return nil, nil
}

func (f *fakeAdapter) FetchTaxRates(ctx context.Context) ([]model.Reference, error) {
	return nil, nil
}

func (f *fakeAdapter) FetchContacts(ctx context.Context) ([]model.Reference, error) {
	return nil, nil
}

func (f *fakeAdapter) FetchProducts(ctx context.Context) ([]model.Reference, error) {
	return nil, nil
}

func (f *fakeAdapter) RefreshToken(ctx context.Context) error { return nil }

func newTestResolver(adapter *fakeAdapter, ds *mocks.MockDataSource, settings *model.Settings) *referenceResolver {
	return newReferenceResolver(adapter, ds, "org_1", settings)
}

func TestResolveContactRemoteMatch(t *testing.T) {
	adapter := &fakeAdapter{
		queryFn: func(kind, name string) (*model.Reference, error) {
			assert.Equal(t, model.ReferenceKindContact, kind)
			assert.Equal(t, "Acme Supplies", name)
			return &model.Reference{ID: "vend_77", Name: "Acme Supplies"}, nil
		},
	}
	r := newTestResolver(adapter, &mocks.MockDataSource{}, model.DefaultSettings())

	id, err := r.resolveContact(context.Background(), "Acme Supplies", "")
	require.NoError(t, err)
	assert.Equal(t, "vend_77", id)
}

func TestResolveContactAutoCreate(t *testing.T) {
	settings := model.DefaultSettings()
	settings.AutoCreateList = true

	adapter := &fakeAdapter{
		createContactFn: func(input provider.ContactInput) (*model.Reference, error) {
			assert.Equal(t, "Acme Supplies", input.Name)
			assert.Equal(t, "ap@acme.example", input.Email)
			return &model.Reference{ID: "vend_new"}, nil
		},
	}
	r := newTestResolver(adapter, &mocks.MockDataSource{}, settings)

	id, err := r.resolveContact(context.Background(), "Acme Supplies", "ap@acme.example")
	require.NoError(t, err)
	assert.Equal(t, "vend_new", id)
}

func TestResolveContactDefaultRace(t *testing.T) {
	adapter := &fakeAdapter{
		createContactFn: func(input provider.ContactInput) (*model.Reference, error) {
			assert.Equal(t, model.DefaultContactName, input.Name)
			return &model.Reference{ID: "vend_mine"}, nil
		},
	}
	ds := &mocks.MockDataSource{}
	// Another worker persisted its default first; the conditional write hands
	// back the winner and this resolver adopts it.
	ds.On("ProposeProviderDefault", mock.Anything, "org_1", "quickbooks", model.ReferenceKindContact, mock.Anything).
		Return(model.ProviderDefaults{ContactID: "vend_winner", ContactName: model.DefaultContactName}, nil)

	r := newTestResolver(adapter, ds, model.DefaultSettings())

	id, err := r.resolveContact(context.Background(), "Unknown Vendor", "")
	require.NoError(t, err)
	assert.Equal(t, "vend_winner", id)
	ds.AssertExpectations(t)

	// The adopted default is reused without another remote lookup.
	queriesBefore := adapter.queryCalls
	id, err = r.resolveContact(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "vend_winner", id)
	assert.Equal(t, queriesBefore, adapter.queryCalls)
}

func TestResolveAccountEmptyNameUsesDefault(t *testing.T) {
	settings := model.DefaultSettings()
	settings.Providers["quickbooks"] = model.ProviderDefaults{AccountID: "acc_1", AccountCode: "400"}

	adapter := &fakeAdapter{}
	r := newTestResolver(adapter, &mocks.MockDataSource{}, settings)

	account, err := r.resolveAccount(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "acc_1", account.ID)
	assert.Equal(t, "400", account.Code)
	assert.Equal(t, 0, adapter.queryCalls)
}

func TestResolveProductCreatesAgainstIncomeAccount(t *testing.T) {
	settings := model.DefaultSettings()
	settings.AutoCreateList = true

	adapter := &fakeAdapter{
		queryFn: func(kind, name string) (*model.Reference, error) {
			if kind == model.ReferenceKindAccount && name == model.DefaultIncomeAccountName {
				return &model.Reference{ID: "inc_1", Name: model.DefaultIncomeAccountName}, nil
			}
			return nil, nil
		},
		createProductFn: func(input provider.ProductInput) (*model.Reference, error) {
			assert.Equal(t, "Widget", input.Name)
			assert.Equal(t, int64(2500), input.Price)
			assert.Equal(t, "inc_1", input.IncomeAccountID)
			return &model.Reference{ID: "item_9"}, nil
		},
	}
	r := newTestResolver(adapter, &mocks.MockDataSource{}, settings)

	id, err := r.resolveProduct(context.Background(), "Widget", 2500)
	require.NoError(t, err)
	assert.Equal(t, "item_9", id)
}

func TestResolveBankAccountQueriesThenCreates(t *testing.T) {
	adapter := &fakeAdapter{
		createAccountFn: func(input provider.AccountInput) (*model.Reference, error) {
			assert.Equal(t, model.DefaultBankAccountName, input.Name)
			assert.Equal(t, "Bank", input.Type)
			return &model.Reference{ID: "bank_9", Name: model.DefaultBankAccountName}, nil
		},
	}
	ds := &mocks.MockDataSource{}
	ds.On("ProposeProviderDefault", mock.Anything, "org_1", "quickbooks", model.ReferenceKindBank, mock.Anything).
		Return(model.ProviderDefaults{BankAccountID: "bank_9", BankAccountName: model.DefaultBankAccountName}, nil)

	r := newTestResolver(adapter, ds, model.DefaultSettings())

	bank, err := r.resolveBankAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bank_9", bank.ID)
	assert.Equal(t, 1, adapter.queryCalls)
	ds.AssertExpectations(t)
}

func TestResolveReferencesIncome(t *testing.T) {
	settings := model.DefaultSettings()
	settings.Providers["quickbooks"] = model.ProviderDefaults{
		ContactID:     "cust_1",
		BankAccountID: "bank_1",
	}

	adapter := &fakeAdapter{
		queryFn: func(kind, name string) (*model.Reference, error) {
			if kind == model.ReferenceKindAccount && name == model.DefaultIncomeAccountName {
				return &model.Reference{ID: "inc_1"}, nil
			}
			return nil, nil
		},
	}
	r := newTestResolver(adapter, &mocks.MockDataSource{}, settings)

	txn := &model.Transaction{
		TransactionID: "txn_1",
		Type:          model.TransactionTypeIncome,
		Amount:        5000,
	}
	refs, err := r.resolveReferences(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, "cust_1", refs.ContactID)
	assert.Equal(t, "inc_1", refs.AccountID)
	assert.Equal(t, "bank_1", refs.BankAccountID)
}
