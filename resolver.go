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

	"github.com/sirupsen/logrus"

	"github.com/billsdeck/ledgersync/database"
	"github.com/billsdeck/ledgersync/model"
	"github.com/billsdeck/ledgersync/provider"
)

// referenceResolver turns local names into remote platform ids through three
// tiers: exact-name remote lookup, auto-create when the organization allows
// it, and a lazily-created organization-wide default. Defaults are persisted
// through a conditional write so concurrent resolutions converge on one
// entity.
type referenceResolver struct {
	adapter        provider.Adapter
	store          database.IDataSource
	organizationID string
	settings       *model.Settings
	defaults       model.ProviderDefaults
}

func newReferenceResolver(adapter provider.Adapter, store database.IDataSource, organizationID string, settings *model.Settings) *referenceResolver {
	return &referenceResolver{
		adapter:        adapter,
		store:          store,
		organizationID: organizationID,
		settings:       settings,
		defaults:       settings.ForProvider(string(adapter.Platform())),
	}
}

// adoptDefault runs the conditional persist for a lazily-created default and
// takes whatever value won, which may be another worker's.
func (r *referenceResolver) adoptDefault(ctx context.Context, kind string, proposed model.ProviderDefaults) error {
	winner, err := r.store.ProposeProviderDefault(ctx, r.organizationID, string(r.adapter.Platform()), kind, proposed)
	if err != nil {
		return err
	}
	r.defaults = winner
	return nil
}

func (r *referenceResolver) resolveContact(ctx context.Context, name, email string) (string, error) {
	if name != "" {
		existing, err := r.adapter.Query(ctx, model.ReferenceKindContact, name)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return existing.ID, nil
		}

		if r.settings.AutoCreateList {
			created, err := r.adapter.CreateContact(ctx, provider.ContactInput{Name: name, Email: email})
			if err != nil {
				return "", err
			}
			return created.ID, nil
		}
	}

	if r.defaults.ContactID != "" {
		return r.defaults.ContactID, nil
	}

	defaultName := r.defaults.ContactName
	if defaultName == "" {
		defaultName = model.DefaultContactName
	}
	created, err := r.adapter.CreateContact(ctx, provider.ContactInput{
		Name:  defaultName,
		Email: model.DefaultContactEmail,
	})
	if err != nil {
		return "", err
	}
	if err := r.adoptDefault(ctx, model.ReferenceKindContact, model.ProviderDefaults{
		ContactID:   created.ID,
		ContactName: defaultName,
	}); err != nil {
		return "", err
	}
	return r.defaults.ContactID, nil
}

func (r *referenceResolver) resolveAccount(ctx context.Context, name, accountType string) (*model.Reference, error) {
	if name != "" {
		existing, err := r.adapter.Query(ctx, model.ReferenceKindAccount, name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}

		if r.settings.AutoCreateList {
			return r.adapter.CreateAccount(ctx, provider.AccountInput{Name: name, Type: accountType})
		}
	}

	if r.defaults.AccountID != "" {
		return &model.Reference{ID: r.defaults.AccountID, Code: r.defaults.AccountCode, Name: r.defaults.AccountName}, nil
	}

	defaultName := r.defaults.AccountName
	if defaultName == "" {
		defaultName = model.DefaultAccountName
	}
	created, err := r.adapter.CreateAccount(ctx, provider.AccountInput{Name: defaultName, Type: "Expense"})
	if err != nil {
		return nil, err
	}
	if err := r.adoptDefault(ctx, model.ReferenceKindAccount, model.ProviderDefaults{
		AccountID:   created.ID,
		AccountCode: created.Code,
		AccountName: defaultName,
	}); err != nil {
		return nil, err
	}
	return &model.Reference{ID: r.defaults.AccountID, Code: r.defaults.AccountCode, Name: r.defaults.AccountName}, nil
}

func (r *referenceResolver) resolveProduct(ctx context.Context, name string, price int64) (string, error) {
	if name != "" {
		existing, err := r.adapter.Query(ctx, model.ReferenceKindProduct, name)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return existing.ID, nil
		}

		if r.settings.AutoCreateList {
			income, err := r.resolveIncomeAccount(ctx)
			if err != nil {
				return "", err
			}
			created, err := r.adapter.CreateProduct(ctx, provider.ProductInput{
				Name:            name,
				Price:           price,
				IncomeAccountID: income.ID,
			})
			if err != nil {
				return "", err
			}
			return created.ID, nil
		}
	}

	if r.defaults.ProductID != "" {
		return r.defaults.ProductID, nil
	}

	defaultName := r.defaults.ProductName
	if defaultName == "" {
		defaultName = model.DefaultProductName
	}
	income, err := r.resolveIncomeAccount(ctx)
	if err != nil {
		return "", err
	}
	created, err := r.adapter.CreateProduct(ctx, provider.ProductInput{
		Name:            defaultName,
		IncomeAccountID: income.ID,
	})
	if err != nil {
		return "", err
	}
	if err := r.adoptDefault(ctx, model.ReferenceKindProduct, model.ProviderDefaults{
		ProductID:   created.ID,
		ProductName: defaultName,
	}); err != nil {
		return "", err
	}
	return r.defaults.ProductID, nil
}

// resolveIncomeAccount resolves the income account products post to,
// transitively through the account tiers.
func (r *referenceResolver) resolveIncomeAccount(ctx context.Context) (*model.Reference, error) {
	return r.resolveAccount(ctx, model.DefaultIncomeAccountName, "Income")
}

func (r *referenceResolver) resolveBankAccount(ctx context.Context) (*model.Reference, error) {
	if r.defaults.BankAccountID != "" {
		return &model.Reference{ID: r.defaults.BankAccountID, Code: r.defaults.BankAccountCode, Name: r.defaults.BankAccountName}, nil
	}

	name := r.defaults.BankAccountName
	if name == "" {
		name = model.DefaultBankAccountName
	}

	existing, err := r.adapter.Query(ctx, model.ReferenceKindBank, name)
	if err != nil {
		return nil, err
	}
	bank := existing
	if bank == nil {
		bank, err = r.adapter.CreateAccount(ctx, provider.AccountInput{Name: name, Type: "Bank"})
		if err != nil {
			return nil, err
		}
	}

	if err := r.adoptDefault(ctx, model.ReferenceKindBank, model.ProviderDefaults{
		BankAccountID:   bank.ID,
		BankAccountCode: bank.Code,
		BankAccountName: name,
	}); err != nil {
		return nil, err
	}
	return &model.Reference{ID: r.defaults.BankAccountID, Code: r.defaults.BankAccountCode, Name: r.defaults.BankAccountName}, nil
}

// resolveReferences gathers every remote id one transaction's payload needs.
func (r *referenceResolver) resolveReferences(ctx context.Context, txn *model.Transaction) (model.ResolvedReferences, error) {
	var refs model.ResolvedReferences

	contactID, err := r.resolveContact(ctx, txn.Payee, "")
	if err != nil {
		return refs, err
	}
	refs.ContactID = contactID

	var account *model.Reference
	if txn.Type == model.TransactionTypeIncome {
		account, err = r.resolveIncomeAccount(ctx)
	} else {
		account, err = r.resolveAccount(ctx, "", "")
	}
	if err != nil {
		return refs, err
	}
	refs.AccountID = account.ID
	refs.AccountCode = account.Code

	bank, err := r.resolveBankAccount(ctx)
	if err != nil {
		return refs, err
	}
	refs.BankAccountID = bank.ID
	refs.BankAccountCode = bank.Code

	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.TransactionID,
		"contact_id":     refs.ContactID,
		"account_id":     refs.AccountID,
	}).Debug("references resolved")
	return refs, nil
}
