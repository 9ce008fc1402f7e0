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
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/billsdeck/ledgersync/model"
	"github.com/billsdeck/ledgersync/provider"
)

// referenceCacheTTL bounds how long bulk-synced reference data is served from
// the cache before a re-read of the local mirror.
const referenceCacheTTL = 10 * time.Minute

func referenceCacheKey(organizationID, platform, kind string) string {
	return fmt.Sprintf("references:%s:%s:%s", organizationID, platform, kind)
}

// SyncReferenceData pulls an organization's charts of accounts and tax rates
// from the remote platform into the local mirror and primes the cache.
// Contacts and products are fetched on demand during resolution, not here.
// This runs outside the job hot path; the resolver never depends on it.
func (l *Ledgersync) SyncReferenceData(ctx context.Context, organizationID, rawPlatform string) error {
	platform, err := provider.ParsePlatform(rawPlatform)
	if err != nil {
		return err
	}

	integration, err := l.datasource.GetActiveIntegration(ctx, organizationID, string(platform))
	if err != nil {
		return err
	}
	adapter, err := l.registry.AdapterFor(integration)
	if err != nil {
		return err
	}

	kinds := []struct {
		kind  string
		fetch func(context.Context) ([]model.Reference, error)
	}{
		{model.ReferenceKindAccount, adapter.FetchAccounts},
		{model.ReferenceKindTaxRate, adapter.FetchTaxRates},
	}

	for _, entry := range kinds {
		refs, err := entry.fetch(ctx)
		if err != nil {
			return errors.Wrapf(err, "fetching %s references", entry.kind)
		}
		if err := l.storeReferences(ctx, organizationID, string(platform), entry.kind, refs); err != nil {
			return errors.Wrapf(err, "storing %s references", entry.kind)
		}
		logrus.WithFields(logrus.Fields{
			"organization_id": organizationID,
			"platform":        platform,
			"kind":            entry.kind,
			"count":           len(refs),
		}).Info("reference data synced")
	}
	return nil
}

// SyncContacts refreshes the contact mirror on demand.
func (l *Ledgersync) SyncContacts(ctx context.Context, organizationID, rawPlatform string) error {
	return l.syncKind(ctx, organizationID, rawPlatform, model.ReferenceKindContact)
}

// SyncProducts refreshes the product mirror on demand.
func (l *Ledgersync) SyncProducts(ctx context.Context, organizationID, rawPlatform string) error {
	return l.syncKind(ctx, organizationID, rawPlatform, model.ReferenceKindProduct)
}

func (l *Ledgersync) syncKind(ctx context.Context, organizationID, rawPlatform, kind string) error {
	platform, err := provider.ParsePlatform(rawPlatform)
	if err != nil {
		return err
	}
	integration, err := l.datasource.GetActiveIntegration(ctx, organizationID, string(platform))
	if err != nil {
		return err
	}
	adapter, err := l.registry.AdapterFor(integration)
	if err != nil {
		return err
	}

	var refs []model.Reference
	switch kind {
	case model.ReferenceKindContact:
		refs, err = adapter.FetchContacts(ctx)
	case model.ReferenceKindProduct:
		refs, err = adapter.FetchProducts(ctx)
	}
	if err != nil {
		return err
	}
	return l.storeReferences(ctx, organizationID, string(platform), kind, refs)
}

func (l *Ledgersync) storeReferences(ctx context.Context, organizationID, platform, kind string, refs []model.Reference) error {
	if err := l.datasource.UpsertReferences(ctx, organizationID, platform, kind, refs); err != nil {
		return err
	}
	if l.cache != nil {
		if err := l.cache.Set(ctx, referenceCacheKey(organizationID, platform, kind), refs, referenceCacheTTL); err != nil {
			logrus.Error(err)
		}
	}
	return nil
}

// GetReferences reads a reference mirror, serving from the cache when primed.
func (l *Ledgersync) GetReferences(ctx context.Context, organizationID, rawPlatform, kind string) ([]model.Reference, error) {
	platform, err := provider.ParsePlatform(rawPlatform)
	if err != nil {
		return nil, err
	}

	key := referenceCacheKey(organizationID, string(platform), kind)
	if l.cache != nil {
		var cached []model.Reference
		if err := l.cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	refs, err := l.datasource.GetReferences(ctx, organizationID, string(platform), kind)
	if err != nil {
		return nil, err
	}
	if l.cache != nil && len(refs) > 0 {
		if err := l.cache.Set(ctx, key, refs, referenceCacheTTL); err != nil {
			logrus.Error(err)
		}
	}
	return refs, nil
}
