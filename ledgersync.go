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
	"github.com/billsdeck/ledgersync/database"
	"github.com/billsdeck/ledgersync/internal/cache"
	"github.com/billsdeck/ledgersync/provider"
)

// Ledgersync is the main struct for the sync engine. It ties the job store,
// the provider adapter registry and the reference cache together; workers and
// the CLI operate through it.
type Ledgersync struct {
	datasource database.IDataSource
	tokens     *provider.TokenManager
	registry   *provider.Registry
	cache      cache.Cache
}

// NewLedgersync initializes a new instance of Ledgersync with the provided
// database datasource. The token manager is shared process-wide so the
// refresh gate spans every worker goroutine.
func NewLedgersync(db database.IDataSource) (*Ledgersync, error) {
	refCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	tokens := provider.NewTokenManager(db)
	return &Ledgersync{
		datasource: db,
		tokens:     tokens,
		registry:   provider.NewRegistry(tokens),
		cache:      refCache,
	}, nil
}

// newLedgersyncWithCache wires an explicit cache, used by tests.
func newLedgersyncWithCache(db database.IDataSource, refCache cache.Cache) *Ledgersync {
	tokens := provider.NewTokenManager(db)
	return &Ledgersync{
		datasource: db,
		tokens:     tokens,
		registry:   provider.NewRegistry(tokens),
		cache:      refCache,
	}
}
