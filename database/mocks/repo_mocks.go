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
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/billsdeck/ledgersync/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Job methods

func (m *MockDataSource) CreateSyncJob(ctx context.Context, job *model.SyncJob) (*model.SyncJob, []*model.SyncJobItem, error) {
	args := m.Called(ctx, job)
	var items []*model.SyncJobItem
	if args.Get(1) != nil {
		items = args.Get(1).([]*model.SyncJobItem)
	}
	return args.Get(0).(*model.SyncJob), items, args.Error(2)
}

func (m *MockDataSource) GetSyncJob(ctx context.Context, jobID string) (*model.SyncJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncJob), args.Error(1)
}

func (m *MockDataSource) GetJobItems(ctx context.Context, jobID string) ([]*model.SyncJobItem, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SyncJobItem), args.Error(1)
}

func (m *MockDataSource) ClaimJobs(ctx context.Context, limit int) ([]*model.SyncJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SyncJob), args.Error(1)
}

func (m *MockDataSource) ResetStuckJobs(ctx context.Context, window time.Duration, nextRunAt time.Time) (int64, error) {
	args := m.Called(ctx, window, nextRunAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) UpdateJobProgress(ctx context.Context, jobID string, progress, successCount, errorCount int) error {
	args := m.Called(ctx, jobID, progress, successCount, errorCount)
	return args.Error(0)
}

func (m *MockDataSource) CompleteJob(ctx context.Context, jobID, status string, successCount, errorCount int) error {
	args := m.Called(ctx, jobID, status, successCount, errorCount)
	return args.Error(0)
}

func (m *MockDataSource) FailJob(ctx context.Context, jobID, errMsg string, nextRunAt time.Time) error {
	args := m.Called(ctx, jobID, errMsg, nextRunAt)
	return args.Error(0)
}

func (m *MockDataSource) MarkItemProcessing(ctx context.Context, itemID string) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *MockDataSource) CompleteItem(ctx context.Context, itemID, externalID string, result map[string]interface{}) error {
	args := m.Called(ctx, itemID, externalID, result)
	return args.Error(0)
}

func (m *MockDataSource) FailItem(ctx context.Context, itemID, errMsg string) error {
	args := m.Called(ctx, itemID, errMsg)
	return args.Error(0)
}

// Transaction methods

func (m *MockDataSource) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockDataSource) GetLineItems(ctx context.Context, transactionID string) ([]*model.LineItem, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LineItem), args.Error(1)
}

func (m *MockDataSource) MarkTransactionSynced(ctx context.Context, transactionID, externalID, accountingURL string) error {
	args := m.Called(ctx, transactionID, externalID, accountingURL)
	return args.Error(0)
}

func (m *MockDataSource) StampTransactionsPlatform(ctx context.Context, transactionIDs []string, platform string) error {
	args := m.Called(ctx, transactionIDs, platform)
	return args.Error(0)
}

func (m *MockDataSource) GetUnsyncedReadyTransactions(ctx context.Context, organizationID string) ([]*model.Transaction, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockDataSource) UpdateLineItemExternal(ctx context.Context, lineItemID, externalID, accountID string) error {
	args := m.Called(ctx, lineItemID, externalID, accountID)
	return args.Error(0)
}

// Integration methods

func (m *MockDataSource) GetActiveIntegration(ctx context.Context, organizationID, provider string) (*model.Integration, error) {
	args := m.Called(ctx, organizationID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Integration), args.Error(1)
}

func (m *MockDataSource) GetIntegration(ctx context.Context, integrationID string) (*model.Integration, error) {
	args := m.Called(ctx, integrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Integration), args.Error(1)
}

func (m *MockDataSource) UpdateIntegrationTokens(ctx context.Context, integration *model.Integration) error {
	args := m.Called(ctx, integration)
	return args.Error(0)
}

func (m *MockDataSource) MarkIntegrationRequiresReauth(ctx context.Context, integrationID string) error {
	args := m.Called(ctx, integrationID)
	return args.Error(0)
}

// Settings methods

func (m *MockDataSource) GetOrganizationSettings(ctx context.Context, organizationID string) (*model.Settings, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Settings), args.Error(1)
}

func (m *MockDataSource) ProposeProviderDefault(ctx context.Context, organizationID, provider, kind string, proposed model.ProviderDefaults) (model.ProviderDefaults, error) {
	args := m.Called(ctx, organizationID, provider, kind, proposed)
	return args.Get(0).(model.ProviderDefaults), args.Error(1)
}

// Reference methods

func (m *MockDataSource) UpsertReferences(ctx context.Context, organizationID, provider, kind string, refs []model.Reference) error {
	args := m.Called(ctx, organizationID, provider, kind, refs)
	return args.Error(0)
}

func (m *MockDataSource) GetReferences(ctx context.Context, organizationID, provider, kind string) ([]model.Reference, error) {
	args := m.Called(ctx, organizationID, provider, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reference), args.Error(1)
}
