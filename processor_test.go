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
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/billsdeck/ledgersync/model"
)

func claimedJob(itemCount int) *model.SyncJob {
	return &model.SyncJob{
		JobID:          "job_1",
		UserID:         "usr_1",
		OrganizationID: "org_1",
		Platform:       "quickbooks",
		Status:         model.JobStatusProcessing,
		Attempts:       1,
		MaxAttempts:    3,
		TotalCount:     itemCount,
	}
}

func expenseTransaction(id string) *model.Transaction {
	return &model.Transaction{
		TransactionID:  id,
		OrganizationID: "org_1",
		Type:           model.TransactionTypeExpense,
		Amount:         10000,
		Date:           time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Status:         model.TransactionStatusReady,
	}
}

func purchaseResponse(id string) map[string]interface{} {
	return map[string]interface{}{
		"Purchase": map[string]interface{}{
			"Id": id,
			"Line": []map[string]interface{}{
				{
					"Id":          "1",
					"Description": "Office Chair",
					"AccountBasedExpenseLineDetail": map[string]interface{}{
						"AccountRef": map[string]interface{}{"value": "acc_1"},
					},
				},
			},
		},
	}
}

func TestProcessJobCompleted(t *testing.T) {
	engine, ds := newTestEngine(t)
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://quickbooks.example/v3/company/realm_1/purchase",
		httpmock.NewJsonResponderOrPanic(200, purchaseResponse("qb_9")))

	job := claimedJob(1)
	ds.On("GetSyncJob", mock.Anything, "job_1").Return(job, nil)
	ds.On("GetOrganizationSettings", mock.Anything, "org_1").Return(settingsWithDefaults(), nil)
	ds.On("GetActiveIntegration", mock.Anything, "org_1", "quickbooks").Return(quickbooksIntegration(), nil)
	ds.On("GetJobItems", mock.Anything, "job_1").Return([]*model.SyncJobItem{
		{ItemID: "item_1", JobID: "job_1", ReferenceID: "txn_1", Status: model.ItemStatusQueued},
	}, nil)
	ds.On("MarkItemProcessing", mock.Anything, "item_1").Return(nil)
	ds.On("GetTransaction", mock.Anything, "txn_1").Return(expenseTransaction("txn_1"), nil)
	ds.On("GetLineItems", mock.Anything, "txn_1").Return([]*model.LineItem{
		{LineItemID: "line_1", TransactionID: "txn_1", ProductName: "Office Chair", Quantity: 1, Price: 10000, TotalAmount: 10000},
	}, nil)
	ds.On("CompleteItem", mock.Anything, "item_1", "qb_9", mock.Anything).Return(nil)
	ds.On("MarkTransactionSynced", mock.Anything, "txn_1", "qb_9", "https://app.qbo.intuit.com/app/purchase?txnId=qb_9").Return(nil)
	ds.On("UpdateLineItemExternal", mock.Anything, "line_1", "1", "acc_1").Return(nil)
	ds.On("UpdateJobProgress", mock.Anything, "job_1", 100, 1, 0).Return(nil)
	ds.On("CompleteJob", mock.Anything, "job_1", model.JobStatusCompleted, 1, 0).Return(nil)

	err := engine.ProcessJob(context.Background(), job)
	require.NoError(t, err)
	ds.AssertExpectations(t)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcessJobPartial(t *testing.T) {
	engine, ds := newTestEngine(t)
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	// First create succeeds, second hits a remote failure.
	calls := 0
	httpmock.RegisterResponder("POST", "https://quickbooks.example/v3/company/realm_1/purchase",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewJsonResponse(200, purchaseResponse("qb_9"))
			}
			return httpmock.NewStringResponse(500, `{"Fault":{"Error":[{"Message":"internal"}]}}`), nil
		})

	job := claimedJob(2)
	ds.On("GetSyncJob", mock.Anything, "job_1").Return(job, nil)
	ds.On("GetOrganizationSettings", mock.Anything, "org_1").Return(settingsWithDefaults(), nil)
	ds.On("GetActiveIntegration", mock.Anything, "org_1", "quickbooks").Return(quickbooksIntegration(), nil)
	ds.On("GetJobItems", mock.Anything, "job_1").Return([]*model.SyncJobItem{
		{ItemID: "item_1", JobID: "job_1", ReferenceID: "txn_1", Status: model.ItemStatusQueued},
		{ItemID: "item_2", JobID: "job_1", ReferenceID: "txn_2", Status: model.ItemStatusQueued},
	}, nil)
	ds.On("MarkItemProcessing", mock.Anything, mock.Anything).Return(nil)
	ds.On("GetTransaction", mock.Anything, "txn_1").Return(expenseTransaction("txn_1"), nil)
	ds.On("GetTransaction", mock.Anything, "txn_2").Return(expenseTransaction("txn_2"), nil)
	ds.On("GetLineItems", mock.Anything, mock.Anything).Return([]*model.LineItem{}, nil)
	ds.On("CompleteItem", mock.Anything, "item_1", "qb_9", mock.Anything).Return(nil)
	ds.On("MarkTransactionSynced", mock.Anything, "txn_1", "qb_9", mock.Anything).Return(nil)
	ds.On("FailItem", mock.Anything, "item_2", mock.Anything).Return(nil)
	ds.On("UpdateJobProgress", mock.Anything, "job_1", 50, 1, 0).Return(nil)
	ds.On("UpdateJobProgress", mock.Anything, "job_1", 100, 1, 1).Return(nil)
	ds.On("CompleteJob", mock.Anything, "job_1", model.JobStatusPartial, 1, 1).Return(nil)

	err := engine.ProcessJob(context.Background(), job)
	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestProcessJobAllFailedKeepsRetryPath(t *testing.T) {
	engine, ds := newTestEngine(t)
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://quickbooks.example/v3/company/realm_1/purchase",
		httpmock.NewStringResponder(500, `{"Fault":{"Error":[{"Message":"internal"}]}}`))

	job := claimedJob(1)
	ds.On("GetSyncJob", mock.Anything, "job_1").Return(job, nil)
	ds.On("GetOrganizationSettings", mock.Anything, "org_1").Return(settingsWithDefaults(), nil)
	ds.On("GetActiveIntegration", mock.Anything, "org_1", "quickbooks").Return(quickbooksIntegration(), nil)
	ds.On("GetJobItems", mock.Anything, "job_1").Return([]*model.SyncJobItem{
		{ItemID: "item_1", JobID: "job_1", ReferenceID: "txn_1", Status: model.ItemStatusQueued},
	}, nil)
	ds.On("MarkItemProcessing", mock.Anything, "item_1").Return(nil)
	ds.On("GetTransaction", mock.Anything, "txn_1").Return(expenseTransaction("txn_1"), nil)
	ds.On("GetLineItems", mock.Anything, "txn_1").Return([]*model.LineItem{}, nil)
	ds.On("FailItem", mock.Anything, "item_1", mock.Anything).Return(nil)
	ds.On("UpdateJobProgress", mock.Anything, "job_1", 100, 0, 1).Return(nil)
	ds.On("FailJob", mock.Anything, "job_1", "all items failed", mock.Anything).Return(nil)

	err := engine.ProcessJob(context.Background(), job)
	assert.Error(t, err)
	ds.AssertNotCalled(t, "CompleteJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ds.AssertExpectations(t)
}

func TestProcessJobAuthFailureHaltsJob(t *testing.T) {
	engine, ds := newTestEngine(t)
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	integration := quickbooksIntegration()
	integration.Status = model.IntegrationStatusRequiresReauth

	job := claimedJob(2)
	ds.On("GetSyncJob", mock.Anything, "job_1").Return(job, nil)
	ds.On("GetOrganizationSettings", mock.Anything, "org_1").Return(settingsWithDefaults(), nil)
	ds.On("GetActiveIntegration", mock.Anything, "org_1", "quickbooks").Return(integration, nil)
	ds.On("GetJobItems", mock.Anything, "job_1").Return([]*model.SyncJobItem{
		{ItemID: "item_1", JobID: "job_1", ReferenceID: "txn_1", Status: model.ItemStatusQueued},
		{ItemID: "item_2", JobID: "job_1", ReferenceID: "txn_2", Status: model.ItemStatusQueued},
	}, nil)
	ds.On("MarkItemProcessing", mock.Anything, "item_1").Return(nil)
	ds.On("GetTransaction", mock.Anything, "txn_1").Return(expenseTransaction("txn_1"), nil)
	ds.On("GetLineItems", mock.Anything, "txn_1").Return([]*model.LineItem{}, nil)
	ds.On("FailJob", mock.Anything, "job_1", "Integration requires re-authentication", mock.Anything).Return(nil)

	err := engine.ProcessJob(context.Background(), job)
	assert.Error(t, err)

	// The second item was never touched; it stays queued for the retry.
	ds.AssertNotCalled(t, "MarkItemProcessing", mock.Anything, "item_2")
	ds.AssertNotCalled(t, "FailItem", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
	ds.AssertExpectations(t)
}

func TestProcessJobCancelled(t *testing.T) {
	engine, ds := newTestEngine(t)

	job := claimedJob(1)
	cancelled := claimedJob(1)
	cancelled.Status = model.JobStatusCancelled
	ds.On("GetSyncJob", mock.Anything, "job_1").Return(cancelled, nil)

	err := engine.ProcessJob(context.Background(), job)
	require.NoError(t, err)
	ds.AssertNotCalled(t, "GetJobItems", mock.Anything, mock.Anything)
}

func TestProcessJobSkipsAlreadySynced(t *testing.T) {
	engine, ds := newTestEngine(t)
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	synced := expenseTransaction("txn_1")
	synced.ExternalID = "qb_old"

	job := claimedJob(1)
	ds.On("GetSyncJob", mock.Anything, "job_1").Return(job, nil)
	ds.On("GetOrganizationSettings", mock.Anything, "org_1").Return(settingsWithDefaults(), nil)
	ds.On("GetActiveIntegration", mock.Anything, "org_1", "quickbooks").Return(quickbooksIntegration(), nil)
	ds.On("GetJobItems", mock.Anything, "job_1").Return([]*model.SyncJobItem{
		{ItemID: "item_1", JobID: "job_1", ReferenceID: "txn_1", Status: model.ItemStatusQueued},
	}, nil)
	ds.On("MarkItemProcessing", mock.Anything, "item_1").Return(nil)
	ds.On("GetTransaction", mock.Anything, "txn_1").Return(synced, nil)
	ds.On("CompleteItem", mock.Anything, "item_1", "qb_old", map[string]interface{}{
		"id":      "qb_old",
		"skipped": true,
	}).Return(nil)
	ds.On("UpdateJobProgress", mock.Anything, "job_1", 100, 1, 0).Return(nil)
	ds.On("CompleteJob", mock.Anything, "job_1", model.JobStatusCompleted, 1, 0).Return(nil)

	err := engine.ProcessJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
	ds.AssertExpectations(t)
}

func TestRetryDelayGrows(t *testing.T) {
	first := retryDelay(1)
	assert.GreaterOrEqual(t, first, 22*time.Second)
	assert.LessOrEqual(t, first, 38*time.Second)

	fifth := retryDelay(5)
	assert.Greater(t, fifth, first)
	assert.LessOrEqual(t, fifth, 30*time.Minute)
}

func TestMatchLine(t *testing.T) {
	lines := []*model.LineItem{
		{LineItemID: "line_1", ProductName: "Office Chair"},
		{LineItemID: "line_2", ProductName: "Standing Desk"},
	}

	used := map[int]bool{}
	assert.Equal(t, 1, matchLine(lines, used, "Standing Desk"))
	assert.Equal(t, 0, matchLine(lines, used, "Office Chairs"))

	// Too far from anything.
	assert.Equal(t, -1, matchLine(lines, used, "Consulting Services"))

	// A consumed line never matches again.
	used[1] = true
	assert.Equal(t, -1, matchLine(lines, used, "Standing Desk"))
}
