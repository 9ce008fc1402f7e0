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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
)

func TestCreateSyncJobValidation(t *testing.T) {
	engine, ds := newTestEngine(t)

	tests := []struct {
		name string
		req  SyncJobRequest
	}{
		{
			name: "missing user",
			req:  SyncJobRequest{OrganizationID: "org_1", Platform: "quickbooks", TransactionIDs: []string{"txn_1"}},
		},
		{
			name: "missing organization",
			req:  SyncJobRequest{UserID: "usr_1", Platform: "quickbooks", TransactionIDs: []string{"txn_1"}},
		},
		{
			name: "no transactions",
			req:  SyncJobRequest{UserID: "usr_1", OrganizationID: "org_1", Platform: "quickbooks"},
		},
		{
			name: "unsupported platform",
			req:  SyncJobRequest{UserID: "usr_1", OrganizationID: "org_1", Platform: "freshbooks", TransactionIDs: []string{"txn_1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.CreateSyncJob(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, apierror.ErrValidation, apierror.CodeOf(err))
		})
	}
	ds.AssertNotCalled(t, "CreateSyncJob", mock.Anything, mock.Anything)
}

func TestCreateSyncJob(t *testing.T) {
	engine, ds := newTestEngine(t)

	ds.On("CreateSyncJob", mock.Anything, mock.MatchedBy(func(job *model.SyncJob) bool {
		return job.Platform == "quickbooks" && job.MaxAttempts == 3 && len(job.TransactionIDs) == 2
	})).Return(&model.SyncJob{
		JobID:          "job_1",
		UserID:         "usr_1",
		OrganizationID: "org_1",
		Platform:       "quickbooks",
		Status:         model.JobStatusQueued,
		TotalCount:     2,
	}, []*model.SyncJobItem{}, nil)
	ds.On("StampTransactionsPlatform", mock.Anything, []string{"txn_1", "txn_2"}, "quickbooks").Return(nil)

	job, err := engine.CreateSyncJob(context.Background(), SyncJobRequest{
		UserID:         "usr_1",
		OrganizationID: "org_1",
		Platform:       "QuickBooks",
		TransactionIDs: []string{"txn_1", "txn_2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "job_1", job.JobID)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	ds.AssertExpectations(t)
}

func TestCreateSyncJobStampFailureDoesNotBlock(t *testing.T) {
	engine, ds := newTestEngine(t)

	ds.On("CreateSyncJob", mock.Anything, mock.Anything).Return(&model.SyncJob{
		JobID:    "job_1",
		Platform: "xero",
		Status:   model.JobStatusQueued,
	}, []*model.SyncJobItem{}, nil)
	ds.On("StampTransactionsPlatform", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("stamp failed"))

	job, err := engine.CreateSyncJob(context.Background(), SyncJobRequest{
		UserID:         "usr_1",
		OrganizationID: "org_1",
		Platform:       "xero",
		TransactionIDs: []string{"txn_1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "job_1", job.JobID)
}

func TestCreateBulkSyncJob(t *testing.T) {
	engine, ds := newTestEngine(t)

	ds.On("GetUnsyncedReadyTransactions", mock.Anything, "org_1").Return([]*model.Transaction{
		{TransactionID: "txn_1"},
		{TransactionID: "txn_2"},
	}, nil)
	ds.On("CreateSyncJob", mock.Anything, mock.MatchedBy(func(job *model.SyncJob) bool {
		return len(job.TransactionIDs) == 2 && job.TransactionIDs[0] == "txn_1"
	})).Return(&model.SyncJob{JobID: "job_1", Platform: "zohobooks", TotalCount: 2}, []*model.SyncJobItem{}, nil)
	ds.On("StampTransactionsPlatform", mock.Anything, []string{"txn_1", "txn_2"}, "zohobooks").Return(nil)

	job, err := engine.CreateBulkSyncJob(context.Background(), "usr_1", "org_1", "zoho")
	require.NoError(t, err)
	assert.Equal(t, "job_1", job.JobID)
	ds.AssertExpectations(t)
}

func TestCreateBulkSyncJobNothingToSync(t *testing.T) {
	engine, ds := newTestEngine(t)

	ds.On("GetUnsyncedReadyTransactions", mock.Anything, "org_1").Return([]*model.Transaction{}, nil)

	job, err := engine.CreateBulkSyncJob(context.Background(), "usr_1", "org_1", "quickbooks")
	require.NoError(t, err)
	assert.Nil(t, job)
	ds.AssertNotCalled(t, "CreateSyncJob", mock.Anything, mock.Anything)
}
