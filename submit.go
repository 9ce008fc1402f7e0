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

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"github.com/billsdeck/ledgersync/config"
	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
	"github.com/billsdeck/ledgersync/provider"
)

// SyncJobRequest is a request to push a batch of transactions to one
// accounting platform.
type SyncJobRequest struct {
	UserID         string   `json:"user_id"`
	OrganizationID string   `json:"organization_id"`
	Platform       string   `json:"platform"`
	TransactionIDs []string `json:"transaction_ids"`
}

func (r SyncJobRequest) validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.OrganizationID, validation.Required),
		validation.Field(&r.Platform, validation.Required),
		validation.Field(&r.TransactionIDs, validation.Required, validation.Length(1, 0)),
	)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrValidation, "Invalid sync job request", err)
	}
	if _, err := provider.ParsePlatform(r.Platform); err != nil {
		return err
	}
	return nil
}

// CreateSyncJob validates and records a sync job with one item per
// transaction, then stamps each transaction with the chosen platform. The job
// enters the queue immediately; a worker picks it up on its next poll.
func (l *Ledgersync) CreateSyncJob(ctx context.Context, req SyncJobRequest) (*model.SyncJob, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	platform, _ := provider.ParsePlatform(req.Platform)

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	job := &model.SyncJob{
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Platform:       string(platform),
		TransactionIDs: req.TransactionIDs,
		MaxAttempts:    conf.Worker.MaxAttempts,
	}

	job, _, err = l.datasource.CreateSyncJob(ctx, job)
	if err != nil {
		return nil, err
	}

	if err := l.datasource.StampTransactionsPlatform(ctx, req.TransactionIDs, string(platform)); err != nil {
		// The job is already queued; a missing platform stamp does not block
		// processing.
		logrus.WithField("job_id", job.JobID).Error(err)
	}

	logrus.WithFields(logrus.Fields{
		"job_id":   job.JobID,
		"platform": job.Platform,
		"items":    job.TotalCount,
	}).Info("sync job queued")
	return job, nil
}

// CreateBulkSyncJob submits every ready, never-synced transaction of an
// organization as one job. Returns a nil job when there is nothing to sync.
func (l *Ledgersync) CreateBulkSyncJob(ctx context.Context, userID, organizationID, platform string) (*model.SyncJob, error) {
	transactions, err := l.datasource.GetUnsyncedReadyTransactions(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(transactions))
	for _, txn := range transactions {
		ids = append(ids, txn.TransactionID)
	}

	return l.CreateSyncJob(ctx, SyncJobRequest{
		UserID:         userID,
		OrganizationID: organizationID,
		Platform:       platform,
		TransactionIDs: ids,
	})
}

// GetSyncJob returns a job with its current counters.
func (l *Ledgersync) GetSyncJob(ctx context.Context, jobID string) (*model.SyncJob, error) {
	return l.datasource.GetSyncJob(ctx, jobID)
}

// GetJobItems returns a job's items in insertion order.
func (l *Ledgersync) GetJobItems(ctx context.Context, jobID string) ([]*model.SyncJobItem, error) {
	return l.datasource.GetJobItems(ctx, jobID)
}
