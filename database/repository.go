package database

import (
	"context"
	"time"

	"github.com/billsdeck/ledgersync/model"
)

type jobRepository interface {
	CreateSyncJob(ctx context.Context, job *model.SyncJob) (*model.SyncJob, []*model.SyncJobItem, error)
	GetSyncJob(ctx context.Context, jobID string) (*model.SyncJob, error)
	GetJobItems(ctx context.Context, jobID string) ([]*model.SyncJobItem, error)
	ClaimJobs(ctx context.Context, limit int) ([]*model.SyncJob, error)
	ResetStuckJobs(ctx context.Context, window time.Duration, nextRunAt time.Time) (int64, error)
	UpdateJobProgress(ctx context.Context, jobID string, progress, successCount, errorCount int) error
	CompleteJob(ctx context.Context, jobID, status string, successCount, errorCount int) error
	FailJob(ctx context.Context, jobID, errMsg string, nextRunAt time.Time) error
	MarkItemProcessing(ctx context.Context, itemID string) error
	CompleteItem(ctx context.Context, itemID, externalID string, result map[string]interface{}) error
	FailItem(ctx context.Context, itemID, errMsg string) error
}

type transactionRepository interface {
	GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error)
	GetLineItems(ctx context.Context, transactionID string) ([]*model.LineItem, error)
	MarkTransactionSynced(ctx context.Context, transactionID, externalID, accountingURL string) error
	StampTransactionsPlatform(ctx context.Context, transactionIDs []string, platform string) error
	GetUnsyncedReadyTransactions(ctx context.Context, organizationID string) ([]*model.Transaction, error)
	UpdateLineItemExternal(ctx context.Context, lineItemID, externalID, accountID string) error
}

type integrationRepository interface {
	GetActiveIntegration(ctx context.Context, organizationID, provider string) (*model.Integration, error)
	GetIntegration(ctx context.Context, integrationID string) (*model.Integration, error)
	UpdateIntegrationTokens(ctx context.Context, integration *model.Integration) error
	MarkIntegrationRequiresReauth(ctx context.Context, integrationID string) error
}

type settingsRepository interface {
	GetOrganizationSettings(ctx context.Context, organizationID string) (*model.Settings, error)
	ProposeProviderDefault(ctx context.Context, organizationID, provider, kind string, proposed model.ProviderDefaults) (model.ProviderDefaults, error)
}

type referenceRepository interface {
	UpsertReferences(ctx context.Context, organizationID, provider, kind string, refs []model.Reference) error
	GetReferences(ctx context.Context, organizationID, provider, kind string) ([]model.Reference, error)
}

// IDataSource is the persistence boundary of the sync engine. The relational
// store must support transactional row locking; claiming relies on
// FOR UPDATE SKIP LOCKED.
type IDataSource interface {
	jobRepository
	transactionRepository
	integrationRepository
	settingsRepository
	referenceRepository
}
