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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.opentelemetry.io/otel"

	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
	"github.com/billsdeck/ledgersync/provider"
)

// lineMatchDrift is the maximum levenshtein distance relative to the local
// description length for a response line to count as the same line.
const lineMatchDrift = 0.3

// retryDelay computes the backoff before a failed job becomes claimable
// again.
func retryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 30 * time.Second
	b.MaxInterval = 30 * time.Minute
	b.RandomizationFactor = 0.25
	delay := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// ProcessJob runs one claimed job to a terminal status. Items are processed
// sequentially; an item failure is recorded and the loop continues, except
// auth failures, which doom every remaining remote call and halt the job with
// the untouched items still queued.
func (l *Ledgersync) ProcessJob(ctx context.Context, job *model.SyncJob) error {
	ctx, span := otel.Tracer("sync.processor").Start(ctx, "Processing sync job")
	defer span.End()

	log := logrus.WithFields(logrus.Fields{"job_id": job.JobID, "platform": job.Platform})

	// Cancellation may have landed between claim and processing.
	fresh, err := l.datasource.GetSyncJob(ctx, job.JobID)
	if err != nil {
		return err
	}
	if fresh.Cancelled() {
		log.Info("job cancelled, skipping")
		return nil
	}

	settings, err := l.datasource.GetOrganizationSettings(ctx, job.OrganizationID)
	if err != nil {
		return l.failJob(ctx, job, err.Error())
	}

	integration, err := l.datasource.GetActiveIntegration(ctx, job.OrganizationID, job.Platform)
	if err != nil {
		return l.failJob(ctx, job, "Integration not found")
	}

	adapter, err := l.registry.AdapterFor(integration)
	if err != nil {
		return l.failJob(ctx, job, err.Error())
	}
	resolver := newReferenceResolver(adapter, l.datasource, job.OrganizationID, settings)

	items, err := l.datasource.GetJobItems(ctx, job.JobID)
	if err != nil {
		return l.failJob(ctx, job, err.Error())
	}

	succeeded, failed, processed := 0, 0, 0
	for _, item := range items {
		if item.Status == model.ItemStatusCompleted {
			succeeded++
			processed++
		}
	}

	for _, item := range items {
		if item.Status == model.ItemStatusCompleted {
			continue
		}

		itemErr := l.processItem(ctx, item, adapter, resolver, settings)
		if itemErr != nil {
			if apierror.IsAuthError(itemErr) {
				// Remaining items stay queued for the retry after
				// re-authentication.
				log.WithField("item_id", item.ItemID).Warn("auth failure, halting job")
				return l.failJob(ctx, job, "Integration requires re-authentication")
			}
			log.WithField("item_id", item.ItemID).Error(itemErr)
			if err := l.datasource.FailItem(ctx, item.ItemID, itemErr.Error()); err != nil {
				log.Error(err)
			}
			failed++
		} else {
			succeeded++
		}
		processed++

		if err := l.datasource.UpdateJobProgress(ctx, job.JobID,
			model.ProgressFor(processed, job.TotalCount), succeeded, failed); err != nil {
			log.Error(err)
		}
	}

	status := model.TerminalStatus(succeeded, failed)
	if status == model.JobStatusFailed {
		// All items failed; leave the retry path open.
		return l.failJob(ctx, job, "all items failed")
	}

	if err := l.datasource.CompleteJob(ctx, job.JobID, status, succeeded, failed); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"status": status, "succeeded": succeeded, "failed": failed}).Info("job finished")
	return nil
}

// failJob stamps a job failed with a retry schedule derived from its consumed
// attempts.
func (l *Ledgersync) failJob(ctx context.Context, job *model.SyncJob, msg string) error {
	nextRun := time.Now().Add(retryDelay(job.Attempts))
	if err := l.datasource.FailJob(ctx, job.JobID, msg, nextRun); err != nil {
		return err
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, msg, nil)
}

func (l *Ledgersync) processItem(ctx context.Context, item *model.SyncJobItem, adapter provider.Adapter, resolver *referenceResolver, settings *model.Settings) error {
	if err := l.datasource.MarkItemProcessing(ctx, item.ItemID); err != nil {
		return err
	}

	txn, err := l.datasource.GetTransaction(ctx, item.ReferenceID)
	if err != nil {
		return err
	}

	// Already pushed by an earlier attempt; recording the existing id keeps
	// the item idempotent.
	if txn.ExternalID != "" {
		return l.datasource.CompleteItem(ctx, item.ItemID, txn.ExternalID, map[string]interface{}{
			"id":      txn.ExternalID,
			"skipped": true,
		})
	}

	lines, err := l.datasource.GetLineItems(ctx, txn.TransactionID)
	if err != nil {
		return err
	}

	refs, err := resolver.resolveReferences(ctx, txn)
	if err != nil {
		return err
	}

	input := &provider.TransactionInput{
		Transaction: txn,
		Lines:       lines,
		References:  refs,
	}

	var result *provider.CreateResult
	if txn.Type == model.TransactionTypeIncome {
		input.DocumentType = settings.SalesType()
		result, err = adapter.CreateInvoice(ctx, input)
	} else {
		input.DocumentType = settings.ExpenseType()
		result, err = adapter.CreateExpense(ctx, input)
	}
	if err != nil {
		return err
	}

	if err := l.datasource.CompleteItem(ctx, item.ItemID, result.ID, map[string]interface{}{
		"id":  result.ID,
		"url": result.URL,
	}); err != nil {
		return err
	}
	if err := l.datasource.MarkTransactionSynced(ctx, txn.TransactionID, result.ID, result.URL); err != nil {
		return err
	}

	l.backfillLines(ctx, txn.TransactionID, lines, result.Lines)
	return nil
}

// backfillLines matches response lines to local line items by description
// similarity and records the remote ids. Best effort only; an unmatched line
// is logged and skipped.
func (l *Ledgersync) backfillLines(ctx context.Context, transactionID string, lines []*model.LineItem, results []provider.ResultLine) {
	used := make(map[int]bool, len(lines))
	for _, result := range results {
		if result.ExternalID == "" {
			continue
		}
		idx := matchLine(lines, used, result.Description)
		if idx < 0 {
			logrus.WithFields(logrus.Fields{
				"transaction_id": transactionID,
				"description":    result.Description,
			}).Debug("no local line matched response line")
			continue
		}
		used[idx] = true
		if err := l.datasource.UpdateLineItemExternal(ctx, lines[idx].LineItemID, result.ExternalID, result.AccountID); err != nil {
			logrus.Error(err)
		}
	}
}

// matchLine finds the unused local line closest to the description within the
// allowed drift. Ties break on order.
func matchLine(lines []*model.LineItem, used map[int]bool, description string) int {
	best, bestDistance := -1, 0
	for i, line := range lines {
		if used[i] {
			continue
		}
		distance := levenshtein.DistanceForStrings([]rune(line.ProductName), []rune(description), levenshtein.DefaultOptions)
		longest := len([]rune(line.ProductName))
		if n := len([]rune(description)); n > longest {
			longest = n
		}
		if longest == 0 {
			continue
		}
		if float64(distance)/float64(longest) > lineMatchDrift {
			continue
		}
		if best == -1 || distance < bestDistance {
			best, bestDistance = i, distance
		}
	}
	return best
}
