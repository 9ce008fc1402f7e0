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

package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/billsdeck/ledgersync"
)

func jobCommands(app *instance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "submit and inspect sync jobs",
	}

	cmd.AddCommand(jobSubmitCommand(app))
	cmd.AddCommand(jobBulkCommand(app))
	cmd.AddCommand(jobStatusCommand(app))

	return cmd
}

func jobSubmitCommand(app *instance) *cobra.Command {
	var userID, organizationID, platform string
	var transactionIDs []string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "queue a sync job for a set of transactions",
		Run: func(cmd *cobra.Command, args []string) {
			job, err := app.engine.CreateSyncJob(cmd.Context(), ledgersync.SyncJobRequest{
				UserID:         userID,
				OrganizationID: organizationID,
				Platform:       platform,
				TransactionIDs: transactionIDs,
			})
			if err != nil {
				log.Fatalf("Error submitting job: %v\n", err)
			}
			fmt.Printf("Queued job %s with %d items\n", job.JobID, job.TotalCount)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "submitting user id")
	cmd.Flags().StringVar(&organizationID, "org", "", "organization id")
	cmd.Flags().StringVar(&platform, "platform", "", "accounting platform (quickbooks, xero, zohobooks)")
	cmd.Flags().StringSliceVar(&transactionIDs, "txns", nil, "transaction ids to sync")

	return cmd
}

func jobBulkCommand(app *instance) *cobra.Command {
	var userID, organizationID, platform string

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "queue every ready unsynced transaction of an organization",
		Run: func(cmd *cobra.Command, args []string) {
			job, err := app.engine.CreateBulkSyncJob(cmd.Context(), userID, organizationID, platform)
			if err != nil {
				log.Fatalf("Error submitting bulk job: %v\n", err)
			}
			if job == nil {
				fmt.Println("Nothing to sync")
				return
			}
			fmt.Printf("Queued job %s with %d items\n", job.JobID, job.TotalCount)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "submitting user id")
	cmd.Flags().StringVar(&organizationID, "org", "", "organization id")
	cmd.Flags().StringVar(&platform, "platform", "", "accounting platform (quickbooks, xero, zohobooks)")

	return cmd
}

func jobStatusCommand(app *instance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [job_id]",
		Short: "print a job and its items",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job, err := app.engine.GetSyncJob(cmd.Context(), args[0])
			if err != nil {
				log.Fatalf("Error fetching job: %v\n", err)
			}
			items, err := app.engine.GetJobItems(cmd.Context(), args[0])
			if err != nil {
				log.Fatalf("Error fetching job items: %v\n", err)
			}

			out, err := json.MarshalIndent(map[string]interface{}{
				"job":   job,
				"items": items,
			}, "", "    ")
			if err != nil {
				log.Fatalf("Error printing job: %v\n", err)
			}
			fmt.Println(string(out))
		},
	}
	return cmd
}
