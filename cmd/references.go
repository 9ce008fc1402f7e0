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
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

func referenceCommands(app *instance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "references",
		Short: "manage reference data mirrors",
	}

	cmd.AddCommand(referenceSyncCommand(app))

	return cmd
}

func referenceSyncCommand(app *instance) *cobra.Command {
	var organizationID, platform string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "pull accounts and tax rates into the local mirror",
		Run: func(cmd *cobra.Command, args []string) {
			if err := app.engine.SyncReferenceData(cmd.Context(), organizationID, platform); err != nil {
				log.Fatalf("Error syncing reference data: %v\n", err)
			}
			fmt.Println("Reference data synced")
		},
	}

	cmd.Flags().StringVar(&organizationID, "org", "", "organization id")
	cmd.Flags().StringVar(&platform, "platform", "", "accounting platform (quickbooks, xero, zohobooks)")

	return cmd
}
