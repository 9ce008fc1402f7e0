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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/billsdeck/ledgersync"
)

// workerCommands starts the continuous claim loop. The process runs until
// SIGINT or SIGTERM, then drains the in-flight cycle before exiting.
func workerCommands(app *instance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start sync job workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			worker := ledgersync.NewSyncWorker(app.engine)
			worker.Start(ctx)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			logrus.WithField("signal", sig.String()).Info("shutting down workers")

			worker.Stop()
		},
	}
	return cmd
}
