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
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/billsdeck/ledgersync"
	"github.com/billsdeck/ledgersync/config"
	"github.com/billsdeck/ledgersync/database"
)

// CLI wraps the root Cobra command.
type CLI struct {
	cmd *cobra.Command
}

// instance holds the engine and its configuration for the lifetime of one
// command.
type instance struct {
	engine *ledgersync.Ledgersync
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and wires the engine before any subcommand
// executes.
func preRun(app *instance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("ledgersync.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, err := setupEngine(cnf)
		if err != nil {
			log.Fatal(err)
		}

		app.engine = engine
		app.cnf = cnf
		return nil
	}
}

func setupEngine(cfg *config.Configuration) (*ledgersync.Ledgersync, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	engine, err := ledgersync.NewLedgersync(db)
	if err != nil {
		return nil, fmt.Errorf("error creating engine: %v", err)
	}
	return engine, nil
}

// NewCLI builds the command tree: workers, jobs, references, migrate, config.
func NewCLI() *CLI {
	var configFile string
	app := &instance{}

	var rootCmd = &cobra.Command{
		Use:   "ledgersync",
		Short: "Accounting platform sync engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./ledgersync.json", "Configuration file for ledgersync")
	rootCmd.PersistentPreRunE = preRun(app)

	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(jobCommands(app))
	rootCmd.AddCommand(referenceCommands(app))
	rootCmd.AddCommand(migrateCommands())
	rootCmd.AddCommand(configCommands())

	return &CLI{cmd: rootCmd}
}

func (c CLI) executeCLI() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
