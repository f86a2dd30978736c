/*
Copyright 2024 Custodia Finance Authors.

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

	"github.com/custodia-finance/custodia"
	"github.com/custodia-finance/custodia/chain/evm"
	"github.com/custodia-finance/custodia/config"
	"github.com/custodia-finance/custodia/database"
	"github.com/custodia-finance/custodia/internal/notification"
)

// Custodia represents the CLI application, encapsulating the root Cobra command.
type Custodia struct {
	cmd *cobra.Command
}

// custodiaInstance holds the runtime service instance and its configuration,
// shared by every subcommand.
type custodiaInstance struct {
	custodia *custodia.Custodia
	cnf      *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the service instance
// before running any command.
func preRun(app *custodiaInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("custodia.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newCustodia, err := setupCustodia(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.custodia = newCustodia
		app.cnf = cnf

		return nil
	}
}

// setupCustodia creates the service instance: the Postgres datasource and
// the EVM chain client wired from the configured networks.
func setupCustodia(cfg *config.Configuration) (*custodia.Custodia, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	chainClient, err := evm.NewClient(cfg.Chains)
	if err != nil {
		return nil, fmt.Errorf("error creating chain client: %v", err)
	}

	newCustodia, err := custodia.NewCustodia(db, chainClient)
	if err != nil {
		return nil, fmt.Errorf("error creating custodia: %v", err)
	}
	return newCustodia, nil
}

// NewCLI creates the command-line interface for the Custodia application.
func NewCLI() *Custodia {
	var configFile string
	b := &custodiaInstance{}

	var rootCmd = &cobra.Command{
		Use:   "custodia",
		Short: "Custodial balance ledger",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./custodia.json", "Configuration file for custodia")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &Custodia{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during
// execution.
func (w Custodia) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
