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

package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/custodia-finance/custodia/config"
	"github.com/custodia-finance/custodia/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		newCache, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("cache init error, continuing without cache: %v", errCache)
		}
		instance = &Datasource{Conn: con, Cache: newCache}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	if err := createAccountTable(db); err != nil {
		return nil, err
	}
	if err := createLedgerTransactionTable(db); err != nil {
		return nil, err
	}
	if err := createDepositRecordTable(db); err != nil {
		return nil, err
	}
	if err := createWithdrawalRequestTable(db); err != nil {
		return nil, err
	}
	if err := createNetworkConfigTable(db); err != nil {
		return nil, err
	}
	if err := createSavedAddressTable(db); err != nil {
		return nil, err
	}
	if err := createNotificationTable(db); err != nil {
		return nil, err
	}
	if err := createAlertTable(db); err != nil {
		return nil, err
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS custodia`)
	return err
}

// createAccountTable creates a PostgreSQL table for the Account struct.
// The balance carries a non-negative check so no code path can overdraw.
func createAccountTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS custodia.accounts (
			id SERIAL PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			receive_address TEXT UNIQUE,
			network TEXT,
			balance NUMERIC NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating accounts table: %v", err)
	}
	return err
}

// createLedgerTransactionTable creates the append-only transaction log.
func createLedgerTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS custodia.ledger_transactions (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL REFERENCES custodia.accounts(account_id),
			amount NUMERIC NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('deposit', 'withdrawal', 'adjustment')),
			reference TEXT,
			description TEXT,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("error creating table: %v", err)
	}
	return err
}

// createDepositRecordTable creates the deposit audit table. The unique index
// on (network, tx_hash) is the exactly-once guarantee of the reconciler.
func createDepositRecordTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS custodia.deposit_records (
			id SERIAL PRIMARY KEY,
			deposit_id TEXT NOT NULL UNIQUE,
			network TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			account_id TEXT REFERENCES custodia.accounts(account_id),
			from_address TEXT NOT NULL,
			to_address TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			raw_amount TEXT NOT NULL,
			block_number BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (network, tx_hash)
		)
	`)
	if err != nil {
		log.Printf("error creating table: %v", err)
	}
	return err
}

// createWithdrawalRequestTable creates the withdrawal request table.
func createWithdrawalRequestTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS custodia.withdrawal_requests (
			id SERIAL PRIMARY KEY,
			withdrawal_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL REFERENCES custodia.accounts(account_id),
			amount NUMERIC NOT NULL,
			fee NUMERIC NOT NULL,
			net_amount NUMERIC NOT NULL,
			destination TEXT NOT NULL,
			network TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'sent')),
			execution_status TEXT NOT NULL DEFAULT '',
			tx_hash TEXT,
			failure_reason TEXT,
			retry_count INT NOT NULL DEFAULT 0,
			requested_at TIMESTAMP NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMP,
			processed_by TEXT
		)
	`)
	if err != nil {
		log.Printf("error creating table: %v", err)
	}
	return err
}

// createNetworkConfigTable creates the per-network configuration table.
func createNetworkConfigTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS custodia.network_configs (
			id SERIAL PRIMARY KEY,
			network_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			chain_id BIGINT NOT NULL,
			contract_address TEXT NOT NULL,
			hot_wallet_address TEXT NOT NULL,
			decimals INT NOT NULL,
			low_balance_threshold NUMERIC NOT NULL DEFAULT 0,
			hot_wallet_balance NUMERIC NOT NULL DEFAULT 0,
			balance_checked_at TIMESTAMP,
			active BOOL NOT NULL DEFAULT TRUE,
			paused BOOL NOT NULL DEFAULT FALSE,
			last_scanned_block BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		log.Printf("error creating table: %v", err)
	}
	return err
}

// createSavedAddressTable creates the withdrawal address book table.
func createSavedAddressTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS custodia.saved_addresses (
			id SERIAL PRIMARY KEY,
			address_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL REFERENCES custodia.accounts(account_id),
			network TEXT NOT NULL,
			address TEXT NOT NULL,
			label TEXT,
			locked_until TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (account_id, network, address)
		)
	`)
	if err != nil {
		log.Printf("error creating table: %v", err)
	}
	return err
}

func createNotificationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS custodia.notifications (
			id SERIAL PRIMARY KEY,
			notification_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("error creating table: %v", err)
	}
	return err
}

func createAlertTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS custodia.alerts (
			id SERIAL PRIMARY KEY,
			alert_id TEXT NOT NULL UNIQUE,
			network_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("error creating table: %v", err)
	}
	return err
}
