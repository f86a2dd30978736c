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
	"context"

	"github.com/shopspring/decimal"

	"github.com/custodia-finance/custodia/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	account    // Account and saved-address operations
	ledger     // Atomic balance mutations and the transaction log
	deposit    // Deposit records
	withdrawal // Withdrawal requests
	network    // Network configuration and monitoring state
	alerting   // Notifications and operational alerts
}

// account defines methods for handling accounts and their address books.
type account interface {
	CreateAccount(account model.Account) (model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByReceiveAddress(ctx context.Context, network, address string) (*model.Account, error)
	GetAllAccounts(limit, offset int) ([]model.Account, error)
	CreateSavedAddress(addr model.SavedAddress) (model.SavedAddress, error)
	GetSavedAddress(ctx context.Context, accountID, network, address string) (*model.SavedAddress, error)
}

// ledger defines the sole mutators of account balances. Every balance change
// commits exactly one ledger transaction in the same database transaction.
type ledger interface {
	CreditAccount(ctx context.Context, txn *model.LedgerTransaction) (*model.LedgerTransaction, error)
	DebitAccount(ctx context.Context, txn *model.LedgerTransaction) (*model.LedgerTransaction, error)
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	GetTransaction(ctx context.Context, id string) (*model.LedgerTransaction, error)
	GetAccountTransactions(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerTransaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status string) error
	UpdateTransactionStatusByReference(ctx context.Context, reference string, status string) error
}

// deposit defines methods for the deposit audit trail.
type deposit interface {
	InsertDepositRecord(ctx context.Context, record *model.DepositRecord) (*model.DepositRecord, error)
	GetDepositByNetworkAndHash(ctx context.Context, network, txHash string) (*model.DepositRecord, error)
	GetDepositsByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.DepositRecord, error)
}

// withdrawal defines methods for the withdrawal request state machine.
type withdrawal interface {
	CreateWithdrawal(ctx context.Context, w *model.WithdrawalRequest) (*model.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, id string) (*model.WithdrawalRequest, error)
	GetWithdrawalsByStatus(ctx context.Context, status string, limit, offset int) ([]model.WithdrawalRequest, error)
	GetExecutableWithdrawals(ctx context.Context, limit int) ([]model.WithdrawalRequest, error)
	UpdateWithdrawalStatus(ctx context.Context, id, fromStatus, toStatus, actor, txHash string) (*model.WithdrawalRequest, error)
	UpdateExecutionStatus(ctx context.Context, id, execStatus, txHash, failureReason string, retryCount int) error
}

// network defines methods for network configuration and monitor state.
type network interface {
	CreateNetwork(network model.NetworkConfig) (model.NetworkConfig, error)
	GetNetwork(ctx context.Context, id string) (*model.NetworkConfig, error)
	GetActiveNetworks(ctx context.Context) ([]model.NetworkConfig, error)
	UpdateNetworkBalance(ctx context.Context, id string, balance decimal.Decimal) error
	SetNetworkPaused(ctx context.Context, id string, paused bool) error
	UpdateLastScannedBlock(ctx context.Context, id string, block uint64) error
}

// alerting defines methods for user notifications and operational alerts.
type alerting interface {
	InsertNotification(ctx context.Context, n *model.Notification) (*model.Notification, error)
	InsertAlert(ctx context.Context, a *model.Alert) (*model.Alert, error)
	GetAlerts(ctx context.Context, networkID string, limit, offset int) ([]model.Alert, error)
}
