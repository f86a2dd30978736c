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
package custodia

import (
	"context"
	"log"
	"math/big"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-finance/custodia/chain"
	"github.com/custodia-finance/custodia/config"
	"github.com/custodia-finance/custodia/database"
	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

// mockChain is a test double for the chain client. Unset functions fail the
// call so tests only exercise the paths they declare.
type mockChain struct {
	submit  func(ctx context.Context, network model.NetworkConfig, destination string, amount *big.Int) (string, error)
	balance func(ctx context.Context, network model.NetworkConfig) (*big.Int, error)
	latest  func(ctx context.Context, network model.NetworkConfig) (uint64, error)
	scan    func(ctx context.Context, network model.NetworkConfig, fromBlock, toBlock uint64) ([]chain.TransferEvent, error)
}

func (m *mockChain) SubmitTransfer(ctx context.Context, network model.NetworkConfig, destination string, amount *big.Int) (string, error) {
	if m.submit == nil {
		return "", assert.AnError
	}
	return m.submit(ctx, network, destination, amount)
}

func (m *mockChain) TokenBalance(ctx context.Context, network model.NetworkConfig) (*big.Int, error) {
	if m.balance == nil {
		return nil, assert.AnError
	}
	return m.balance(ctx, network)
}

func (m *mockChain) LatestBlock(ctx context.Context, network model.NetworkConfig) (uint64, error) {
	if m.latest == nil {
		return 0, assert.AnError
	}
	return m.latest(ctx, network)
}

func (m *mockChain) ScanTransfers(ctx context.Context, network model.NetworkConfig, fromBlock, toBlock uint64) ([]chain.TransferEvent, error) {
	if m.scan == nil {
		return nil, assert.AnError
	}
	return m.scan(ctx, network, fromBlock, toBlock)
}

func newTestDataSource() (database.IDataSource, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Printf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	return &database.Datasource{Conn: db}, mock, nil
}

// newTestCustodia wires a Custodia instance against sqlmock, miniredis and a
// mock chain client.
func newTestCustodia(t *testing.T, chainClient chain.Client) (*Custodia, sqlmock.Sqlmock) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis:      config.RedisConfig{Dns: mr.Addr()},
		DataSource: config.DataSourceConfig{Dns: "postgres://test"},
		Withdrawal: config.WithdrawalConfig{
			MinimumAmount: decimal.RequireFromString("50"),
			FeePercent:    decimal.RequireFromString("2"),
		},
		Queue: config.QueueConfig{WebhookQueue: "new:webhook"},
	})

	datasource, mock, err := newTestDataSource()
	require.NoError(t, err)

	if chainClient == nil {
		chainClient = &mockChain{}
	}
	c, err := NewCustodia(datasource, chainClient)
	require.NoError(t, err)
	return c, mock
}

func TestCreditAccount_ServiceFlow(t *testing.T) {
	c, mock := newTestCustodia(t, nil)

	amount := decimal.RequireFromString("50.5")
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE custodia.accounts").
		WithArgs(amount, "acc_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO custodia.ledger_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	txn, err := c.CreditAccount(context.Background(), &model.LedgerTransaction{
		AccountID: "acc_1",
		Amount:    amount,
		Kind:      model.KindDeposit,
		Status:    model.TxnStatusCompleted,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, txn.TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitAccount_NoOverdraft(t *testing.T) {
	c, mock := newTestCustodia(t, nil)

	amount := decimal.RequireFromString("200")
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE custodia.accounts").
		WithArgs(amount, "acc_1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := c.DebitAccount(context.Background(), &model.LedgerTransaction{
		AccountID: "acc_1",
		Amount:    amount,
		Kind:      model.KindWithdrawal,
		Status:    model.TxnStatusPending,
	})
	assert.Error(t, err)
	assert.True(t, apierror.NewAPIError(apierror.ErrInsufficientBalance, "", nil).Is(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalance_ServiceFlow(t *testing.T) {
	c, mock := newTestCustodia(t, nil)

	mock.ExpectQuery("SELECT balance FROM custodia.accounts").
		WithArgs("acc_1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("150.50"))

	balance, err := c.GetBalance(context.Background(), "acc_1")
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("150.50")))
}
