package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

func TestCreditAccount_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	amount := decimal.RequireFromString("50.5")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE custodia.accounts").
		WithArgs(amount, "acc_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO custodia.ledger_transactions").
		WithArgs(sqlmock.AnyArg(), "acc_1", amount, model.KindDeposit, "eth:0xhash", "Deposit credit", model.TxnStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	txn, err := ds.CreditAccount(context.Background(), &model.LedgerTransaction{
		AccountID:   "acc_1",
		Amount:      amount,
		Kind:        model.KindDeposit,
		Reference:   "eth:0xhash",
		Description: "Deposit credit",
		Status:      model.TxnStatusCompleted,
	})
	assert.NoError(t, err)
	assert.Contains(t, txn.TransactionID, "txn_")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditAccount_NonPositiveAmount(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	_, err = ds.CreditAccount(context.Background(), &model.LedgerTransaction{
		AccountID: "acc_1",
		Amount:    decimal.Zero,
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestDebitAccount_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	amount := decimal.RequireFromString("25")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE custodia.accounts").
		WithArgs(amount, "acc_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO custodia.ledger_transactions").
		WithArgs(sqlmock.AnyArg(), "acc_1", amount.Neg(), model.KindWithdrawal, "wdl_1", "Withdrawal hold", model.TxnStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	txn, err := ds.DebitAccount(context.Background(), &model.LedgerTransaction{
		AccountID:   "acc_1",
		Amount:      amount,
		Kind:        model.KindWithdrawal,
		Reference:   "wdl_1",
		Description: "Withdrawal hold",
		Status:      model.TxnStatusPending,
	})
	assert.NoError(t, err)
	assert.True(t, txn.Amount.IsNegative())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitAccount_InsufficientBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	amount := decimal.RequireFromString("1000000")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE custodia.accounts").
		WithArgs(amount, "acc_1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = ds.DebitAccount(context.Background(), &model.LedgerTransaction{
		AccountID: "acc_1",
		Amount:    amount,
		Kind:      model.KindWithdrawal,
		Status:    model.TxnStatusPending,
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInsufficientBalance, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitAccount_LedgerInsertFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	amount := decimal.RequireFromString("10")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE custodia.accounts").
		WithArgs(amount, "acc_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO custodia.ledger_transactions").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = ds.DebitAccount(context.Background(), &model.LedgerTransaction{
		AccountID: "acc_1",
		Amount:    amount,
		Kind:      model.KindWithdrawal,
		Status:    model.TxnStatusPending,
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalance_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT balance FROM custodia.accounts").
		WithArgs("acc_1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("42.75"))

	balance, err := ds.GetBalance(context.Background(), "acc_1")
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("42.75")))
}

func TestGetAccountTransactions_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"transaction_id", "account_id", "amount", "kind", "reference", "description", "status", "created_at"}).
		AddRow("txn_1", "acc_1", "10", model.KindDeposit, "eth:0x1", "Deposit credit", model.TxnStatusCompleted, time.Now()).
		AddRow("txn_2", "acc_1", "-5", model.KindWithdrawal, "wdl_1", "Withdrawal hold", model.TxnStatusPending, time.Now())

	mock.ExpectQuery("SELECT transaction_id, account_id, amount").
		WithArgs("acc_1", 20, 0).
		WillReturnRows(rows)

	transactions, err := ds.GetAccountTransactions(context.Background(), "acc_1", 20, 0)
	assert.NoError(t, err)
	assert.Len(t, transactions, 2)
	assert.Equal(t, model.KindWithdrawal, transactions[1].Kind)
	assert.True(t, transactions[1].Amount.IsNegative())
}

func TestUpdateTransactionStatusByReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE custodia.ledger_transactions").
		WithArgs("wdl_1", model.TxnStatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateTransactionStatusByReference(context.Background(), "wdl_1", model.TxnStatusApproved)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
