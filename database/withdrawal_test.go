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

func withdrawalRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"withdrawal_id", "account_id", "amount", "fee", "net_amount", "destination", "network", "status", "execution_status", "tx_hash", "failure_reason", "retry_count", "requested_at", "processed_at", "processed_by"})
}

func TestCreateWithdrawal_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	w := &model.WithdrawalRequest{
		AccountID:   "acc_1",
		Amount:      decimal.RequireFromString("100"),
		Fee:         decimal.RequireFromString("2"),
		NetAmount:   decimal.RequireFromString("98"),
		Destination: "0xdest",
		Network:     "ethereum",
	}

	mock.ExpectExec("INSERT INTO custodia.withdrawal_requests").
		WithArgs(sqlmock.AnyArg(), "acc_1", w.Amount, w.Fee, w.NetAmount, "0xdest", "ethereum", model.WithdrawalStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateWithdrawal(context.Background(), w)
	assert.NoError(t, err)
	assert.Contains(t, created.WithdrawalID, "wdl_")
	assert.Equal(t, model.WithdrawalStatusPending, created.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithdrawalStatus_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE custodia.withdrawal_requests").
		WithArgs("wdl_1", model.WithdrawalStatusPending, model.WithdrawalStatusApproved, sqlmock.AnyArg(), "staff_9", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("SELECT withdrawal_id, account_id, amount").
		WithArgs("wdl_1").
		WillReturnRows(withdrawalRows().
			AddRow("wdl_1", "acc_1", "100", "2", "98", "0xdest", "ethereum", model.WithdrawalStatusApproved, "", nil, nil, 0, time.Now(), time.Now(), "staff_9"))

	updated, err := ds.UpdateWithdrawalStatus(context.Background(), "wdl_1", model.WithdrawalStatusPending, model.WithdrawalStatusApproved, "staff_9", "")
	assert.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusApproved, updated.Status)
	assert.Equal(t, "staff_9", updated.ProcessedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithdrawalStatus_AlreadyProcessed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// The guarded update matches no rows because the request is already
	// approved; the current row comes back with the conflict error.
	mock.ExpectExec("UPDATE custodia.withdrawal_requests").
		WithArgs("wdl_1", model.WithdrawalStatusPending, model.WithdrawalStatusRejected, sqlmock.AnyArg(), "staff_9", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT withdrawal_id, account_id, amount").
		WithArgs("wdl_1").
		WillReturnRows(withdrawalRows().
			AddRow("wdl_1", "acc_1", "100", "2", "98", "0xdest", "ethereum", model.WithdrawalStatusApproved, "", nil, nil, 0, time.Now(), time.Now(), "staff_2"))

	current, err := ds.UpdateWithdrawalStatus(context.Background(), "wdl_1", model.WithdrawalStatusPending, model.WithdrawalStatusRejected, "staff_9", "")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrAlreadyProcessed, apiErr.Code)
	assert.NotNil(t, current)
	assert.Equal(t, model.WithdrawalStatusApproved, current.Status)
}

func TestUpdateExecutionStatus_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE custodia.withdrawal_requests").
		WithArgs("wdl_1", model.ExecutionStatusExecuting, nil, "", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateExecutionStatus(context.Background(), "wdl_1", model.ExecutionStatusExecuting, "", "", 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWithdrawalsByStatus_OldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT withdrawal_id, account_id, amount").
		WithArgs(model.WithdrawalStatusApproved, 50, 0).
		WillReturnRows(withdrawalRows().
			AddRow("wdl_1", "acc_1", "100", "2", "98", "0xdest", "ethereum", model.WithdrawalStatusApproved, "", nil, nil, 0, time.Now().Add(-time.Hour), nil, nil).
			AddRow("wdl_2", "acc_2", "10", "0.2", "9.8", "0xdest2", "polygon", model.WithdrawalStatusApproved, "failed", nil, "nonce too low", 2, time.Now(), nil, nil))

	withdrawals, err := ds.GetWithdrawalsByStatus(context.Background(), model.WithdrawalStatusApproved, 50, 0)
	assert.NoError(t, err)
	assert.Len(t, withdrawals, 2)
	assert.Equal(t, "nonce too low", withdrawals[1].FailureReason)
	assert.Equal(t, 2, withdrawals[1].RetryCount)
}

func TestGetExecutableWithdrawals_ExcludesParkedAttempts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// Approved rows holding the executing marker are filtered in SQL, not in
	// the caller; otherwise enough parked rows would fill the fetch window and
	// starve every approval queued behind them.
	mock.ExpectQuery(`WHERE status = \$1 AND execution_status <> \$2`).
		WithArgs(model.WithdrawalStatusApproved, model.ExecutionStatusExecuting, 50).
		WillReturnRows(withdrawalRows().
			AddRow("wdl_2", "acc_2", "10", "0.2", "9.8", "0xdest2", "ethereum", model.WithdrawalStatusApproved, "", nil, nil, 0, time.Now(), nil, nil))

	withdrawals, err := ds.GetExecutableWithdrawals(context.Background(), 50)
	assert.NoError(t, err)
	assert.Len(t, withdrawals, 1)
	assert.Equal(t, "wdl_2", withdrawals[0].WithdrawalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
