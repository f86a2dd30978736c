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
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

const withdrawalColumns = `withdrawal_id, account_id, amount, fee, net_amount, destination, network, status, execution_status, tx_hash, failure_reason, retry_count, requested_at, processed_at, processed_by`

// CreateWithdrawal inserts a new withdrawal request in pending status.
func (d Datasource) CreateWithdrawal(ctx context.Context, w *model.WithdrawalRequest) (*model.WithdrawalRequest, error) {
	if w.WithdrawalID == "" {
		w.WithdrawalID = model.GenerateUUIDWithSuffix("wdl")
	}
	w.RequestedAt = time.Now()
	w.Status = model.WithdrawalStatusPending

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO custodia.withdrawal_requests (withdrawal_id, account_id, amount, fee, net_amount, destination, network, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, w.WithdrawalID, w.AccountID, w.Amount, w.Fee, w.NetAmount, w.Destination, w.Network, w.Status, w.RequestedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid account ID", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create withdrawal request", err)
	}

	return w, nil
}

// GetWithdrawal retrieves a withdrawal request by ID.
func (d Datasource) GetWithdrawal(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM custodia.withdrawal_requests WHERE withdrawal_id = $1
	`, withdrawalColumns), id)

	w, err := scanWithdrawalRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Withdrawal with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan withdrawal data", err)
	}
	return w, nil
}

// GetWithdrawalsByStatus retrieves withdrawal requests in a given status,
// oldest first so the executor drains the backlog in request order.
func (d Datasource) GetWithdrawalsByStatus(ctx context.Context, status string, limit, offset int) ([]model.WithdrawalRequest, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM custodia.withdrawal_requests
		WHERE status = $1
		ORDER BY requested_at ASC
		LIMIT $2 OFFSET $3
	`, withdrawalColumns), status, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve withdrawals", err)
	}
	defer rows.Close()

	withdrawals := []model.WithdrawalRequest{}

	for rows.Next() {
		w, err := scanWithdrawalRow(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan withdrawal data", err)
		}
		withdrawals = append(withdrawals, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating withdrawals", err)
	}

	return withdrawals, nil
}

// GetExecutableWithdrawals retrieves the approved backlog for the executor,
// oldest first. Rows parked with an executing marker are excluded in the
// query itself; they stay approved while an operator resolves the attempt,
// and fetching them would let a window full of parked rows starve every
// approval queued behind it.
func (d Datasource) GetExecutableWithdrawals(ctx context.Context, limit int) ([]model.WithdrawalRequest, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM custodia.withdrawal_requests
		WHERE status = $1 AND execution_status <> $2
		ORDER BY requested_at ASC
		LIMIT $3
	`, withdrawalColumns), model.WithdrawalStatusApproved, model.ExecutionStatusExecuting, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve executable withdrawals", err)
	}
	defer rows.Close()

	withdrawals := []model.WithdrawalRequest{}

	for rows.Next() {
		w, err := scanWithdrawalRow(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan withdrawal data", err)
		}
		withdrawals = append(withdrawals, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating withdrawals", err)
	}

	return withdrawals, nil
}

// UpdateWithdrawalStatus moves a withdrawal from one status to another. The
// fromStatus guard is part of the WHERE clause, so a request that has already
// moved on is never overwritten; that case returns ErrAlreadyProcessed with
// the current row so callers can report what actually happened.
func (d Datasource) UpdateWithdrawalStatus(ctx context.Context, id, fromStatus, toStatus, actor, txHash string) (*model.WithdrawalRequest, error) {
	now := time.Now()

	var hash interface{}
	if txHash != "" {
		hash = txHash
	}
	var processedBy interface{}
	if actor != "" {
		processedBy = actor
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE custodia.withdrawal_requests
		SET status = $3, processed_at = $4, processed_by = COALESCE($5, processed_by), tx_hash = COALESCE($6, tx_hash)
		WHERE withdrawal_id = $1 AND status = $2
	`, id, fromStatus, toStatus, now, processedBy, hash)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update withdrawal status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		current, getErr := d.GetWithdrawal(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return current, apierror.NewAPIError(apierror.ErrAlreadyProcessed, fmt.Sprintf("Withdrawal '%s' is %s, not %s", id, current.Status, fromStatus), nil)
	}

	return d.GetWithdrawal(ctx, id)
}

// UpdateExecutionStatus writes the executor-side progress marker. It is
// deliberately separate from the approval state machine: the marker changes
// while status stays approved, and it survives process crashes so a restarted
// executor can see the in-flight attempt.
func (d Datasource) UpdateExecutionStatus(ctx context.Context, id, execStatus, txHash, failureReason string, retryCount int) error {
	var hash interface{}
	if txHash != "" {
		hash = txHash
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE custodia.withdrawal_requests
		SET execution_status = $2, tx_hash = COALESCE($3, tx_hash), failure_reason = $4, retry_count = $5
		WHERE withdrawal_id = $1
	`, id, execStatus, hash, failureReason, retryCount)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update execution status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Withdrawal with ID '%s' not found", id), nil)
	}
	return nil
}

func scanWithdrawalRow(row rowScanner) (*model.WithdrawalRequest, error) {
	w := model.WithdrawalRequest{}
	var txHash, failureReason, processedBy sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&w.WithdrawalID, &w.AccountID, &w.Amount, &w.Fee, &w.NetAmount, &w.Destination, &w.Network, &w.Status, &w.ExecutionStatus, &txHash, &failureReason, &w.RetryCount, &w.RequestedAt, &processedAt, &processedBy)
	if err != nil {
		return nil, err
	}
	w.TxHash = txHash.String
	w.FailureReason = failureReason.String
	w.ProcessedBy = processedBy.String
	if processedAt.Valid {
		w.ProcessedAt = &processedAt.Time
	}
	return &w, nil
}
