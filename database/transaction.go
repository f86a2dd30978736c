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

	"github.com/shopspring/decimal"

	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

// CreditAccount increases an account balance and records the matching ledger
// transaction, both inside one database transaction. Either both rows commit
// or neither does.
func (d Datasource) CreditAccount(ctx context.Context, txn *model.LedgerTransaction) (*model.LedgerTransaction, error) {
	if txn.Amount.IsNegative() || txn.Amount.IsZero() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Credit amount must be positive", nil)
	}

	txn.TransactionID = model.GenerateUUIDWithSuffix("txn")
	txn.CreatedAt = time.Now()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE custodia.accounts
		SET balance = balance + $1
		WHERE account_id = $2
	`, txn.Amount, txn.AccountID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update balance", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", txn.AccountID), nil)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO custodia.ledger_transactions (transaction_id, account_id, amount, kind, reference, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, txn.TransactionID, txn.AccountID, txn.Amount, txn.Kind, txn.Reference, txn.Description, txn.Status, txn.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record ledger transaction", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	d.invalidateAccountCache(ctx, txn.AccountID)
	return txn, nil
}

// DebitAccount decreases an account balance and records the matching ledger
// transaction. The balance check and the decrement are one conditional
// UPDATE, so two concurrent debits can never both succeed against the same
// funds. The stored ledger amount is negative.
func (d Datasource) DebitAccount(ctx context.Context, txn *model.LedgerTransaction) (*model.LedgerTransaction, error) {
	if txn.Amount.IsNegative() || txn.Amount.IsZero() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Debit amount must be positive", nil)
	}

	txn.TransactionID = model.GenerateUUIDWithSuffix("txn")
	txn.CreatedAt = time.Now()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE custodia.accounts
		SET balance = balance - $1
		WHERE account_id = $2 AND balance >= $1
	`, txn.Amount, txn.AccountID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update balance", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		// Either the account does not exist or it cannot cover the amount.
		// Both fail closed; the caller distinguishes by fetching the account.
		return nil, apierror.NewAPIError(apierror.ErrInsufficientBalance, "Insufficient balance", nil)
	}

	storedAmount := txn.Amount.Neg()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO custodia.ledger_transactions (transaction_id, account_id, amount, kind, reference, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, txn.TransactionID, txn.AccountID, storedAmount, txn.Kind, txn.Reference, txn.Description, txn.Status, txn.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record ledger transaction", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	txn.Amount = storedAmount
	d.invalidateAccountCache(ctx, txn.AccountID)
	return txn, nil
}

func (d Datasource) invalidateAccountCache(ctx context.Context, accountID string) {
	if d.Cache == nil {
		return
	}
	_ = d.Cache.Delete(ctx, fmt.Sprintf("account:%s", accountID))
}

// GetBalance reads the current balance of an account.
func (d Datasource) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := d.Conn.QueryRowContext(ctx, `
		SELECT balance FROM custodia.accounts WHERE account_id = $1
	`, accountID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", accountID), err)
		}
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read balance", err)
	}
	return balance, nil
}

// GetTransaction retrieves a single ledger transaction by ID.
func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.LedgerTransaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT transaction_id, account_id, amount, kind, reference, description, status, created_at
		FROM custodia.ledger_transactions
		WHERE transaction_id = $1
	`, id)

	txn := model.LedgerTransaction{}
	var reference sql.NullString
	err := row.Scan(&txn.TransactionID, &txn.AccountID, &txn.Amount, &txn.Kind, &reference, &txn.Description, &txn.Status, &txn.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction data", err)
	}
	txn.Reference = reference.String

	return &txn, nil
}

// GetAccountTransactions retrieves a paginated transaction history for an
// account, newest first.
func (d Datasource) GetAccountTransactions(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerTransaction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT transaction_id, account_id, amount, kind, reference, description, status, created_at
		FROM custodia.ledger_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer rows.Close()

	transactions := []model.LedgerTransaction{}

	for rows.Next() {
		txn := model.LedgerTransaction{}
		var reference sql.NullString
		err = rows.Scan(&txn.TransactionID, &txn.AccountID, &txn.Amount, &txn.Kind, &reference, &txn.Description, &txn.Status, &txn.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction data", err)
		}
		txn.Reference = reference.String
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating transactions", err)
	}

	return transactions, nil
}

// UpdateTransactionStatus updates the status of a single ledger transaction.
func (d Datasource) UpdateTransactionStatus(ctx context.Context, id string, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE custodia.ledger_transactions SET status = $2 WHERE transaction_id = $1
	`, id, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transaction status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
	}
	return nil
}

// UpdateTransactionStatusByReference updates every ledger transaction that
// shares a reference. Withdrawal processing uses the withdrawal ID as the
// reference, so approval and rejection flow through here.
func (d Datasource) UpdateTransactionStatusByReference(ctx context.Context, reference string, status string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE custodia.ledger_transactions SET status = $2 WHERE reference = $1
	`, reference, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transaction status", err)
	}
	return nil
}
