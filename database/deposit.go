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
	"math/big"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

// InsertDepositRecord inserts a deposit observed on chain. The unique index
// on (network, tx_hash) makes this the idempotency gate for reconciliation: a
// replayed event hits unique_violation and surfaces as ErrAlreadyProcessed,
// which callers treat as a duplicate rather than a failure.
func (d Datasource) InsertDepositRecord(ctx context.Context, record *model.DepositRecord) (*model.DepositRecord, error) {
	record.DepositID = model.GenerateUUIDWithSuffix("dep")
	record.CreatedAt = time.Now()
	if record.Status == "" {
		record.Status = model.DepositStatusConfirmed
	}

	var accountID interface{}
	if record.AccountID != "" {
		accountID = record.AccountID
	}

	rawAmount := "0"
	if record.RawAmount != nil {
		rawAmount = record.RawAmount.String()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO custodia.deposit_records (deposit_id, network, tx_hash, account_id, from_address, to_address, amount, raw_amount, block_number, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, record.DepositID, record.Network, record.TxHash, accountID, record.FromAddress, record.ToAddress, record.Amount, rawAmount, record.BlockNumber, record.Status, record.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrAlreadyProcessed, fmt.Sprintf("Deposit %s on network %s already recorded", record.TxHash, record.Network), err)
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid account ID", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record deposit", err)
	}

	return record, nil
}

// GetDepositByNetworkAndHash retrieves a deposit record by its natural key.
func (d Datasource) GetDepositByNetworkAndHash(ctx context.Context, network, txHash string) (*model.DepositRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT deposit_id, network, tx_hash, account_id, from_address, to_address, amount, raw_amount, block_number, status, created_at
		FROM custodia.deposit_records
		WHERE network = $1 AND tx_hash = $2
	`, network, txHash)

	record, err := scanDepositRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Deposit %s on network %s not found", txHash, network), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan deposit data", err)
	}
	return record, nil
}

// GetDepositsByAccount retrieves a paginated deposit history for an account.
func (d Datasource) GetDepositsByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.DepositRecord, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT deposit_id, network, tx_hash, account_id, from_address, to_address, amount, raw_amount, block_number, status, created_at
		FROM custodia.deposit_records
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve deposits", err)
	}
	defer rows.Close()

	deposits := []model.DepositRecord{}

	for rows.Next() {
		record, err := scanDepositRow(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan deposit data", err)
		}
		deposits = append(deposits, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating deposits", err)
	}

	return deposits, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDepositRow(row rowScanner) (*model.DepositRecord, error) {
	record := model.DepositRecord{}
	var accountID sql.NullString
	var rawAmount string
	err := row.Scan(&record.DepositID, &record.Network, &record.TxHash, &accountID, &record.FromAddress, &record.ToAddress, &record.Amount, &rawAmount, &record.BlockNumber, &record.Status, &record.CreatedAt)
	if err != nil {
		return nil, err
	}
	record.AccountID = accountID.String
	raw, ok := new(big.Int).SetString(rawAmount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid raw amount %q", rawAmount)
	}
	record.RawAmount = raw
	return &record, nil
}
