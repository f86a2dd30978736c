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
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

// CreateAccount inserts a new Account into the database.
// This function handles metadata serialization and database insertion.
// Parameters:
// - account: The account model containing the display name, receive address and network.
// Returns:
// - model.Account: The created account with the assigned account ID and creation timestamp.
// - error: Returns an error if any issue occurs while marshalling metadata or executing the database query.
func (d Datasource) CreateAccount(account model.Account) (model.Account, error) {
	metaDataJSON, err := json.Marshal(account.MetaData)
	if err != nil {
		return account, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	account.AccountID = model.GenerateUUIDWithSuffix("acc")
	account.CreatedAt = time.Now()

	// An account may exist before an address is linked to it. The column is
	// unique, so an empty address must be stored as NULL rather than ''.
	var receiveAddress interface{}
	if account.ReceiveAddress != "" {
		receiveAddress = account.ReceiveAddress
	}
	var network interface{}
	if account.Network != "" {
		network = account.Network
	}

	_, err = d.Conn.Exec(`
		INSERT INTO custodia.accounts (account_id, name, receive_address, network, balance, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.AccountID, account.Name, receiveAddress, network, account.Balance, account.CreatedAt, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.Account{}, apierror.NewAPIError(apierror.ErrConflict, "Account with this ID or receive address already exists", err)
			default:
				return model.Account{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.Account{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create account", err)
	}

	return account, nil
}

// GetAccountByID retrieves an account by its ID from the database.
// The result of a cache hit skips the database entirely, so the cached copy
// is only written on the read path and invalidated by the balance mutators.
func (d Datasource) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	cacheKey := fmt.Sprintf("account:%s", id)
	account := model.Account{}
	if d.Cache != nil {
		if err := d.Cache.Get(ctx, cacheKey, &account); err == nil && account.AccountID != "" {
			return &account, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT account_id, name, receive_address, network, balance, created_at, meta_data
		FROM custodia.accounts
		WHERE account_id = $1
	`, id)

	scanned, err := scanAccountRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan account data", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Set(ctx, cacheKey, *scanned, 5*time.Minute)
	}

	return scanned, nil
}

// GetAccountByReceiveAddress resolves an on-chain deposit destination to the
// account that owns it. Reconciliation treats a miss as an unlinked deposit,
// so no-rows is surfaced as a typed not-found rather than an internal error.
func (d Datasource) GetAccountByReceiveAddress(ctx context.Context, network, address string) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT account_id, name, receive_address, network, balance, created_at, meta_data
		FROM custodia.accounts
		WHERE network = $1 AND LOWER(receive_address) = LOWER($2)
	`, network, address)

	account, err := scanAccountRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("No account owns address '%s' on network '%s'", address, network), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan account data", err)
	}

	return account, nil
}

// GetAllAccounts retrieves a paginated list of accounts.
func (d Datasource) GetAllAccounts(limit, offset int) ([]model.Account, error) {
	rows, err := d.Conn.Query(`
		SELECT account_id, name, receive_address, network, balance, created_at, meta_data
		FROM custodia.accounts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve accounts", err)
	}
	defer rows.Close()

	accounts := []model.Account{}

	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan account data", err)
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating accounts", err)
	}

	return accounts, nil
}

// CreateSavedAddress inserts a withdrawal destination into an account's
// address book.
func (d Datasource) CreateSavedAddress(addr model.SavedAddress) (model.SavedAddress, error) {
	addr.AddressID = model.GenerateUUIDWithSuffix("adr")
	addr.CreatedAt = time.Now()

	_, err := d.Conn.Exec(`
		INSERT INTO custodia.saved_addresses (address_id, account_id, network, address, label, locked_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, addr.AddressID, addr.AccountID, addr.Network, addr.Address, addr.Label, addr.LockedUntil, addr.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.SavedAddress{}, apierror.NewAPIError(apierror.ErrConflict, "Address already saved for this account and network", err)
			case "foreign_key_violation":
				return model.SavedAddress{}, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid account ID", err)
			default:
				return model.SavedAddress{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.SavedAddress{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save address", err)
	}

	return addr, nil
}

func scanAccountRow(row rowScanner) (*model.Account, error) {
	account := model.Account{}
	var receiveAddress, network sql.NullString
	var metaDataJSON []byte
	err := row.Scan(&account.AccountID, &account.Name, &receiveAddress, &network, &account.Balance, &account.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}
	account.ReceiveAddress = receiveAddress.String
	account.Network = network.String
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &account.MetaData); err != nil {
			return nil, err
		}
	}
	return &account, nil
}

// GetSavedAddress looks up a single address-book entry. Withdrawal requests
// are rejected when no entry exists for the destination.
func (d Datasource) GetSavedAddress(ctx context.Context, accountID, network, address string) (*model.SavedAddress, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT address_id, account_id, network, address, label, locked_until, created_at
		FROM custodia.saved_addresses
		WHERE account_id = $1 AND network = $2 AND LOWER(address) = LOWER($3)
	`, accountID, network, address)

	addr := model.SavedAddress{}
	var label sql.NullString
	var lockedUntil sql.NullTime
	err := row.Scan(&addr.AddressID, &addr.AccountID, &addr.Network, &addr.Address, &label, &lockedUntil, &addr.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Address '%s' is not saved for this account", address), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan saved address", err)
	}
	addr.Label = label.String
	if lockedUntil.Valid {
		addr.LockedUntil = &lockedUntil.Time
	}

	return &addr, nil
}
