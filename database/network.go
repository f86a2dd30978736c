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
	"github.com/shopspring/decimal"

	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

const networkColumns = `network_id, name, chain_id, contract_address, hot_wallet_address, decimals, low_balance_threshold, hot_wallet_balance, balance_checked_at, active, paused, last_scanned_block`

// CreateNetwork registers a new network configuration.
func (d Datasource) CreateNetwork(network model.NetworkConfig) (model.NetworkConfig, error) {
	network.NetworkID = model.GenerateUUIDWithSuffix("ntw")
	network.Active = true

	_, err := d.Conn.Exec(`
		INSERT INTO custodia.network_configs (network_id, name, chain_id, contract_address, hot_wallet_address, decimals, low_balance_threshold, active, paused, last_scanned_block)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, network.NetworkID, network.Name, network.ChainID, network.ContractAddress, network.HotWalletAddress, network.Decimals, network.LowBalanceThreshold, network.Active, network.Paused, network.LastScannedBlock)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.NetworkConfig{}, apierror.NewAPIError(apierror.ErrConflict, "Network with this ID already exists", err)
			default:
				return model.NetworkConfig{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.NetworkConfig{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create network", err)
	}

	return network, nil
}

// GetNetwork retrieves a network configuration by ID or by name. Names are
// accepted because chain events identify their network by name.
func (d Datasource) GetNetwork(ctx context.Context, id string) (*model.NetworkConfig, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM custodia.network_configs WHERE network_id = $1 OR name = $1
	`, networkColumns), id)

	network, err := scanNetworkRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Network '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan network data", err)
	}
	return network, nil
}

// GetActiveNetworks retrieves every active network. Paused networks are
// included; pausing suspends crediting and execution, not visibility.
func (d Datasource) GetActiveNetworks(ctx context.Context) ([]model.NetworkConfig, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM custodia.network_configs WHERE active = TRUE ORDER BY name ASC
	`, networkColumns))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve networks", err)
	}
	defer rows.Close()

	networks := []model.NetworkConfig{}

	for rows.Next() {
		network, err := scanNetworkRow(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan network data", err)
		}
		networks = append(networks, *network)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating networks", err)
	}

	return networks, nil
}

// UpdateNetworkBalance records the hot-wallet balance observed by the monitor.
func (d Datasource) UpdateNetworkBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE custodia.network_configs SET hot_wallet_balance = $2, balance_checked_at = $3 WHERE network_id = $1 OR name = $1
	`, id, balance, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update network balance", err)
	}
	return checkNetworkAffected(result, id)
}

// SetNetworkPaused flips the pause flag for a network. Like GetNetwork it
// accepts the ID or the name, so operators can pause by either handle.
func (d Datasource) SetNetworkPaused(ctx context.Context, id string, paused bool) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE custodia.network_configs SET paused = $2 WHERE network_id = $1 OR name = $1
	`, id, paused)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update network pause state", err)
	}
	return checkNetworkAffected(result, id)
}

// UpdateLastScannedBlock advances the deposit listener's block cursor.
// GREATEST keeps a stale poller from rewinding the cursor while the row
// still matches, so zero affected rows always means the network is missing.
func (d Datasource) UpdateLastScannedBlock(ctx context.Context, id string, block uint64) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE custodia.network_configs SET last_scanned_block = GREATEST(last_scanned_block, $2) WHERE network_id = $1
	`, id, block)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update scanned block", err)
	}
	return checkNetworkAffected(result, id)
}

func checkNetworkAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Network '%s' not found", id), nil)
	}
	return nil
}

func scanNetworkRow(row rowScanner) (*model.NetworkConfig, error) {
	network := model.NetworkConfig{}
	var balanceCheckedAt sql.NullTime
	err := row.Scan(&network.NetworkID, &network.Name, &network.ChainID, &network.ContractAddress, &network.HotWalletAddress, &network.Decimals, &network.LowBalanceThreshold, &network.HotWalletBalance, &balanceCheckedAt, &network.Active, &network.Paused, &network.LastScannedBlock)
	if err != nil {
		return nil, err
	}
	if balanceCheckedAt.Valid {
		network.BalanceCheckedAt = &balanceCheckedAt.Time
	}
	return &network, nil
}
