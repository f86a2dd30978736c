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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NetworkConfig describes one supported blockchain network and the custodial
// hot wallet operated on it. Active controls whether the network exists from
// the platform's point of view; Paused independently gates new deposit
// credits and withdrawal requests while leaving the network visible.
type NetworkConfig struct {
	NetworkID           string          `json:"network_id"`
	Name                string          `json:"name"`
	ChainID             int64           `json:"chain_id"`
	ContractAddress     string          `json:"contract_address"`
	HotWalletAddress    string          `json:"hot_wallet_address"`
	Decimals            int32           `json:"decimals"`
	LowBalanceThreshold decimal.Decimal `json:"low_balance_threshold"`
	HotWalletBalance    decimal.Decimal `json:"hot_wallet_balance"`
	BalanceCheckedAt    *time.Time      `json:"balance_checked_at,omitempty"`
	Active              bool            `json:"active"`
	Paused              bool            `json:"paused"`
	LastScannedBlock    uint64          `json:"last_scanned_block"`
}

// BelowThreshold reports whether the last observed hot-wallet balance is
// under the configured low-balance threshold.
func (n *NetworkConfig) BelowThreshold() bool {
	return n.HotWalletBalance.LessThan(n.LowBalanceThreshold)
}

// Alert severities.
const (
	AlertSeverityCritical = "critical"
	AlertSeverityWarning  = "warning"
)

// Alert is an operational alert raised by the network monitor, consumed by an
// administrative alerting surface.
type Alert struct {
	AlertID   string    `json:"alert_id"`
	NetworkID string    `json:"network_id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
