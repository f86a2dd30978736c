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
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DepositStatusConfirmed = "confirmed"
)

// DepositRecord is the audit record of one observed on-chain transfer.
// Uniqueness of (Network, TxHash) is the load-bearing invariant of the
// deposit pipeline: the database enforces it with a unique index and the
// reconciler treats a violation as a duplicate delivery, not an error.
//
// AccountID is empty when no account links the destination address at
// observation time; such deposits are recorded for audit but never credited.
type DepositRecord struct {
	DepositID   string          `json:"deposit_id"`
	Network     string          `json:"network"`
	TxHash      string          `json:"tx_hash"`
	AccountID   string          `json:"account_id,omitempty"`
	FromAddress string          `json:"from_address"`
	ToAddress   string          `json:"to_address"`
	Amount      decimal.Decimal `json:"amount"`
	RawAmount   *big.Int        `json:"raw_amount"`
	BlockNumber uint64          `json:"block_number"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}
