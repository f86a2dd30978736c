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

// Transaction kinds.
const (
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"
	KindAdjustment = "adjustment"
)

// Transaction statuses. Deposits are recorded completed; withdrawal
// transactions mirror the lifecycle of their withdrawal request.
const (
	TxnStatusPending   = "pending"
	TxnStatusApproved  = "approved"
	TxnStatusRejected  = "rejected"
	TxnStatusCompleted = "completed"
)

// LedgerTransaction is one append-only entry in the ledger. The amount is
// signed: positive for credits, negative for debits. Amount and account are
// immutable after creation; only the status may be patched so the log mirrors
// the lifecycle of the entity it references.
type LedgerTransaction struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          string          `json:"kind"`
	Reference     string          `json:"reference,omitempty"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}
