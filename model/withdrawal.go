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

// Withdrawal lifecycle states. The externally visible status moves strictly
// pending -> approved -> sent, or pending -> rejected. The execution status is
// an engine-owned substate layered onto approved withdrawals while a chain
// submission is in flight.
const (
	WithdrawalStatusPending  = "pending"
	WithdrawalStatusApproved = "approved"
	WithdrawalStatusRejected = "rejected"
	WithdrawalStatusSent     = "sent"

	ExecutionStatusExecuting = "executing"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)

// WithdrawalRequest is a user's request to pay out part of their custodial
// balance on-chain. The requested amount is debited from the account at
// request time; a rejection credits it back. Requests are never deleted.
type WithdrawalRequest struct {
	WithdrawalID    string          `json:"withdrawal_id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	Destination     string          `json:"destination"`
	Network         string          `json:"network"`
	Status          string          `json:"status"`
	ExecutionStatus string          `json:"execution_status,omitempty"`
	TxHash          string          `json:"tx_hash,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	RetryCount      int             `json:"retry_count"`
	RequestedAt     time.Time       `json:"requested_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	ProcessedBy     string          `json:"processed_by,omitempty"`
}

// CanApprove reports whether the withdrawal can transition to approved.
func (w *WithdrawalRequest) CanApprove() bool {
	return w.Status == WithdrawalStatusPending
}

// CanReject reports whether the withdrawal can transition to rejected.
func (w *WithdrawalRequest) CanReject() bool {
	return w.Status == WithdrawalStatusPending
}

// CanMarkSent reports whether the withdrawal can transition to sent.
func (w *WithdrawalRequest) CanMarkSent() bool {
	return w.Status == WithdrawalStatusApproved
}

// Executable reports whether the execution engine should pick this
// withdrawal up: approved and not currently marked in flight.
func (w *WithdrawalRequest) Executable() bool {
	return w.Status == WithdrawalStatusApproved && w.ExecutionStatus != ExecutionStatusExecuting
}

// ComputeWithdrawalFee computes the percentage fee and net payout for a
// requested amount. The fee is rounded to 8 decimal places, enough for the
// smallest native unit of the supported networks.
func ComputeWithdrawalFee(amount, feePercent decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(feePercent).Div(decimal.NewFromInt(100)).Round(8)
	net = amount.Sub(fee)
	return fee, net
}
