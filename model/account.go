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

// Account is a platform user's custodial balance holder. The balance is
// mutated only through the ledger store's atomic credit/debit operations and
// is never negative.
type Account struct {
	AccountID      string                 `json:"account_id"`
	Name           string                 `json:"name"`
	ReceiveAddress string                 `json:"receive_address,omitempty"`
	Network        string                 `json:"network,omitempty"`
	Balance        decimal.Decimal        `json:"balance"`
	CreatedAt      time.Time              `json:"created_at"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

// SavedAddress is a withdrawal destination saved to an account's address
// book. Withdrawal requests are only allowed to destinations present here and
// not currently time-locked.
type SavedAddress struct {
	AddressID   string     `json:"address_id"`
	AccountID   string     `json:"account_id"`
	Network     string     `json:"network"`
	Address     string     `json:"address"`
	Label       string     `json:"label,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsLocked reports whether the saved address is still inside its time lock.
func (s *SavedAddress) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}
