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
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/custodia-finance/custodia/model"
)

// CreateAccount is the request body for opening a custodial account.
type CreateAccount struct {
	Name           string                 `json:"name"`
	ReceiveAddress string                 `json:"receive_address"`
	Network        string                 `json:"network"`
	MetaData       map[string]interface{} `json:"meta_data"`
}

func (a *CreateAccount) ValidateCreateAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Name, validation.Required),
	)
}

func (a *CreateAccount) ToAccount() model.Account {
	return model.Account{
		Name:           a.Name,
		ReceiveAddress: a.ReceiveAddress,
		Network:        a.Network,
		MetaData:       a.MetaData,
	}
}

// CreateSavedAddress adds a withdrawal destination to an account's address
// book.
type CreateSavedAddress struct {
	Network string `json:"network"`
	Address string `json:"address"`
	Label   string `json:"label"`
}

func (s *CreateSavedAddress) ValidateCreateSavedAddress() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Network, validation.Required),
		validation.Field(&s.Address, validation.Required),
	)
}

func (s *CreateSavedAddress) ToSavedAddress(accountID string) model.SavedAddress {
	return model.SavedAddress{
		AccountID: accountID,
		Network:   s.Network,
		Address:   s.Address,
		Label:     s.Label,
	}
}

// RequestWithdrawal is the request body for opening a withdrawal.
type RequestWithdrawal struct {
	AccountID   string `json:"account_id"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
	Network     string `json:"network"`
}

func (w *RequestWithdrawal) ValidateRequestWithdrawal() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.AccountID, validation.Required),
		validation.Field(&w.Amount, validation.Required, validation.By(positiveDecimal)),
		validation.Field(&w.Destination, validation.Required),
		validation.Field(&w.Network, validation.Required),
	)
}

// ParsedAmount returns the request amount as a decimal. Call after
// validation.
func (w *RequestWithdrawal) ParsedAmount() decimal.Decimal {
	amount, _ := decimal.NewFromString(w.Amount)
	return amount
}

func positiveDecimal(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return errors.New("amount must be a string")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return errors.New("amount must be a valid decimal number")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

// ReviewWithdrawal carries the approving or rejecting staff decision.
type ReviewWithdrawal struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (r *ReviewWithdrawal) ValidateReviewWithdrawal() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Actor, validation.Required),
	)
}

// CreateNetwork registers a supported network and its token contract.
type CreateNetwork struct {
	Name                string `json:"name"`
	ChainID             int64  `json:"chain_id"`
	ContractAddress     string `json:"contract_address"`
	HotWalletAddress    string `json:"hot_wallet_address"`
	Decimals            int32  `json:"decimals"`
	LowBalanceThreshold string `json:"low_balance_threshold"`
}

func (n *CreateNetwork) ValidateCreateNetwork() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.Name, validation.Required),
		validation.Field(&n.ChainID, validation.Required),
		validation.Field(&n.ContractAddress, validation.Required),
		validation.Field(&n.HotWalletAddress, validation.Required),
		validation.Field(&n.Decimals, validation.Required),
	)
}

func (n *CreateNetwork) ToNetworkConfig() (model.NetworkConfig, error) {
	threshold := decimal.Zero
	if n.LowBalanceThreshold != "" {
		var err error
		threshold, err = decimal.NewFromString(n.LowBalanceThreshold)
		if err != nil {
			return model.NetworkConfig{}, errors.New("low_balance_threshold must be a valid decimal number")
		}
	}
	return model.NetworkConfig{
		Name:                n.Name,
		ChainID:             n.ChainID,
		ContractAddress:     n.ContractAddress,
		HotWalletAddress:    n.HotWalletAddress,
		Decimals:            n.Decimals,
		LowBalanceThreshold: threshold,
	}, nil
}

// LogDeposit is the request body for manually reconciling one on-chain
// transfer, used by operators when a deposit was observed out of band.
type LogDeposit struct {
	Network     string `json:"network"`
	TxHash      string `json:"tx_hash"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      string `json:"amount"`
	BlockNumber uint64 `json:"block_number"`
}

func (d *LogDeposit) ValidateLogDeposit() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Network, validation.Required),
		validation.Field(&d.TxHash, validation.Required),
		validation.Field(&d.ToAddress, validation.Required),
		validation.Field(&d.Amount, validation.Required, validation.By(positiveDecimal)),
	)
}

func (d *LogDeposit) ToDepositRecord(decimals int32) *model.DepositRecord {
	amount, _ := decimal.NewFromString(d.Amount)
	return &model.DepositRecord{
		Network:     d.Network,
		TxHash:      d.TxHash,
		FromAddress: d.FromAddress,
		ToAddress:   d.ToAddress,
		Amount:      amount,
		RawAmount:   model.ToNativeAmount(amount, decimals),
		BlockNumber: d.BlockNumber,
	}
}
