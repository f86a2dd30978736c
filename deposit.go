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

package custodia

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

// DepositOutcome reports what LogDeposit did with an observed transfer.
// Duplicate is an outcome, not an error: a re-delivered chain event lands
// here and the caller moves on.
type DepositOutcome struct {
	Created   bool
	Duplicate bool
	Credited  bool
	Record    *model.DepositRecord
}

// LogDeposit reconciles one observed on-chain transfer into the ledger.
//
// The record is inserted before any credit so the (network, tx_hash) unique
// index settles races: exactly one concurrent caller creates the record, all
// others observe a duplicate. Only after the record exists is the owning
// account credited. A crash between the two steps leaves a recorded,
// uncredited deposit for an operational sweep — re-delivering the event can
// never credit twice.
func (c *Custodia) LogDeposit(ctx context.Context, record *model.DepositRecord) (*DepositOutcome, error) {
	ctx, span := tracer.Start(ctx, "Logging deposit")
	defer span.End()

	if record.Amount.IsNegative() || record.Amount.IsZero() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Deposit amount must be positive", nil)
	}

	if existing, err := c.datasource.GetDepositByNetworkAndHash(ctx, record.Network, record.TxHash); err == nil {
		return &DepositOutcome{Duplicate: true, Record: existing}, nil
	}

	network, err := c.datasource.GetNetwork(ctx, record.Network)
	if err != nil {
		return nil, logAndRecordError(span, err)
	}

	// A paused network still records deposits for audit but must not credit
	// them; the record goes in unlinked.
	credit := !network.Paused
	if credit && record.AccountID == "" {
		account, err := c.datasource.GetAccountByReceiveAddress(ctx, record.Network, record.ToAddress)
		switch {
		case err == nil:
			record.AccountID = account.AccountID
		case errors.Is(err, apierror.NewAPIError(apierror.ErrNotFound, "", nil)):
			// Funds arrived at an address no account has linked yet. Recorded,
			// never credited, never retroactively re-scanned.
			credit = false
		default:
			return nil, logAndRecordError(span, err)
		}
	}
	if record.AccountID == "" {
		credit = false
	}
	if network.Paused {
		record.AccountID = ""
	}

	created, err := c.datasource.InsertDepositRecord(ctx, record)
	if err != nil {
		if errors.Is(err, apierror.NewAPIError(apierror.ErrAlreadyProcessed, "", nil)) {
			existing, getErr := c.datasource.GetDepositByNetworkAndHash(ctx, record.Network, record.TxHash)
			if getErr != nil {
				return &DepositOutcome{Duplicate: true}, nil
			}
			return &DepositOutcome{Duplicate: true, Record: existing}, nil
		}
		return nil, logAndRecordError(span, err)
	}

	outcome := &DepositOutcome{Created: true, Record: created}
	if !credit {
		logrus.WithFields(logrus.Fields{
			"network": record.Network,
			"tx_hash": record.TxHash,
			"paused":  network.Paused,
		}).Info("deposit recorded without credit")
		return outcome, nil
	}

	reference := fmt.Sprintf("%s:%s", record.Network, record.TxHash)
	_, err = c.CreditAccount(ctx, &model.LedgerTransaction{
		AccountID:   record.AccountID,
		Amount:      record.Amount,
		Kind:        model.KindDeposit,
		Reference:   reference,
		Description: fmt.Sprintf("Deposit %s on %s", record.TxHash, record.Network),
		Status:      model.TxnStatusCompleted,
	})
	if err != nil {
		// The record exists but the credit did not commit. Surface the error;
		// the deposit stays visible for the reconciliation sweep.
		return outcome, logAndRecordError(span, err)
	}
	outcome.Credited = true

	c.notifyDeposit(ctx, created)
	return outcome, nil
}

// RunDepositPoll scans every active network for new token transfers and
// feeds them through LogDeposit. Invoked on a fixed schedule; safe to run
// concurrently with itself because both the block cursor and the deposit
// insert tolerate overlap.
func (c *Custodia) RunDepositPoll(ctx context.Context) error {
	networks, err := c.datasource.GetActiveNetworks(ctx)
	if err != nil {
		return err
	}

	for _, network := range networks {
		if err := c.pollNetworkDeposits(ctx, network); err != nil {
			logrus.WithFields(logrus.Fields{
				"network": network.Name,
			}).WithError(err).Error("deposit poll failed")
		}
	}
	return nil
}

func (c *Custodia) pollNetworkDeposits(ctx context.Context, network model.NetworkConfig) error {
	head, err := c.chain.LatestBlock(ctx, network)
	if err != nil {
		return err
	}

	fromBlock := network.LastScannedBlock + 1
	if network.LastScannedBlock == 0 {
		// A fresh network starts at the head rather than replaying history.
		fromBlock = head
	}
	if fromBlock > head {
		return nil
	}

	events, err := c.chain.ScanTransfers(ctx, network, fromBlock, head)
	if err != nil {
		return err
	}

	var scanned uint64 = head
	for _, event := range events {
		record := &model.DepositRecord{
			Network:     network.Name,
			TxHash:      event.TxHash,
			FromAddress: event.From,
			ToAddress:   event.To,
			Amount:      model.FromNativeAmount(event.Amount, network.Decimals),
			RawAmount:   event.Amount,
			BlockNumber: event.BlockNumber,
		}
		if _, err := c.LogDeposit(ctx, record); err != nil {
			logrus.WithFields(logrus.Fields{
				"network": network.Name,
				"tx_hash": event.TxHash,
			}).WithError(err).Error("failed to log deposit")
			// Hold the cursor before the failed event so the next poll
			// retries it.
			if event.BlockNumber > 0 && event.BlockNumber-1 < scanned {
				scanned = event.BlockNumber - 1
			}
		}
	}

	return c.datasource.UpdateLastScannedBlock(ctx, network.NetworkID, scanned)
}

// GetDeposits retrieves an account's deposit history.
func (c *Custodia) GetDeposits(ctx context.Context, accountID string, limit, offset int) ([]model.DepositRecord, error) {
	return c.datasource.GetDepositsByAccount(ctx, accountID, limit, offset)
}
