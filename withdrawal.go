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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/custodia-finance/custodia/config"
	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

// RequestWithdrawal validates and opens a withdrawal request. The account is
// debited for the full amount before the request row exists, so repeated
// requests can never jointly overdraw a balance; a later rejection credits
// the funds back.
func (c *Custodia) RequestWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal, destination, networkName string) (*model.WithdrawalRequest, error) {
	ctx, span := tracer.Start(ctx, "Requesting withdrawal")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if amount.IsNegative() || amount.IsZero() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Withdrawal amount must be positive", nil)
	}
	if amount.LessThan(conf.Withdrawal.MinimumAmount) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("Withdrawal amount is below the minimum of %s", conf.Withdrawal.MinimumAmount.String()), nil)
	}

	network, err := c.datasource.GetNetwork(ctx, networkName)
	if err != nil {
		return nil, logAndRecordError(span, err)
	}
	if network.Paused {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Network %s is paused; withdrawals are temporarily unavailable", network.Name), nil)
	}

	addr, err := c.datasource.GetSavedAddress(ctx, accountID, network.Name, destination)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Destination address is not in your saved address book", err)
	}
	if addr.IsLocked(time.Now()) {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Destination address is time-locked", nil)
	}

	fee, netAmount := model.ComputeWithdrawalFee(amount, conf.Withdrawal.FeePercent)
	withdrawalID := model.GenerateUUIDWithSuffix("wdl")

	// The debit comes first: an insufficient balance aborts before any
	// request row exists, and once the debit commits no concurrent request
	// can spend the same funds. The pre-generated ID ties the ledger row to
	// the request created next.
	_, err = c.DebitAccount(ctx, &model.LedgerTransaction{
		AccountID:   accountID,
		Amount:      amount,
		Kind:        model.KindWithdrawal,
		Reference:   withdrawalID,
		Description: fmt.Sprintf("Withdrawal to %s on %s", addr.Address, network.Name),
		Status:      model.TxnStatusPending,
	})
	if err != nil {
		return nil, logAndRecordError(span, err)
	}

	w := &model.WithdrawalRequest{
		WithdrawalID: withdrawalID,
		AccountID:    accountID,
		Amount:       amount,
		Fee:          fee,
		NetAmount:    netAmount,
		Destination:  addr.Address,
		Network:      network.Name,
	}

	created, err := c.datasource.CreateWithdrawal(ctx, w)
	if err != nil {
		// Refund the debit so a failed insert has no net financial effect.
		if _, refundErr := c.CreditAccount(ctx, &model.LedgerTransaction{
			AccountID:   accountID,
			Amount:      amount,
			Kind:        model.KindWithdrawal,
			Reference:   withdrawalID,
			Description: fmt.Sprintf("Refund for failed withdrawal request %s", withdrawalID),
			Status:      model.TxnStatusCompleted,
		}); refundErr != nil {
			logrus.WithError(refundErr).Error("failed to refund after withdrawal insert failure")
		}
		return nil, logAndRecordError(span, err)
	}

	c.notifyWithdrawal(ctx, created, EventWithdrawalQueued, "Withdrawal requested",
		fmt.Sprintf("Your withdrawal of %s on %s is pending review.", created.Amount.String(), created.Network))

	return created, nil
}

// ApproveWithdrawal transitions a pending withdrawal to approved. Any other
// starting state fails with AlreadyProcessed and changes nothing.
func (c *Custodia) ApproveWithdrawal(ctx context.Context, id, actor string) (*model.WithdrawalRequest, error) {
	ctx, span := tracer.Start(ctx, "Approving withdrawal")
	defer span.End()

	updated, err := c.datasource.UpdateWithdrawalStatus(ctx, id, model.WithdrawalStatusPending, model.WithdrawalStatusApproved, actor, "")
	if err != nil {
		return updated, logAndRecordError(span, err)
	}

	if err := c.datasource.UpdateTransactionStatusByReference(ctx, id, model.TxnStatusApproved); err != nil {
		logrus.WithError(err).Error("failed to mirror approval onto ledger transaction")
	}

	c.notifyWithdrawal(ctx, updated, EventWithdrawalApproved, "Withdrawal approved",
		fmt.Sprintf("Your withdrawal of %s on %s has been approved and will be processed shortly.", updated.Amount.String(), updated.Network))

	return updated, nil
}

// RejectWithdrawal transitions a pending withdrawal to rejected and credits
// the debited amount back to the account.
func (c *Custodia) RejectWithdrawal(ctx context.Context, id, actor, reason string) (*model.WithdrawalRequest, error) {
	ctx, span := tracer.Start(ctx, "Rejecting withdrawal")
	defer span.End()

	updated, err := c.datasource.UpdateWithdrawalStatus(ctx, id, model.WithdrawalStatusPending, model.WithdrawalStatusRejected, actor, "")
	if err != nil {
		return updated, logAndRecordError(span, err)
	}

	// Refund the early debit. The refund is its own ledger transaction so the
	// log shows both sides of the round trip.
	_, err = c.CreditAccount(ctx, &model.LedgerTransaction{
		AccountID:   updated.AccountID,
		Amount:      updated.Amount,
		Kind:        model.KindWithdrawal,
		Reference:   updated.WithdrawalID,
		Description: fmt.Sprintf("Refund for rejected withdrawal %s", updated.WithdrawalID),
		Status:      model.TxnStatusCompleted,
	})
	if err != nil {
		return updated, logAndRecordError(span, err)
	}

	if err := c.datasource.UpdateTransactionStatusByReference(ctx, id, model.TxnStatusRejected); err != nil {
		logrus.WithError(err).Error("failed to mirror rejection onto ledger transaction")
	}

	message := fmt.Sprintf("Your withdrawal of %s on %s was rejected and the amount has been returned to your balance.", updated.Amount.String(), updated.Network)
	if reason != "" {
		message = fmt.Sprintf("%s Reason: %s", message, reason)
	}
	c.notifyWithdrawal(ctx, updated, EventWithdrawalRejected, "Withdrawal rejected", message)

	return updated, nil
}

// MarkWithdrawalSent transitions an approved withdrawal to sent and records
// the chain transaction hash.
func (c *Custodia) MarkWithdrawalSent(ctx context.Context, id, txHash, actor string) (*model.WithdrawalRequest, error) {
	ctx, span := tracer.Start(ctx, "Marking withdrawal sent")
	defer span.End()

	updated, err := c.datasource.UpdateWithdrawalStatus(ctx, id, model.WithdrawalStatusApproved, model.WithdrawalStatusSent, actor, txHash)
	if err != nil {
		return updated, logAndRecordError(span, err)
	}

	if err := c.datasource.UpdateExecutionStatus(ctx, id, model.ExecutionStatusCompleted, txHash, "", updated.RetryCount); err != nil {
		logrus.WithError(err).Error("failed to record execution completion")
	}
	if err := c.datasource.UpdateTransactionStatusByReference(ctx, id, model.TxnStatusCompleted); err != nil {
		logrus.WithError(err).Error("failed to mirror completion onto ledger transaction")
	}

	c.notifyWithdrawal(ctx, updated, EventWithdrawalSent, "Withdrawal sent",
		fmt.Sprintf("Your withdrawal of %s on %s has been sent. Transaction: %s", updated.Amount.String(), updated.Network, txHash))

	return updated, nil
}

// GetWithdrawal retrieves a withdrawal request by ID.
func (c *Custodia) GetWithdrawal(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	return c.datasource.GetWithdrawal(ctx, id)
}

// GetWithdrawalsByStatus lists withdrawal requests in a given status.
func (c *Custodia) GetWithdrawalsByStatus(ctx context.Context, status string, limit, offset int) ([]model.WithdrawalRequest, error) {
	return c.datasource.GetWithdrawalsByStatus(ctx, status, limit, offset)
}
