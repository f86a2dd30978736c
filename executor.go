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

	"github.com/sirupsen/logrus"

	redlock "github.com/custodia-finance/custodia/internal/lock"
	"github.com/custodia-finance/custodia/model"
)

const (
	executorBatchSize    = 50
	executorItemTimeout  = 2 * time.Minute
	executorLockDuration = 3 * time.Minute
)

// ExecutionReport summarizes one executor run for the operational log.
type ExecutionReport struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// RunWithdrawalExecution drains the approved withdrawal backlog. Each item
// is processed independently under its own timeout and distributed lock, so
// one stuck chain call neither starves the batch nor races a concurrent run
// on the same withdrawal. The run itself never fails on item errors; it
// reports aggregate counts.
func (c *Custodia) RunWithdrawalExecution(ctx context.Context) (*ExecutionReport, error) {
	ctx, span := tracer.Start(ctx, "Executing approved withdrawals")
	defer span.End()

	withdrawals, err := c.datasource.GetExecutableWithdrawals(ctx, executorBatchSize)
	if err != nil {
		return nil, logAndRecordError(span, err)
	}

	report := &ExecutionReport{}
	for i := range withdrawals {
		w := withdrawals[i]
		report.Processed++

		if !w.Executable() {
			// The fetch excludes in-flight attempts; anything that still
			// carries the marker here is left for operator resolution.
			report.Skipped++
			continue
		}

		if err := c.executeWithdrawal(ctx, &w); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", w.WithdrawalID, err))
		} else {
			report.Sent++
		}
	}

	if report.Processed > 0 {
		logrus.WithFields(logrus.Fields{
			"processed": report.Processed,
			"sent":      report.Sent,
			"failed":    report.Failed,
			"skipped":   report.Skipped,
		}).Info("withdrawal execution run complete")
	}

	return report, nil
}

// executeWithdrawal submits one approved withdrawal on chain.
//
// A redis lock scopes the attempt to this process and the executing marker
// is written before the chain call, so a crash mid-submission leaves a
// visible in-flight record instead of a silently retried payout. Failures
// leave the withdrawal approved for the next run; no debit is reversed,
// because the chain call may have succeeded even when the receipt was lost.
func (c *Custodia) executeWithdrawal(ctx context.Context, w *model.WithdrawalRequest) error {
	ctx, cancel := context.WithTimeout(ctx, executorItemTimeout)
	defer cancel()

	locker := redlock.NewLocker(c.redis, fmt.Sprintf("withdrawal:%s", w.WithdrawalID), model.GenerateUUIDWithSuffix("loc"))
	if err := locker.Lock(ctx, executorLockDuration); err != nil {
		return fmt.Errorf("withdrawal %s is locked by another executor: %w", w.WithdrawalID, err)
	}
	defer func() {
		if unlockErr := locker.Unlock(ctx); unlockErr != nil {
			logrus.WithError(unlockErr).Error("failed to release withdrawal lock")
		}
	}()

	network, err := c.datasource.GetNetwork(ctx, w.Network)
	if err != nil {
		return c.recordExecutionFailure(ctx, w, err)
	}

	retryCount := w.RetryCount + 1
	if err := c.datasource.UpdateExecutionStatus(ctx, w.WithdrawalID, model.ExecutionStatusExecuting, "", "", retryCount); err != nil {
		return err
	}

	// Submission plus confirmation wait can run close to the item timeout;
	// push the lock expiry out so it outlives the chain call.
	if err := locker.ExtendLock(ctx, executorLockDuration); err != nil {
		logrus.WithError(err).Error("failed to extend withdrawal lock")
	}

	nativeAmount := model.ToNativeAmount(w.NetAmount, network.Decimals)
	txHash, err := c.chain.SubmitTransfer(ctx, *network, w.Destination, nativeAmount)
	if err != nil {
		if txHash != "" {
			// Broadcast succeeded but confirmation did not. Keep the hash and
			// the executing marker so an operator can resolve the attempt;
			// automatic retry here risks a double payout.
			if markErr := c.datasource.UpdateExecutionStatus(ctx, w.WithdrawalID, model.ExecutionStatusExecuting, txHash, err.Error(), retryCount); markErr != nil {
				logrus.WithError(markErr).Error("failed to record unconfirmed submission")
			}
			return c.notifyExecutionFailure(ctx, w, err)
		}
		if markErr := c.datasource.UpdateExecutionStatus(ctx, w.WithdrawalID, model.ExecutionStatusFailed, "", err.Error(), retryCount); markErr != nil {
			logrus.WithError(markErr).Error("failed to record execution failure")
		}
		return c.notifyExecutionFailure(ctx, w, err)
	}

	if _, err := c.MarkWithdrawalSent(ctx, w.WithdrawalID, txHash, "executor"); err != nil {
		return err
	}
	return nil
}

func (c *Custodia) recordExecutionFailure(ctx context.Context, w *model.WithdrawalRequest, cause error) error {
	if err := c.datasource.UpdateExecutionStatus(ctx, w.WithdrawalID, model.ExecutionStatusFailed, "", cause.Error(), w.RetryCount+1); err != nil {
		logrus.WithError(err).Error("failed to record execution failure")
	}
	return c.notifyExecutionFailure(ctx, w, cause)
}

// notifyExecutionFailure tells the user there is a processing delay without
// implying the funds are lost, and logs the operational detail.
func (c *Custodia) notifyExecutionFailure(ctx context.Context, w *model.WithdrawalRequest, cause error) error {
	logrus.WithFields(logrus.Fields{
		"withdrawal_id": w.WithdrawalID,
		"network":       w.Network,
	}).WithError(cause).Error("withdrawal execution failed")

	c.notifyWithdrawal(ctx, w, EventWithdrawalFailed, "Withdrawal processing delayed",
		"We hit a temporary issue processing your withdrawal. Our team is looking into it; no action is needed on your side.")

	return cause
}
