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

	"github.com/sirupsen/logrus"

	"github.com/custodia-finance/custodia/model"
)

// Notification delivery is fire-and-forget: a failure here is logged and
// never rolls back the financial effect that produced it.

func (c *Custodia) notifyDeposit(ctx context.Context, record *model.DepositRecord) {
	_, err := c.datasource.InsertNotification(ctx, &model.Notification{
		AccountID: record.AccountID,
		Category:  model.NotificationDeposit,
		Title:     "Deposit received",
		Message:   fmt.Sprintf("Your deposit of %s on %s has been credited.", record.Amount.String(), record.Network),
		Data: map[string]interface{}{
			"tx_hash": record.TxHash,
			"network": record.Network,
			"amount":  record.Amount.String(),
		},
	})
	if err != nil {
		logrus.WithError(err).Error("failed to record deposit notification")
	}

	if err := c.SendWebhook(NewWebhook{Event: EventDepositCredited, Payload: record}, record.DepositID); err != nil {
		logrus.WithError(err).Error("failed to enqueue deposit webhook")
	}
}

func (c *Custodia) notifyWithdrawal(ctx context.Context, w *model.WithdrawalRequest, event, title, message string) {
	_, err := c.datasource.InsertNotification(ctx, &model.Notification{
		AccountID: w.AccountID,
		Category:  model.NotificationWithdrawal,
		Title:     title,
		Message:   message,
		Data: map[string]interface{}{
			"withdrawal_id": w.WithdrawalID,
			"network":       w.Network,
			"amount":        w.Amount.String(),
		},
	})
	if err != nil {
		logrus.WithError(err).Error("failed to record withdrawal notification")
	}

	if err := c.SendWebhook(NewWebhook{Event: event, Payload: w}, w.WithdrawalID+":"+event); err != nil {
		logrus.WithError(err).Error("failed to enqueue withdrawal webhook")
	}
}

// GetAlerts retrieves recent operational alerts.
func (c *Custodia) GetAlerts(ctx context.Context, networkID string, limit, offset int) ([]model.Alert, error) {
	return c.datasource.GetAlerts(ctx, networkID, limit, offset)
}
