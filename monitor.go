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

	"github.com/custodia-finance/custodia/internal/notification"
	"github.com/custodia-finance/custodia/model"
)

// RunBalanceCheck reads the custodial hot-wallet balance of every active
// network, snapshots it, and raises a critical alert whenever a balance sits
// below its threshold. Alerts are raised once per check; deduplication across
// checks is a presentation concern.
func (c *Custodia) RunBalanceCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Checking network balances")
	defer span.End()

	networks, err := c.datasource.GetActiveNetworks(ctx)
	if err != nil {
		return logAndRecordError(span, err)
	}

	for _, network := range networks {
		if err := c.checkNetworkBalance(ctx, network); err != nil {
			logrus.WithFields(logrus.Fields{
				"network": network.Name,
			}).WithError(err).Error("balance check failed")
		}
	}
	return nil
}

func (c *Custodia) checkNetworkBalance(ctx context.Context, network model.NetworkConfig) error {
	raw, err := c.chain.TokenBalance(ctx, network)
	if err != nil {
		return err
	}

	balance := model.FromNativeAmount(raw, network.Decimals)
	if err := c.datasource.UpdateNetworkBalance(ctx, network.NetworkID, balance); err != nil {
		return err
	}

	network.HotWalletBalance = balance
	if !network.BelowThreshold() {
		return nil
	}

	message := fmt.Sprintf("Hot wallet balance on %s is %s, below the threshold of %s",
		network.Name, balance.String(), network.LowBalanceThreshold.String())

	if _, err := c.datasource.InsertAlert(ctx, &model.Alert{
		NetworkID: network.NetworkID,
		Severity:  model.AlertSeverityCritical,
		Message:   message,
	}); err != nil {
		logrus.WithError(err).Error("failed to record low balance alert")
	}

	notification.NotifyAlert("Low hot-wallet balance", errors.New(message))
	if err := c.SendWebhook(NewWebhook{Event: EventNetworkLowBalance, Payload: network}, network.NetworkID+":"+EventNetworkLowBalance); err != nil {
		logrus.WithError(err).Error("failed to enqueue low balance webhook")
	}
	return nil
}

// PauseNetwork suspends crediting and new withdrawal requests on a network.
// Deposits on a paused network are still recorded for audit.
func (c *Custodia) PauseNetwork(ctx context.Context, id string) error {
	if err := c.datasource.SetNetworkPaused(ctx, id, true); err != nil {
		return err
	}

	network, err := c.datasource.GetNetwork(ctx, id)
	if err == nil {
		if _, alertErr := c.datasource.InsertAlert(ctx, &model.Alert{
			NetworkID: network.NetworkID,
			Severity:  model.AlertSeverityWarning,
			Message:   fmt.Sprintf("Network %s has been paused", network.Name),
		}); alertErr != nil {
			logrus.WithError(alertErr).Error("failed to record pause alert")
		}
		if err := c.SendWebhook(NewWebhook{Event: EventNetworkPaused, Payload: network}, network.NetworkID); err != nil {
			logrus.WithError(err).Error("failed to enqueue pause webhook")
		}
	}

	logrus.WithField("network", id).Warn("network paused")
	return nil
}

// ResumeNetwork lifts a pause.
func (c *Custodia) ResumeNetwork(ctx context.Context, id string) error {
	if err := c.datasource.SetNetworkPaused(ctx, id, false); err != nil {
		return err
	}

	if network, err := c.datasource.GetNetwork(ctx, id); err == nil {
		if err := c.SendWebhook(NewWebhook{Event: EventNetworkResumed, Payload: network}, network.NetworkID+":"+EventNetworkResumed); err != nil {
			logrus.WithError(err).Error("failed to enqueue resume webhook")
		}
	}

	logrus.WithField("network", id).Info("network resumed")
	return nil
}
