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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/custodia-finance/custodia/config"
)

// NewWebhook represents the structure of a webhook notification.
// It includes an event type and associated payload data.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Webhook event names emitted by the pipeline.
const (
	EventDepositCredited    = "deposit.credited"
	EventWithdrawalQueued   = "withdrawal.queued"
	EventWithdrawalApproved = "withdrawal.approved"
	EventWithdrawalRejected = "withdrawal.rejected"
	EventWithdrawalSent     = "withdrawal.sent"
	EventWithdrawalFailed   = "withdrawal.failed"
	EventNetworkPaused      = "network.paused"
	EventNetworkResumed     = "network.resumed"
	EventNetworkLowBalance  = "network.low_balance"
)

// processHTTP sends a webhook notification via HTTP POST request.
func processHTTP(data NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		log.Println("Error fetching config:", err)
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Println("Error marshaling data:", err)
		return err
	}
	payload := bytes.NewBuffer(jsonData)

	req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, payload)
	if err != nil {
		log.Println("Error creating request:", err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Println("Error sending request:", err)
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		// Returning an error makes asynq retry the delivery.
		return fmt.Errorf("webhook delivery failed with status %d: %s", resp.StatusCode, string(body))
	}

	logrus.WithFields(logrus.Fields{
		"event":  data.Event,
		"status": resp.StatusCode,
	}).Info("webhook delivered")
	return nil
}

// SendWebhook enqueues a webhook for asynchronous delivery. A missing
// webhook URL disables delivery without erroring, so the pipeline works the
// same with and without a consumer configured.
func (c *Custodia) SendWebhook(newWebhook NewWebhook, reference string) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}
	return c.queue.queueWebhook(newWebhook, reference)
}

// ProcessWebhook is the asynq handler that performs the actual delivery.
func ProcessWebhook(_ context.Context, task *asynq.Task) error {
	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling webhook payload: %v", err)
		return err
	}
	return processHTTP(payload)
}
