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

package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/custodia-finance/custodia/config"
	"github.com/custodia-finance/custodia/internal/request"
)

// SlackNotification sends an operational message to the configured Slack
// webhook. It is used for system errors and critical alerts such as a
// hot wallet running low.
func SlackNotification(title string, err error) {
	data := json.RawMessage(fmt.Sprintf(`{
		"blocks": [
			{
				"type": "header",
				"text": {
					"type": "plain_text",
					"text": "%s",
					"emoji": true
				}
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Detail:*\n%v"
					}
				]
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Time:*\n%v"
					}
				]
			}
		]
	}`, title, err.Error(), time.Now().Format(time.RFC822)))

	conf, cfgErr := config.Fetch()
	if cfgErr != nil {
		log.Println(cfgErr)
		return
	}

	payload, jsonErr := request.ToJsonReq(&data)
	if jsonErr != nil {
		log.Println(jsonErr)
		return
	}

	req, reqErr := http.NewRequest("POST", conf.Notification.Slack.WebhookUrl, payload)
	if reqErr != nil {
		log.Println(reqErr)
		return
	}

	var response map[string]interface{}
	if _, callErr := request.Call(req, &response); callErr != nil {
		log.Println(callErr)
	}
}

// NotifyError reports a system error through the configured notification
// channels. It logs locally and, if a Slack webhook is configured, posts
// there as well. The whole path is asynchronous and best effort.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			SlackNotification("Error From Custodia 🐞", systemError)
		}
	}(systemError)
}

// NotifyAlert reports an operational alert (e.g. low hot-wallet balance) to
// Slack synchronously so callers running inside a scheduler tick can rely on
// delivery being attempted before the tick returns.
func NotifyAlert(title string, detail error) {
	logrus.Warn(detail)

	conf, err := config.Fetch()
	if err != nil {
		log.Println(err)
		return
	}

	if conf.Notification.Slack.WebhookUrl != "" {
		SlackNotification(title, detail)
	}
}
