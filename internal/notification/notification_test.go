package notification

import (
	"errors"
	"testing"

	"github.com/custodia-finance/custodia/config"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func TestSlackNotification(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{
		Notification: config.Notification{
			Slack: config.SlackWebhook{WebhookUrl: "https://hooks.slack.com/services/test"},
		},
	})

	httpmock.RegisterResponder("POST", "https://hooks.slack.com/services/test",
		httpmock.NewStringResponder(200, `{"ok": true}`))

	SlackNotification("Low Balance Alert", errors.New("hot wallet below threshold"))

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST https://hooks.slack.com/services/test"])
}

func TestNotifyAlertWithoutWebhookConfigured(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{})

	// No webhook configured: nothing should be posted and nothing panics.
	NotifyAlert("Low Balance Alert", errors.New("hot wallet below threshold"))
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}
