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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"CUSTODIA_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"CUSTODIA_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"CUSTODIA_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"CUSTODIA_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"CUSTODIA_REDIS_DNS"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"CUSTODIA_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

// WithdrawalConfig carries the platform-wide withdrawal policy. Amounts are
// decimals so tests and per-environment overrides stay exact.
type WithdrawalConfig struct {
	MinimumAmount decimal.Decimal `json:"minimum_amount" envconfig:"CUSTODIA_WITHDRAWAL_MINIMUM_AMOUNT"`
	FeePercent    decimal.Decimal `json:"fee_percent" envconfig:"CUSTODIA_WITHDRAWAL_FEE_PERCENT"`
}

// ChainConfig holds the environment-supplied connection settings for one
// network. RPC endpoints and signing keys are never user-editable; the rest
// of a network's configuration lives in the network_configs table.
type ChainConfig struct {
	RpcUrl        string `json:"rpc_url"`
	HotWalletKey  string `json:"hot_wallet_key"`
	Confirmations uint64 `json:"confirmations"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"CUSTODIA_QUEUE_WEBHOOK"`
	MonitoringPort string `json:"monitoring_port" envconfig:"CUSTODIA_QUEUE_MONITORING_PORT"`
}

// SchedulerConfig holds the cron-style cadence of the background ticks. The
// entries are asynq scheduler cronspecs, e.g. "@every 30s".
type SchedulerConfig struct {
	DepositPoll         string `json:"deposit_poll" envconfig:"CUSTODIA_SCHEDULER_DEPOSIT_POLL"`
	WithdrawalExecution string `json:"withdrawal_execution" envconfig:"CUSTODIA_SCHEDULER_WITHDRAWAL_EXECUTION"`
	BalanceCheck        string `json:"balance_check" envconfig:"CUSTODIA_SCHEDULER_BALANCE_CHECK"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"CUSTODIA_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"CUSTODIA_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"CUSTODIA_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Configuration struct {
	ProjectName  string                 `json:"project_name" envconfig:"CUSTODIA_PROJECT_NAME"`
	Server       ServerConfig           `json:"server"`
	DataSource   DataSourceConfig       `json:"data_source"`
	Redis        RedisConfig            `json:"redis"`
	Notification Notification           `json:"notification"`
	Withdrawal   WithdrawalConfig       `json:"withdrawal"`
	Chains       map[string]ChainConfig `json:"chains"`
	Queue        QueueConfig            `json:"queue"`
	Scheduler    SchedulerConfig        `json:"scheduler"`
	RateLimit    RateLimitConfig        `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("custodia", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called custodia.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Custodia Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Withdrawal.FeePercent.IsNegative() {
		return errors.New("withdrawal fee percent cannot be negative")
	}
	if cnf.Withdrawal.MinimumAmount.IsNegative() {
		return errors.New("minimum withdrawal amount cannot be negative")
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5004"
	}

	if cnf.Scheduler.DepositPoll == "" {
		cnf.Scheduler.DepositPoll = "@every 15s"
	}
	if cnf.Scheduler.WithdrawalExecution == "" {
		cnf.Scheduler.WithdrawalExecution = "@every 30s"
	}
	if cnf.Scheduler.BalanceCheck == "" {
		cnf.Scheduler.BalanceCheck = "@every 5m"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
