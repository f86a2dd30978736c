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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/custodia-finance/custodia"
	"github.com/custodia-finance/custodia/config"
	redis_db "github.com/custodia-finance/custodia/internal/redis-db"
)

const (
	taskDepositPoll         = "deposit:poll"
	taskWithdrawalExecution = "withdrawal:execute"
	taskBalanceCheck        = "balance:check"
	schedulerQueue          = "scheduler"
)

// pollDeposits scans every active network for new transfers and reconciles
// them into the ledger.
func (b *custodiaInstance) pollDeposits(ctx context.Context, _ *asynq.Task) error {
	if err := b.custodia.RunDepositPoll(ctx); err != nil {
		logrus.WithError(err).Error("deposit poll run failed")
		return err
	}
	return nil
}

// executeWithdrawals drains the approved withdrawal backlog.
func (b *custodiaInstance) executeWithdrawals(ctx context.Context, _ *asynq.Task) error {
	report, err := b.custodia.RunWithdrawalExecution(ctx)
	if err != nil {
		logrus.WithError(err).Error("withdrawal execution run failed")
		return err
	}
	if report.Failed > 0 {
		logrus.WithField("errors", report.Errors).Warn("withdrawal execution run had failures")
	}
	return nil
}

// checkBalances snapshots hot-wallet balances and raises low balance alerts.
func (b *custodiaInstance) checkBalances(ctx context.Context, _ *asynq.Task) error {
	if err := b.custodia.RunBalanceCheck(ctx); err != nil {
		logrus.WithError(err).Error("balance check run failed")
		return err
	}
	return nil
}

func initializeQueues(cfg *config.Configuration) map[string]int {
	queues := make(map[string]int)
	queues[cfg.Queue.WebhookQueue] = 3
	queues[schedulerQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *custodiaInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.WebhookQueue, custodia.ProcessWebhook)
	mux.HandleFunc(taskDepositPoll, b.pollDeposits)
	mux.HandleFunc(taskWithdrawalExecution, b.executeWithdrawals)
	mux.HandleFunc(taskBalanceCheck, b.checkBalances)
}

// initializeScheduler registers the recurring background ticks. Each tick
// enqueues one task; the worker mux above runs it.
func initializeScheduler(conf *config.Configuration) (*asynq.Scheduler, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		nil,
	)

	entries := []struct {
		cronspec string
		taskType string
	}{
		{conf.Scheduler.DepositPoll, taskDepositPoll},
		{conf.Scheduler.WithdrawalExecution, taskWithdrawalExecution},
		{conf.Scheduler.BalanceCheck, taskBalanceCheck},
	}
	for _, entry := range entries {
		task := asynq.NewTask(entry.taskType, nil)
		if _, err := scheduler.Register(entry.cronspec, task, asynq.Queue(schedulerQueue)); err != nil {
			return nil, fmt.Errorf("error registering %s: %v", entry.taskType, err)
		}
	}

	return scheduler, nil
}

// workerCommands defines the "workers" command. The workers process webhook
// deliveries and run the scheduled deposit, withdrawal and balance ticks.
func workerCommands(b *custodiaInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start custodia workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues(conf)

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			scheduler, err := initializeScheduler(conf)
			if err != nil {
				log.Fatal(err)
			}
			go func() {
				if err := scheduler.Run(); err != nil {
					log.Fatalf("Error running scheduler: %v", err)
				}
			}()

			// Start asynqmon for health checks and monitoring.
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("Error starting asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("Error running worker server: %v", err)
			}
		},
	}

	return cmd
}
