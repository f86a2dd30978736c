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
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/custodia-finance/custodia"
	"github.com/custodia-finance/custodia/api/middleware"
	"github.com/custodia-finance/custodia/config"
)

type Api struct {
	custodia *custodia.Custodia
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/accounts", a.CreateAccount)
	router.GET("/accounts/:id", a.GetAccount)
	router.GET("/accounts", a.GetAllAccounts)
	router.GET("/accounts/:id/balance", a.GetBalance)
	router.GET("/accounts/:id/transactions", a.GetAccountTransactions)
	router.GET("/accounts/:id/deposits", a.GetAccountDeposits)
	router.POST("/accounts/:id/saved-addresses", a.CreateSavedAddress)

	router.POST("/deposits", a.LogDeposit)

	router.POST("/withdrawals", a.RequestWithdrawal)
	router.GET("/withdrawals/:id", a.GetWithdrawal)
	router.GET("/withdrawals", a.GetWithdrawalsByStatus)
	router.POST("/withdrawals/:id/approve", a.ApproveWithdrawal)
	router.POST("/withdrawals/:id/reject", a.RejectWithdrawal)

	router.POST("/networks", a.CreateNetwork)
	router.GET("/networks", a.GetNetworks)
	router.POST("/networks/:id/pause", a.PauseNetwork)
	router.POST("/networks/:id/resume", a.ResumeNetwork)

	router.GET("/alerts", a.GetAlerts)

	return a.router
}

func NewAPI(c *custodia.Custodia) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{custodia: c, router: r}
}
