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
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/custodia-finance/custodia/api/model"
)

// LogDeposit reconciles one on-chain transfer by hand. The scheduled poller
// covers the normal path; this endpoint exists for transfers observed out of
// band. Re-submitting a known transfer reports the duplicate instead of
// failing.
func (a Api) LogDeposit(c *gin.Context) {
	var newDeposit model2.LogDeposit
	if err := c.ShouldBindJSON(&newDeposit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := newDeposit.ValidateLogDeposit(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	network, err := a.custodia.GetNetwork(c.Request.Context(), newDeposit.Network)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := a.custodia.LogDeposit(c.Request.Context(), newDeposit.ToDepositRecord(network.Decimals))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if outcome.Duplicate {
		c.JSON(http.StatusOK, outcome)
		return
	}
	c.JSON(http.StatusCreated, outcome)
}

func (a Api) GetAccountDeposits(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	limit, offset := paginationParams(c)
	resp, err := a.custodia.GetDeposits(c.Request.Context(), id, limit, offset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
