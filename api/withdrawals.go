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
	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

func (a Api) RequestWithdrawal(c *gin.Context) {
	var newWithdrawal model2.RequestWithdrawal
	if err := c.ShouldBindJSON(&newWithdrawal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := newWithdrawal.ValidateRequestWithdrawal(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.custodia.RequestWithdrawal(c.Request.Context(),
		newWithdrawal.AccountID,
		newWithdrawal.ParsedAmount(),
		newWithdrawal.Destination,
		newWithdrawal.Network,
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetWithdrawal(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.custodia.GetWithdrawal(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetWithdrawalsByStatus(c *gin.Context) {
	status := c.DefaultQuery("status", model.WithdrawalStatusPending)
	limit, offset := paginationParams(c)

	resp, err := a.custodia.GetWithdrawalsByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ApproveWithdrawal(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var review model2.ReviewWithdrawal
	if err := c.ShouldBindJSON(&review); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := review.ValidateReviewWithdrawal(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.custodia.ApproveWithdrawal(c.Request.Context(), id, review.Actor)
	if err != nil {
		c.JSON(reviewErrorStatus(err), gin.H{"error": err.Error(), "withdrawal": resp})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) RejectWithdrawal(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var review model2.ReviewWithdrawal
	if err := c.ShouldBindJSON(&review); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := review.ValidateReviewWithdrawal(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.custodia.RejectWithdrawal(c.Request.Context(), id, review.Actor, review.Reason)
	if err != nil {
		c.JSON(reviewErrorStatus(err), gin.H{"error": err.Error(), "withdrawal": resp})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// reviewErrorStatus maps a failed review to a status code. A request that has
// already moved past pending is a conflict, not a bad request.
func reviewErrorStatus(err error) int {
	if apierror.NewAPIError(apierror.ErrAlreadyProcessed, "", nil).Is(err) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
