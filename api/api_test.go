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
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-finance/custodia"
	model2 "github.com/custodia-finance/custodia/api/model"
	"github.com/custodia-finance/custodia/api/middleware"
	"github.com/custodia-finance/custodia/config"
	"github.com/custodia-finance/custodia/database"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		if err := json.NewDecoder(resp.Body).Decode(&s.Response); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func setupRouter(t *testing.T, secure bool) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis:      config.RedisConfig{Dns: mr.Addr()},
		DataSource: config.DataSourceConfig{Dns: "postgres://test"},
		Server:     config.ServerConfig{Secure: secure, SecretKey: "test-secret"},
		Withdrawal: config.WithdrawalConfig{
			MinimumAmount: decimal.RequireFromString("50"),
			FeePercent:    decimal.RequireFromString("2"),
		},
		Queue: config.QueueConfig{WebhookQueue: "new:webhook"},
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	service, err := custodia.NewCustodia(&database.Datasource{Conn: db}, nil)
	require.NoError(t, err)

	return NewAPI(service).Router(), mock
}

func TestCreateAccountAPI(t *testing.T) {
	router, mock := setupRouter(t, false)

	tests := []struct {
		name         string
		payload      model2.CreateAccount
		expectedCode int
		wantInsert   bool
	}{
		{
			name: "valid account",
			payload: model2.CreateAccount{
				Name:           gofakeit.Name(),
				ReceiveAddress: "0x" + gofakeit.UUID(),
				Network:        "ethereum",
			},
			expectedCode: http.StatusCreated,
			wantInsert:   true,
		},
		{
			name:         "missing name",
			payload:      model2.CreateAccount{Network: "ethereum"},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantInsert {
				mock.ExpectExec("INSERT INTO custodia.accounts").
					WillReturnResult(sqlmock.NewResult(1, 1))
			}

			body, err := json.Marshal(tt.payload)
			require.NoError(t, err)

			var response map[string]interface{}
			resp, err := SetUpTestRequest(TestRequest{
				Payload:  bytes.NewBuffer(body),
				Router:   router,
				Response: &response,
				Method:   http.MethodPost,
				Route:    "/accounts",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestRequestWithdrawalAPI_InvalidAmount(t *testing.T) {
	router, _ := setupRouter(t, false)

	body, err := json.Marshal(model2.RequestWithdrawal{
		AccountID:   "acc_1",
		Amount:      "not-a-number",
		Destination: "0xdest",
		Network:     "ethereum",
	})
	require.NoError(t, err)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewBuffer(body),
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/withdrawals",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, response["errors"], "amount")
}

func TestGetWithdrawalsByStatusAPI(t *testing.T) {
	router, mock := setupRouter(t, false)

	rows := sqlmock.NewRows([]string{"withdrawal_id", "account_id", "amount", "fee", "net_amount", "destination", "network", "status", "execution_status", "tx_hash", "failure_reason", "retry_count", "requested_at", "processed_at", "processed_by"}).
		AddRow("wdl_1", "acc_1", "100", "2", "98", "0xdest", "ethereum", "pending", "", nil, nil, 0, time.Now(), nil, nil)
	mock.ExpectQuery("SELECT withdrawal_id, account_id, amount").
		WithArgs("pending", 50, 0).
		WillReturnRows(rows)

	var response []map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &response,
		Method:   http.MethodGet,
		Route:    "/withdrawals?status=pending",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, response, 1)
	assert.Equal(t, "wdl_1", response[0]["withdrawal_id"])
}

func TestSecretKeyAuth(t *testing.T) {
	router, _ := setupRouter(t, true)

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/accounts",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/accounts",
		Header: map[string]string{middleware.KeyHeader: "wrong-secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
