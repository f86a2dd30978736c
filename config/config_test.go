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
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "custodia.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestInitConfigFromFile(t *testing.T) {
	path := writeTempConfig(t, `{
		"project_name": "Custodia Test",
		"data_source": {"dns": "postgres://localhost:5432/custodia"},
		"redis": {"dns": "localhost:6379"},
		"withdrawal": {"minimum_amount": "50", "fee_percent": "2"},
		"chains": {
			"ethereum": {"rpc_url": "http://localhost:8545", "confirmations": 12}
		}
	}`)

	err := InitConfig(path)
	require.NoError(t, err)

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Custodia Test", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.True(t, cnf.Withdrawal.MinimumAmount.Equal(decimal.RequireFromString("50")))
	assert.True(t, cnf.Withdrawal.FeePercent.Equal(decimal.RequireFromString("2")))
	assert.Equal(t, uint64(12), cnf.Chains["ethereum"].Confirmations)
	assert.Equal(t, "@every 30s", cnf.Scheduler.WithdrawalExecution)
}

func TestInitConfigMissingDataSource(t *testing.T) {
	path := writeTempConfig(t, `{
		"redis": {"dns": "localhost:6379"}
	}`)

	err := InitConfig(path)
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `{
		"data_source": {"dns": "postgres://localhost:5432/custodia"},
		"redis": {"dns": "localhost:6379"}
	}`)

	t.Setenv("CUSTODIA_SERVER_PORT", "9900")
	t.Setenv("CUSTODIA_WITHDRAWAL_FEE_PERCENT", "1.5")

	err := InitConfig(path)
	require.NoError(t, err)

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "9900", cnf.Server.Port)
	assert.True(t, cnf.Withdrawal.FeePercent.Equal(decimal.RequireFromString("1.5")))
}

func TestNegativeFeeRejected(t *testing.T) {
	path := writeTempConfig(t, `{
		"data_source": {"dns": "postgres://localhost:5432/custodia"},
		"redis": {"dns": "localhost:6379"},
		"withdrawal": {"fee_percent": "-1"}
	}`)

	err := InitConfig(path)
	assert.Error(t, err)
}

func TestMockConfig(t *testing.T) {
	MockConfig(&Configuration{ProjectName: "mocked"})
	cnf, err := Fetch()
	assert.NoError(t, err)
	assert.Equal(t, "mocked", cnf.ProjectName)
}
