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
	"context"
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-finance/custodia/chain"
	"github.com/custodia-finance/custodia/config"
	"github.com/custodia-finance/custodia/database"
	redis_db "github.com/custodia-finance/custodia/internal/redis-db"
	"github.com/custodia-finance/custodia/model"
)

// Custodia represents the main struct for the Custodia application.
type Custodia struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	chain      chain.Client
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewCustodia initializes a new instance of Custodia with the provided
// datasource and chain client. It fetches the configuration and initializes
// the Redis client and the webhook queue.
func NewCustodia(db database.IDataSource, chainClient chain.Client) (*Custodia, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	newCustodia := &Custodia{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		chain:      chainClient,
	}
	return newCustodia, nil
}

// CreateAccount creates a new custodial account.
func (c *Custodia) CreateAccount(account model.Account) (model.Account, error) {
	return c.datasource.CreateAccount(account)
}

// GetAccount retrieves an account by ID.
func (c *Custodia) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return c.datasource.GetAccountByID(ctx, id)
}

// GetAllAccounts retrieves a paginated list of accounts.
func (c *Custodia) GetAllAccounts(limit, offset int) ([]model.Account, error) {
	return c.datasource.GetAllAccounts(limit, offset)
}

// CreateSavedAddress adds a withdrawal destination to an account's address
// book.
func (c *Custodia) CreateSavedAddress(ctx context.Context, addr model.SavedAddress) (model.SavedAddress, error) {
	if _, err := c.datasource.GetAccountByID(ctx, addr.AccountID); err != nil {
		return model.SavedAddress{}, err
	}
	return c.datasource.CreateSavedAddress(addr)
}

// CreateNetwork registers a new network configuration.
func (c *Custodia) CreateNetwork(network model.NetworkConfig) (model.NetworkConfig, error) {
	return c.datasource.CreateNetwork(network)
}

// GetNetwork retrieves a network configuration by ID or name.
func (c *Custodia) GetNetwork(ctx context.Context, id string) (*model.NetworkConfig, error) {
	return c.datasource.GetNetwork(ctx, id)
}

// GetNetworks retrieves every active network.
func (c *Custodia) GetNetworks(ctx context.Context) ([]model.NetworkConfig, error) {
	return c.datasource.GetActiveNetworks(ctx)
}
