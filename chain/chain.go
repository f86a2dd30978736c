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

// Package chain defines the boundary between the ledger pipeline and the
// blockchains it settles on. The pipeline only sees these interfaces; the
// network-specific clients live in subpackages.
package chain

import (
	"context"
	"math/big"

	"github.com/custodia-finance/custodia/model"
)

// TransferEvent is a token transfer observed on chain, normalized to the
// fields reconciliation needs. Amount is in native token units.
type TransferEvent struct {
	Network     string
	TxHash      string
	From        string
	To          string
	Amount      *big.Int
	BlockNumber uint64
}

// Submitter sends token transfers from a network's hot wallet.
type Submitter interface {
	// SubmitTransfer signs and broadcasts a token transfer of amount native
	// units to the destination address, waits for the configured number of
	// confirmations, and returns the transaction hash. The returned hash is
	// also valid when the wait fails, so callers can record a submission
	// whose fate is unknown.
	SubmitTransfer(ctx context.Context, network model.NetworkConfig, destination string, amount *big.Int) (string, error)
}

// BalanceReader reads hot-wallet token balances for the network monitor.
type BalanceReader interface {
	TokenBalance(ctx context.Context, network model.NetworkConfig) (*big.Int, error)
}

// Scanner reads token transfer events for the deposit listener.
type Scanner interface {
	LatestBlock(ctx context.Context, network model.NetworkConfig) (uint64, error)
	ScanTransfers(ctx context.Context, network model.NetworkConfig, fromBlock, toBlock uint64) ([]TransferEvent, error)
}

// Client is the full chain surface used by the pipeline.
type Client interface {
	Submitter
	BalanceReader
	Scanner
}
