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

package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/custodia-finance/custodia/chain"
	"github.com/custodia-finance/custodia/model"
)

// maxScanRange caps how many blocks a single scan covers so a stale cursor
// catches up in bounded chunks instead of one oversized log query.
const maxScanRange = 2000

// ScanTransfers reads Transfer events emitted by the network's token
// contract between fromBlock and toBlock inclusive. Only transfers INTO
// watched space are interesting downstream, but filtering by recipient
// happens there; this returns every transfer the contract logged.
func (c *Client) ScanTransfers(ctx context.Context, network model.NetworkConfig, fromBlock, toBlock uint64) ([]chain.TransferEvent, error) {
	conn, err := c.conn(network.Name)
	if err != nil {
		return nil, err
	}

	if toBlock < fromBlock {
		return nil, nil
	}
	if toBlock-fromBlock >= maxScanRange {
		toBlock = fromBlock + maxScanRange - 1
	}

	transferSig := c.tokenABI.Events["Transfer"].ID

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(network.ContractAddress)},
		Topics:    [][]common.Hash{{transferSig}},
	}

	logs, err := conn.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s logs: %w", network.Name, err)
	}

	events := make([]chain.TransferEvent, 0, len(logs))
	for _, entry := range logs {
		event, err := c.parseTransferLog(network.Name, entry)
		if err != nil {
			// A malformed log is skipped, not fatal; the rest of the range
			// still reconciles.
			continue
		}
		events = append(events, *event)
	}

	return events, nil
}

func (c *Client) parseTransferLog(networkName string, entry types.Log) (*chain.TransferEvent, error) {
	if len(entry.Topics) != 3 {
		return nil, fmt.Errorf("unexpected topic count %d", len(entry.Topics))
	}

	values, err := c.tokenABI.Unpack("Transfer", entry.Data)
	if err != nil {
		return nil, err
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected transfer value type %T", values[0])
	}

	return &chain.TransferEvent{
		Network:     networkName,
		TxHash:      entry.TxHash.Hex(),
		From:        common.HexToAddress(entry.Topics[1].Hex()).Hex(),
		To:          common.HexToAddress(entry.Topics[2].Hex()).Hex(),
		Amount:      amount,
		BlockNumber: entry.BlockNumber,
	}, nil
}
