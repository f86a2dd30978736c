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

// Package evm implements the chain client for EVM-compatible networks using
// a JSON-RPC endpoint per network.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/custodia-finance/custodia/config"
	"github.com/custodia-finance/custodia/model"
)

// erc20ABI covers the three pieces of the token interface the pipeline
// touches: outbound transfers, balance reads, and the Transfer event.
const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

const transferGasLimit = 100000

// networkConn is a dialed RPC connection plus the signing key for one
// network's hot wallet.
type networkConn struct {
	client        *ethclient.Client
	key           *ecdsa.PrivateKey
	confirmations uint64
}

// Client talks to EVM networks. Connections are dialed lazily and reused.
type Client struct {
	mu       sync.Mutex
	conns    map[string]*networkConn
	chains   map[string]config.ChainConfig
	tokenABI abi.ABI
}

// NewClient builds a Client from the per-network chain configuration.
func NewClient(chains map[string]config.ChainConfig) (*Client, error) {
	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	return &Client{
		conns:    make(map[string]*networkConn),
		chains:   chains,
		tokenABI: tokenABI,
	}, nil
}

func (c *Client) conn(network string) (*networkConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[network]; ok {
		return conn, nil
	}

	cfg, ok := c.chains[network]
	if !ok {
		return nil, fmt.Errorf("no chain configuration for network %q", network)
	}

	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", network, err)
	}

	conn := &networkConn{client: client, confirmations: cfg.Confirmations}
	if cfg.HotWalletKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.HotWalletKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid hot wallet key for network %s: %w", network, err)
		}
		conn.key = key
	}

	c.conns[network] = conn
	return conn, nil
}

// SubmitTransfer signs and broadcasts an ERC-20 transfer from the network's
// hot wallet, then waits for the configured confirmations. The hash is
// returned even when the confirmation wait fails so the caller can record an
// attempt whose fate is unknown.
func (c *Client) SubmitTransfer(ctx context.Context, network model.NetworkConfig, destination string, amount *big.Int) (string, error) {
	conn, err := c.conn(network.Name)
	if err != nil {
		return "", err
	}
	if conn.key == nil {
		return "", fmt.Errorf("no hot wallet key configured for network %s", network.Name)
	}

	from := crypto.PubkeyToAddress(conn.key.PublicKey)

	nonce, err := conn.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := conn.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	data, err := c.tokenABI.Pack("transfer", common.HexToAddress(destination), amount)
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer: %w", err)
	}

	contract := common.HexToAddress(network.ContractAddress)
	tx := types.NewTransaction(nonce, contract, big.NewInt(0), transferGasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(network.ChainID)), conn.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	// Broadcast is retried on transient RPC failures; the nonce pins the
	// transaction so a duplicate send is harmless.
	err = backoff.Retry(func() error {
		return conn.client.SendTransaction(ctx, signedTx)
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx))
	if err != nil {
		return "", errors.Wrap(err, "failed to broadcast transaction")
	}

	hash := signedTx.Hash().Hex()
	logrus.WithFields(logrus.Fields{
		"network": network.Name,
		"tx_hash": hash,
		"to":      destination,
	}).Info("transfer broadcast")

	if err := c.waitConfirmed(ctx, conn, signedTx.Hash()); err != nil {
		return hash, err
	}

	return hash, nil
}

// waitConfirmed polls for the receipt and then for enough block depth.
func (c *Client) waitConfirmed(ctx context.Context, conn *networkConn, hash common.Hash) error {
	poll := backoff.WithContext(backoff.NewConstantBackOff(3*time.Second), ctx)

	var receipt *types.Receipt
	err := backoff.Retry(func() error {
		r, err := conn.client.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}, poll)
	if err != nil {
		return errors.Wrap(err, "transaction not mined")
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", hash.Hex())
	}

	if conn.confirmations <= 1 {
		return nil
	}

	err = backoff.Retry(func() error {
		head, err := conn.client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		depth := head - receipt.BlockNumber.Uint64() + 1
		if depth < conn.confirmations {
			return fmt.Errorf("transaction %s at depth %d, want %d", hash.Hex(), depth, conn.confirmations)
		}
		return nil
	}, backoff.WithContext(backoff.NewConstantBackOff(5*time.Second), ctx))
	if err != nil {
		return errors.Wrap(err, "confirmation wait failed")
	}

	return nil
}

// TokenBalance reads the hot wallet's token balance in native units.
func (c *Client) TokenBalance(ctx context.Context, network model.NetworkConfig) (*big.Int, error) {
	conn, err := c.conn(network.Name)
	if err != nil {
		return nil, err
	}

	data, err := c.tokenABI.Pack("balanceOf", common.HexToAddress(network.HotWalletAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to encode balanceOf: %w", err)
	}

	contract := common.HexToAddress(network.ContractAddress)
	result, err := conn.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	values, err := c.tokenABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf result: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}

	return balance, nil
}

// LatestBlock returns the network head.
func (c *Client) LatestBlock(ctx context.Context, network model.NetworkConfig) (uint64, error) {
	conn, err := c.conn(network.Name)
	if err != nil {
		return 0, err
	}
	return conn.client.BlockNumber(ctx)
}
