package evm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-finance/custodia/config"
)

func newTestClient(t *testing.T) *Client {
	c, err := NewClient(map[string]config.ChainConfig{
		"ethereum": {RpcUrl: "http://localhost:8545", Confirmations: 3},
	})
	require.NoError(t, err)
	return c
}

func TestParseTransferLog(t *testing.T) {
	c := newTestClient(t)

	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	amount, _ := new(big.Int).SetString("50500000000000000000", 10)

	data, err := c.tokenABI.Events["Transfer"].Inputs.NonIndexed().Pack(amount)
	require.NoError(t, err)

	entry := types.Log{
		Topics: []common.Hash{
			c.tokenABI.Events["Transfer"].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        data,
		TxHash:      common.HexToHash("0xabc"),
		BlockNumber: 19000000,
	}

	event, err := c.parseTransferLog("ethereum", entry)
	require.NoError(t, err)
	assert.Equal(t, "ethereum", event.Network)
	assert.Equal(t, from.Hex(), event.From)
	assert.Equal(t, to.Hex(), event.To)
	assert.Equal(t, amount.String(), event.Amount.String())
	assert.Equal(t, uint64(19000000), event.BlockNumber)
}

func TestParseTransferLog_BadTopics(t *testing.T) {
	c := newTestClient(t)

	_, err := c.parseTransferLog("ethereum", types.Log{
		Topics: []common.Hash{c.tokenABI.Events["Transfer"].ID},
	})
	assert.Error(t, err)
}

func TestPackTransferCalldata(t *testing.T) {
	c := newTestClient(t)

	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data, err := c.tokenABI.Pack("transfer", to, big.NewInt(1000))
	require.NoError(t, err)
	// 4-byte selector for transfer(address,uint256).
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, data[:4])
}

func TestConn_UnknownNetwork(t *testing.T) {
	c := newTestClient(t)

	_, err := c.conn("solana")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no chain configuration")
}
