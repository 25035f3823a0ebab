package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"tokenSync/internal/model"
)

type starknetService struct {
	classes map[string]json.RawMessage
}

func (s *starknetService) BlockNumber() uint64 {
	return 812
}

func (s *starknetService) GetBlockWithReceipts(id blockID) (json.RawMessage, error) {
	if id.BlockNumber == 999 {
		return json.RawMessage(`{"status":"PENDING","timestamp":1,"transactions":[]}`), nil
	}
	return json.RawMessage(fmt.Sprintf(`{
		"block_hash": "0xabc",
		"block_number": %d,
		"timestamp": 1700000000,
		"transactions": [
			{"transaction": {}, "receipt": {"transaction_hash": "0x1", "execution_status": "SUCCEEDED", "events": [
				{"from_address": "0xc0", "keys": ["0x99cd8bde557814842a3121e8ddfd433a539b8c9f14bf31ebf108d12e6196e9"], "data": ["0x0", "0xa1", "0x5", "0x0"]},
				{"from_address": "0xc1", "keys": [], "data": []}
			]}},
			{"transaction": {}, "receipt": {"transaction_hash": "0x2", "execution_status": "REVERTED", "events": []}}
		]
	}`, id.BlockNumber)), nil
}

func (s *starknetService) GetClassAt(id blockID, address string) (json.RawMessage, error) {
	class, ok := s.classes[address]
	if !ok {
		return nil, fmt.Errorf("contract not found")
	}
	return class, nil
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	server := rpc.NewServer()
	err := server.RegisterName("starknet", &starknetService{classes: map[string]json.RawMessage{
		"0xc0": json.RawMessage(`{"abi": [{"type": "function", "name": "ownerOf"}], "program": ""}`),
		"0xc1": json.RawMessage(`{"sierra_program": [], "abi": "[{\"type\":\"interface\",\"name\":\"IERC20\",\"items\":[{\"type\":\"function\",\"name\":\"balance_of\"}]}]"}`),
	}})
	require.NoError(t, err)
	t.Cleanup(server.Stop)

	client := NewClientFromRPC(rpc.DialInProc(server))
	t.Cleanup(client.Close)
	return client
}

func TestLatestBlockNumber(t *testing.T) {
	client := newTestClient(t)
	number, err := client.LatestBlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(812), number)
}

func TestBlockWithReceipts(t *testing.T) {
	client := newTestClient(t)
	block, err := client.BlockWithReceipts(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), block.Number)
	require.Len(t, block.Receipts, 2)
	require.True(t, block.Receipts[1].Reverted)

	events := block.Events()
	require.Len(t, events, 2)
	require.Equal(t, model.MustParseFelt("0xc0"), events[0].FromAddress)
	require.Equal(t, uint64(42), events[0].BlockNumber)
	require.Len(t, events[0].Data, 4)
	require.Equal(t, 1, events[1].EventIndex)

	_, err = client.BlockWithReceipts(context.Background(), 999)
	require.Error(t, err)
}

func TestContractABI(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	entries, err := client.ContractABI(ctx, model.MustParseFelt("0xc0"), 1)
	require.NoError(t, err)
	require.True(t, model.HasFunction(entries, "ownerOf"))

	entries, err = client.ContractABI(ctx, model.MustParseFelt("0x00c1"), 1)
	require.NoError(t, err)
	require.True(t, model.HasFunction(entries, "balance_of"))
	require.False(t, model.HasFunction(entries, "ownerOf", "owner_of"))

	_, err = client.ContractABI(ctx, model.MustParseFelt("0xdead"), 1)
	require.Error(t, err)
}
