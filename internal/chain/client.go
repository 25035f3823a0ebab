package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"tokenSync/internal/model"
)

// Client wraps a go-ethereum RPC client speaking the StarkNet JSON-RPC API.
type Client struct {
	rpcClient *rpc.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientFromRPC(rpcClient), nil
}

// NewClientFromRPC wraps an existing RPC client.
func NewClientFromRPC(rpcClient *rpc.Client) *Client {
	return &Client{rpcClient: rpcClient}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

type blockID struct {
	BlockNumber uint64 `json:"block_number"`
}

type wireEvent struct {
	FromAddress model.Felt   `json:"from_address"`
	Keys        []model.Felt `json:"keys"`
	Data        []model.Felt `json:"data"`
}

type wireReceipt struct {
	TransactionHash model.Felt  `json:"transaction_hash"`
	ExecutionStatus string      `json:"execution_status"`
	Events          []wireEvent `json:"events"`
}

type wireBlock struct {
	BlockHash    model.Felt `json:"block_hash"`
	BlockNumber  *uint64    `json:"block_number"`
	Timestamp    uint64     `json:"timestamp"`
	Transactions []struct {
		Receipt wireReceipt `json:"receipt"`
	} `json:"transactions"`
}

type wireClass struct {
	ABI json.RawMessage `json:"abi"`
}

// LatestBlockNumber returns the latest accepted block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var number uint64
	if err := c.rpcClient.CallContext(ctx, &number, "starknet_blockNumber"); err != nil {
		return 0, err
	}
	return number, nil
}

// BlockWithReceipts returns the block and its receipts in execution order.
func (c *Client) BlockWithReceipts(ctx context.Context, number uint64) (model.Block, error) {
	var raw wireBlock
	if err := c.rpcClient.CallContext(ctx, &raw, "starknet_getBlockWithReceipts", blockID{BlockNumber: number}); err != nil {
		return model.Block{}, err
	}
	if raw.BlockNumber == nil {
		return model.Block{}, fmt.Errorf("block %d is pending", number)
	}
	if *raw.BlockNumber != number {
		return model.Block{}, fmt.Errorf("requested block %d, got %d", number, *raw.BlockNumber)
	}

	block := model.Block{
		Number:    number,
		Hash:      raw.BlockHash,
		Timestamp: raw.Timestamp,
		Receipts:  make([]model.Receipt, 0, len(raw.Transactions)),
	}
	for _, tx := range raw.Transactions {
		receipt := model.Receipt{
			TransactionHash: tx.Receipt.TransactionHash,
			Reverted:        tx.Receipt.ExecutionStatus == "REVERTED",
			Events:          make([]model.RawEvent, 0, len(tx.Receipt.Events)),
		}
		for i, ev := range tx.Receipt.Events {
			receipt.Events = append(receipt.Events, model.RawEvent{
				FromAddress: ev.FromAddress,
				Keys:        ev.Keys,
				Data:        ev.Data,
				BlockNumber: number,
				TxHash:      tx.Receipt.TransactionHash,
				EventIndex:  i,
			})
		}
		block.Receipts = append(block.Receipts, receipt)
	}
	return block, nil
}

// ContractABI returns the interface of the class deployed at contract as of blockNumber.
func (c *Client) ContractABI(ctx context.Context, contract model.Felt, blockNumber uint64) ([]model.ABIEntry, error) {
	var class wireClass
	if err := c.rpcClient.CallContext(ctx, &class, "starknet_getClassAt", blockID{BlockNumber: blockNumber}, contract.ShortHex()); err != nil {
		return nil, err
	}
	return parseABI(class.ABI)
}

// parseABI accepts both the inline array of Cairo 0 classes and the JSON
// string carried by Sierra classes.
func parseABI(raw json.RawMessage) ([]model.ABIEntry, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("decode abi string: %w", err)
		}
		if encoded == "" {
			return nil, nil
		}
		raw = json.RawMessage(encoded)
	}
	var entries []model.ABIEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode abi: %w", err)
	}
	return entries, nil
}
