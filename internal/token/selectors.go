package token

import (
	"github.com/ethereum/go-ethereum/crypto"

	"tokenSync/internal/model"
)

// Event keys of the supported transfer events.
var (
	// TransferKey is the ERC-721 Transfer key. ERC-20 Transfer shares it.
	TransferKey = model.MustParseFelt("0x99cd8bde557814842a3121e8ddfd433a539b8c9f14bf31ebf108d12e6196e9")
	// TransferSingleKey is the ERC-1155 TransferSingle key.
	TransferSingleKey = model.MustParseFelt("0x182d859c0807ba9db63baf8b9d9fdbfeb885d820be6e206b9dab626d995c433")
	// TransferBatchKey is the ERC-1155 TransferBatch key.
	TransferBatchKey = model.MustParseFelt("0x2563683c757f3abe19c4b7237e2285d8993417ddffe0b54a19eb212ea574b08")
)

// SelectorFromName returns starknet_keccak(name): keccak256 truncated to 250 bits.
func SelectorFromName(name string) model.Felt {
	var f model.Felt
	copy(f[:], crypto.Keccak256([]byte(name)))
	f[0] &= 0x03
	return f
}
