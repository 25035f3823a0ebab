package model

// TransferKind identifies which transfer layout an event carries.
type TransferKind int

const (
	KindUnrecognized TransferKind = iota
	KindOwnership
	KindBalance
	KindBatchBalance
)

func (k TransferKind) String() string {
	switch k {
	case KindOwnership:
		return "ownership"
	case KindBalance:
		return "balance"
	case KindBatchBalance:
		return "batch_balance"
	default:
		return "unrecognized"
	}
}

// Standard is the token standard a kind belongs to, as stored in contract metadata.
func (k TransferKind) Standard() string {
	switch k {
	case KindOwnership:
		return "erc721"
	case KindBalance, KindBatchBalance:
		return "erc1155"
	default:
		return ""
	}
}

// TransferRecord is one of OwnershipTransfer, BalanceTransfer or BatchBalanceTransfer.
type TransferRecord interface {
	Kind() TransferKind
	isTransferRecord()
}

// OwnershipTransfer moves a single-owner token.
type OwnershipTransfer struct {
	Contract    Felt
	TokenID     *WideUint
	From        Felt
	To          Felt
	BlockNumber uint64
}

// BalanceTransfer moves Amount units of TokenID.
type BalanceTransfer struct {
	Contract    Felt
	TokenID     *WideUint
	From        Felt
	To          Felt
	Amount      *WideUint
	BlockNumber uint64
}

// TokenAmount is one (id, amount) pair of a batch.
type TokenAmount struct {
	TokenID *WideUint
	Amount  *WideUint
}

// BatchBalanceTransfer moves several token ids between the same two accounts.
type BatchBalanceTransfer struct {
	Contract    Felt
	From        Felt
	To          Felt
	Pairs       []TokenAmount
	BlockNumber uint64
}

func (OwnershipTransfer) Kind() TransferKind    { return KindOwnership }
func (BalanceTransfer) Kind() TransferKind      { return KindBalance }
func (BatchBalanceTransfer) Kind() TransferKind { return KindBatchBalance }

func (OwnershipTransfer) isTransferRecord()    {}
func (BalanceTransfer) isTransferRecord()      {}
func (BatchBalanceTransfer) isTransferRecord() {}

// Transfers expands the batch into single transfers, preserving pair order.
func (b BatchBalanceTransfer) Transfers() []BalanceTransfer {
	out := make([]BalanceTransfer, 0, len(b.Pairs))
	for _, pair := range b.Pairs {
		out = append(out, BalanceTransfer{
			Contract:    b.Contract,
			TokenID:     pair.TokenID,
			From:        b.From,
			To:          b.To,
			Amount:      pair.Amount,
			BlockNumber: b.BlockNumber,
		})
	}
	return out
}
