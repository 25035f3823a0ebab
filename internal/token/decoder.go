package token

import (
	"fmt"

	"tokenSync/internal/model"
)

const (
	ownershipWords = 4
	balanceWords   = 6

	// batch layout: [_, from, to, idsLength, ids..., valuesLength, values...]
	batchFromIndex    = 1
	batchToIndex      = 2
	batchLengthIndex  = 3
	batchIDsIndex     = 4
	batchHeaderWords  = 4
	batchLengthWords  = 1
	wordsPerWideValue = 2
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// LenientValuesLength skips the check that the embedded values length
	// equals the ids length. The default treats a mismatch as a decode error.
	LenientValuesLength bool
}

// TransferDecoder turns raw event data words into transfer records.
type TransferDecoder struct {
	cfg DecoderConfig
}

func NewTransferDecoder(cfg DecoderConfig) *TransferDecoder {
	return &TransferDecoder{cfg: cfg}
}

// Decode returns a complete record or an error; it never returns a partial record.
func (d *TransferDecoder) Decode(kind model.TransferKind, event model.RawEvent) (model.TransferRecord, error) {
	switch kind {
	case model.KindOwnership:
		return d.decodeOwnership(event)
	case model.KindBalance:
		return d.decodeBalance(event)
	case model.KindBatchBalance:
		return d.decodeBatch(event)
	default:
		return nil, decodeError(kind, event, "unsupported transfer kind")
	}
}

func (d *TransferDecoder) decodeOwnership(event model.RawEvent) (model.TransferRecord, error) {
	data := event.Data
	if len(data) != ownershipWords {
		return nil, decodeError(model.KindOwnership, event,
			fmt.Sprintf("expected %d data words, got %d", ownershipWords, len(data)))
	}
	tokenID, err := model.AssembleWideUint(data[2], data[3])
	if err != nil {
		return nil, decodeError(model.KindOwnership, event, "token id: "+err.Error())
	}
	return model.OwnershipTransfer{
		Contract:    event.FromAddress,
		TokenID:     tokenID,
		From:        data[0],
		To:          data[1],
		BlockNumber: event.BlockNumber,
	}, nil
}

func (d *TransferDecoder) decodeBalance(event model.RawEvent) (model.TransferRecord, error) {
	data := event.Data
	if len(data) != balanceWords {
		return nil, decodeError(model.KindBalance, event,
			fmt.Sprintf("expected %d data words, got %d", balanceWords, len(data)))
	}
	tokenID, err := model.AssembleWideUint(data[2], data[3])
	if err != nil {
		return nil, decodeError(model.KindBalance, event, "token id: "+err.Error())
	}
	amount, err := model.AssembleWideUint(data[4], data[5])
	if err != nil {
		return nil, decodeError(model.KindBalance, event, "amount: "+err.Error())
	}
	return model.BalanceTransfer{
		Contract:    event.FromAddress,
		TokenID:     tokenID,
		From:        data[0],
		To:          data[1],
		Amount:      amount,
		BlockNumber: event.BlockNumber,
	}, nil
}

func (d *TransferDecoder) decodeBatch(event model.RawEvent) (model.TransferRecord, error) {
	data := event.Data
	if len(data) < batchHeaderWords+batchLengthWords {
		return nil, decodeError(model.KindBatchBalance, event,
			fmt.Sprintf("batch needs at least %d data words, got %d", batchHeaderWords+batchLengthWords, len(data)))
	}

	// Bound L by the payload size before any arithmetic on it.
	length, ok := data[batchLengthIndex].Uint64()
	maxLength := uint64(len(data)-batchHeaderWords-batchLengthWords) / (2 * wordsPerWideValue)
	if !ok || length > maxLength {
		return nil, decodeError(model.KindBatchBalance, event,
			fmt.Sprintf("ids length %s does not fit %d data words", data[batchLengthIndex].Big(), len(data)))
	}
	n := int(length)

	valuesLengthIndex := batchIDsIndex + wordsPerWideValue*n
	valuesIndex := valuesLengthIndex + batchLengthWords
	expected := valuesIndex + wordsPerWideValue*n
	if len(data) != expected {
		return nil, decodeError(model.KindBatchBalance, event,
			fmt.Sprintf("expected %d data words for %d pairs, got %d", expected, n, len(data)))
	}

	if !d.cfg.LenientValuesLength {
		valuesLength, ok := data[valuesLengthIndex].Uint64()
		if !ok || valuesLength != length {
			return nil, decodeError(model.KindBatchBalance, event,
				fmt.Sprintf("values length %s does not match ids length %d", data[valuesLengthIndex].Big(), length))
		}
	}

	pairs := make([]model.TokenAmount, 0, n)
	for i := 0; i < n; i++ {
		idAt := batchIDsIndex + wordsPerWideValue*i
		tokenID, err := model.AssembleWideUint(data[idAt], data[idAt+1])
		if err != nil {
			return nil, decodeError(model.KindBatchBalance, event, fmt.Sprintf("token id %d: %v", i, err))
		}
		amountAt := valuesIndex + wordsPerWideValue*i
		amount, err := model.AssembleWideUint(data[amountAt], data[amountAt+1])
		if err != nil {
			return nil, decodeError(model.KindBatchBalance, event, fmt.Sprintf("amount %d: %v", i, err))
		}
		pairs = append(pairs, model.TokenAmount{TokenID: tokenID, Amount: amount})
	}

	return model.BatchBalanceTransfer{
		Contract:    event.FromAddress,
		From:        data[batchFromIndex],
		To:          data[batchToIndex],
		Pairs:       pairs,
		BlockNumber: event.BlockNumber,
	}, nil
}

func decodeError(kind model.TransferKind, event model.RawEvent, reason string) error {
	return &model.DecodeError{
		Kind:        kind,
		Contract:    event.FromAddress,
		BlockNumber: event.BlockNumber,
		Reason:      reason,
	}
}
