package token

import (
	"errors"
	"testing"

	"tokenSync/internal/model"
)

var (
	contract = model.MustParseFelt("0x0123")
	alice    = model.MustParseFelt("0xa11ce")
	bob      = model.MustParseFelt("0xb0b")
)

func felts(values ...uint64) []model.Felt {
	out := make([]model.Felt, 0, len(values))
	for _, v := range values {
		out = append(out, model.FeltFromUint64(v))
	}
	return out
}

func batchData(from, to model.Felt, ids, amounts []uint64) []model.Felt {
	data := []model.Felt{model.FeltFromUint64(0xff), from, to, model.FeltFromUint64(uint64(len(ids)))}
	for _, id := range ids {
		data = append(data, model.FeltFromUint64(id), model.ZeroFelt)
	}
	data = append(data, model.FeltFromUint64(uint64(len(amounts))))
	for _, amount := range amounts {
		data = append(data, model.FeltFromUint64(amount), model.ZeroFelt)
	}
	return data
}

func TestDecodeOwnership(t *testing.T) {
	decoder := NewTransferDecoder(DecoderConfig{})
	event := model.RawEvent{
		FromAddress: contract,
		Keys:        []model.Felt{TransferKey},
		Data:        append([]model.Felt{alice, bob}, felts(42, 1)...),
		BlockNumber: 10,
	}

	record, err := decoder.Decode(model.KindOwnership, event)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	transfer, ok := record.(model.OwnershipTransfer)
	if !ok {
		t.Fatalf("record type mismatch: %T", record)
	}
	if transfer.From != alice || transfer.To != bob || transfer.Contract != contract {
		t.Fatalf("address mismatch: %+v", transfer)
	}
	if model.FormatWideUint(transfer.TokenID) != "340282366920938463463374607431768211498" {
		t.Fatalf("token id mismatch: %s", model.FormatWideUint(transfer.TokenID))
	}
	if transfer.BlockNumber != 10 {
		t.Fatalf("block mismatch: %d", transfer.BlockNumber)
	}
}

func TestDecodeOwnershipWordCount(t *testing.T) {
	decoder := NewTransferDecoder(DecoderConfig{})
	for _, n := range []int{0, 3, 5} {
		event := model.RawEvent{FromAddress: contract, Data: make([]model.Felt, n)}
		_, err := decoder.Decode(model.KindOwnership, event)
		if !errors.Is(err, model.ErrDecode) {
			t.Fatalf("words=%d: expected decode error, got %v", n, err)
		}
	}
}

func TestDecodeBalance(t *testing.T) {
	decoder := NewTransferDecoder(DecoderConfig{})
	event := model.RawEvent{
		FromAddress: contract,
		Data:        append([]model.Felt{model.ZeroFelt, bob}, felts(7, 0, 500, 0)...),
		BlockNumber: 11,
	}

	record, err := decoder.Decode(model.KindBalance, event)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	transfer := record.(model.BalanceTransfer)
	if !transfer.From.IsZero() || transfer.To != bob {
		t.Fatalf("address mismatch: %+v", transfer)
	}
	if transfer.TokenID.Uint64() != 7 || transfer.Amount.Uint64() != 500 {
		t.Fatalf("values mismatch: id=%d amount=%d", transfer.TokenID.Uint64(), transfer.Amount.Uint64())
	}

	event.Data = event.Data[:5]
	if _, err := decoder.Decode(model.KindBalance, event); !errors.Is(err, model.ErrDecode) {
		t.Fatalf("expected decode error for short data, got %v", err)
	}
}

func TestDecodeBatch(t *testing.T) {
	decoder := NewTransferDecoder(DecoderConfig{})
	event := model.RawEvent{
		FromAddress: contract,
		Data:        batchData(alice, bob, []uint64{5, 9}, []uint64{100, 7}),
		BlockNumber: 12,
	}
	if len(event.Data) != 4+2*2+1+2*2 {
		t.Fatalf("fixture size mismatch: %d", len(event.Data))
	}

	record, err := decoder.Decode(model.KindBatchBalance, event)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	batch := record.(model.BatchBalanceTransfer)
	if batch.From != alice || batch.To != bob {
		t.Fatalf("address mismatch: %+v", batch)
	}
	if len(batch.Pairs) != 2 {
		t.Fatalf("pairs mismatch: %d", len(batch.Pairs))
	}
	want := [][2]uint64{{5, 100}, {9, 7}}
	for i, pair := range batch.Pairs {
		if pair.TokenID.Uint64() != want[i][0] || pair.Amount.Uint64() != want[i][1] {
			t.Fatalf("pair %d mismatch: id=%d amount=%d", i, pair.TokenID.Uint64(), pair.Amount.Uint64())
		}
	}
}

func TestDecodeBatchEmpty(t *testing.T) {
	decoder := NewTransferDecoder(DecoderConfig{})
	event := model.RawEvent{FromAddress: contract, Data: batchData(alice, bob, nil, nil)}
	record, err := decoder.Decode(model.KindBatchBalance, event)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(record.(model.BatchBalanceTransfer).Pairs) != 0 {
		t.Fatalf("expected no pairs")
	}
}

func TestDecodeBatchLayoutErrors(t *testing.T) {
	decoder := NewTransferDecoder(DecoderConfig{})
	valid := batchData(alice, bob, []uint64{5, 9}, []uint64{100, 7})

	cases := map[string][]model.Felt{
		"truncated":  valid[:len(valid)-1],
		"extra word": append(append([]model.Felt{}, valid...), model.ZeroFelt),
		"header only": valid[:4],
		"huge length": func() []model.Felt {
			data := append([]model.Felt{}, valid...)
			data[3] = model.MustParseFelt("0xffffffffffffffffffff")
			return data
		}(),
		"length too large": func() []model.Felt {
			data := append([]model.Felt{}, valid...)
			data[3] = model.FeltFromUint64(3)
			return data
		}(),
		"values length mismatch": func() []model.Felt {
			data := append([]model.Felt{}, valid...)
			data[8] = model.FeltFromUint64(1)
			return data
		}(),
	}

	for name, data := range cases {
		record, err := decoder.Decode(model.KindBatchBalance, model.RawEvent{FromAddress: contract, Data: data})
		if !errors.Is(err, model.ErrDecode) {
			t.Fatalf("%s: expected decode error, got %v", name, err)
		}
		if record != nil {
			t.Fatalf("%s: expected no record", name)
		}
	}
}

func TestDecodeBatchLenientValuesLength(t *testing.T) {
	decoder := NewTransferDecoder(DecoderConfig{LenientValuesLength: true})
	data := batchData(alice, bob, []uint64{5, 9}, []uint64{100, 7})
	data[8] = model.FeltFromUint64(1)

	record, err := decoder.Decode(model.KindBatchBalance, model.RawEvent{FromAddress: contract, Data: data})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(record.(model.BatchBalanceTransfer).Pairs) != 2 {
		t.Fatalf("expected two pairs")
	}
}

func TestDecodeRejectsWideLimb(t *testing.T) {
	decoder := NewTransferDecoder(DecoderConfig{})
	data := append([]model.Felt{alice, bob}, felts(1, 0)...)
	data[3] = model.MustParseFelt("0x100000000000000000000000000000000")
	if _, err := decoder.Decode(model.KindOwnership, model.RawEvent{Data: data}); !errors.Is(err, model.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
