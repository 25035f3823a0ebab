package indexer

import (
	"time"

	"tokenSync/internal/model"
)

func buildJournalEntries(block model.Block, event model.RawEvent, record model.TransferRecord, committedAt time.Time) []model.JournalEntry {
	base := model.JournalEntry{
		BlockNumber: block.Number,
		BlockHash:   block.Hash.Hex(),
		TxHash:      event.TxHash.Hex(),
		EventIndex:  event.EventIndex,
		Kind:        record.Kind().String(),
		CommittedAt: committedAt.UTC().Format(time.RFC3339Nano),
	}

	switch rec := record.(type) {
	case model.OwnershipTransfer:
		entry := base
		entry.Contract = rec.Contract.Hex()
		entry.From = rec.From.Hex()
		entry.To = rec.To.Hex()
		entry.TokenID = model.FormatWideUint(rec.TokenID)
		return []model.JournalEntry{entry}
	case model.BalanceTransfer:
		return []model.JournalEntry{balanceEntry(base, rec)}
	case model.BatchBalanceTransfer:
		transfers := rec.Transfers()
		entries := make([]model.JournalEntry, 0, len(transfers))
		for _, transfer := range transfers {
			entries = append(entries, balanceEntry(base, transfer))
		}
		return entries
	default:
		return nil
	}
}

func balanceEntry(base model.JournalEntry, rec model.BalanceTransfer) model.JournalEntry {
	entry := base
	entry.Contract = rec.Contract.Hex()
	entry.From = rec.From.Hex()
	entry.To = rec.To.Hex()
	entry.TokenID = model.FormatWideUint(rec.TokenID)
	entry.Amount = model.FormatWideUint(rec.Amount)
	return entry
}
