package token

import (
	"fmt"
	"strings"

	"tokenSync/internal/model"
)

// EventClassifier maps an event's first key to a transfer kind.
type EventClassifier struct {
	keyToKind map[model.Felt]model.TransferKind
}

// NewEventClassifier builds a classifier over the standard keys plus extra
// key->kind mappings (kind names: ownership, balance, batch_balance).
func NewEventClassifier(extra map[string]string) (*EventClassifier, error) {
	keyToKind := map[model.Felt]model.TransferKind{
		TransferKey:       model.KindOwnership,
		TransferSingleKey: model.KindBalance,
		TransferBatchKey:  model.KindBatchBalance,
	}

	for key, name := range extra {
		kind := ParseKind(name)
		if kind == model.KindUnrecognized {
			return nil, fmt.Errorf("unsupported transfer kind in key map: %s", name)
		}
		if key == "" {
			continue
		}
		felt, err := model.ParseFelt(key)
		if err != nil {
			return nil, fmt.Errorf("key map: %w", err)
		}
		keyToKind[felt] = kind
	}

	return &EventClassifier{keyToKind: keyToKind}, nil
}

// Classify looks only at the first key. Anything unknown is KindUnrecognized.
func (c *EventClassifier) Classify(keys []model.Felt) model.TransferKind {
	if len(keys) == 0 {
		return model.KindUnrecognized
	}
	kind, ok := c.keyToKind[keys[0]]
	if !ok {
		return model.KindUnrecognized
	}
	return kind
}

// ParseKind accepts the kind names used in configuration.
func ParseKind(name string) model.TransferKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ownership", "erc721":
		return model.KindOwnership
	case "balance", "erc1155", "transfer_single":
		return model.KindBalance
	case "batch_balance", "batch", "transfer_batch":
		return model.KindBatchBalance
	default:
		return model.KindUnrecognized
	}
}
