package token

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tokenSync/internal/model"
)

// InterfaceSource fetches a contract's interface description at a block.
type InterfaceSource interface {
	ContractABI(ctx context.Context, contract model.Felt, blockNumber uint64) ([]model.ABIEntry, error)
}

// NotAMatchCache remembers contracts known not to implement the interface
// expected for a transfer kind. Entries are never evicted.
type NotAMatchCache struct {
	mu   sync.RWMutex
	data map[model.TransferKind]map[model.Felt]struct{}
}

func NewNotAMatchCache() *NotAMatchCache {
	return &NotAMatchCache{data: make(map[model.TransferKind]map[model.Felt]struct{})}
}

func (c *NotAMatchCache) Contains(kind model.TransferKind, contract model.Felt) bool {
	c.mu.RLock()
	_, ok := c.data[kind][contract]
	c.mu.RUnlock()
	return ok
}

func (c *NotAMatchCache) Add(kind model.TransferKind, contract model.Felt) {
	c.mu.Lock()
	set, ok := c.data[kind]
	if !ok {
		set = make(map[model.Felt]struct{})
		c.data[kind] = set
	}
	set[contract] = struct{}{}
	c.mu.Unlock()
}

func (c *NotAMatchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, set := range c.data {
		total += len(set)
	}
	return total
}

// DefaultRequirements lists, per kind, the entry points a contract must expose
// for its events to be trusted. ERC-20 Transfer shares the ERC-721 key and word
// count, so ownership transfers are probed for ownerOf.
func DefaultRequirements() map[model.TransferKind][]string {
	return map[model.TransferKind][]string{
		model.KindOwnership: {"ownerOf", "owner_of"},
	}
}

// ContractClassifier disambiguates colliding event keys by probing the
// emitting contract's interface.
type ContractClassifier struct {
	source       InterfaceSource
	cache        *NotAMatchCache
	requirements map[model.TransferKind][]string
	logger       *zap.Logger
}

func NewContractClassifier(source InterfaceSource, cache *NotAMatchCache, requirements map[model.TransferKind][]string, logger *zap.Logger) *ContractClassifier {
	if cache == nil {
		cache = NewNotAMatchCache()
	}
	if requirements == nil {
		requirements = DefaultRequirements()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractClassifier{
		source:       source,
		cache:        cache,
		requirements: requirements,
		logger:       logger,
	}
}

// Matches reports whether contract's events of the given kind should be
// processed. Only negative results are cached.
func (c *ContractClassifier) Matches(ctx context.Context, kind model.TransferKind, contract model.Felt, blockNumber uint64) (bool, error) {
	if c.cache.Contains(kind, contract) {
		return false, nil
	}
	names, ok := c.requirements[kind]
	if !ok || len(names) == 0 {
		return true, nil
	}
	if c.source == nil {
		return false, fmt.Errorf("interface source is nil")
	}

	entries, err := c.source.ContractABI(ctx, contract, blockNumber)
	if err != nil {
		return false, fmt.Errorf("fetch interface of %s: %w", contract.Hex(), err)
	}
	if model.HasFunction(entries, names...) {
		return true, nil
	}

	c.cache.Add(kind, contract)
	c.logger.Debug("contract does not match interface",
		zap.String("contract", contract.Hex()),
		zap.String("kind", kind.String()),
		zap.Uint64("block", blockNumber),
	)
	return false, nil
}

// Cache exposes the not-a-match cache, mainly for seeding.
func (c *ContractClassifier) Cache() *NotAMatchCache {
	return c.cache
}
