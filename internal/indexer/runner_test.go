package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tokenSync/internal/ledger"
	"tokenSync/internal/model"
	"tokenSync/internal/storage"
	"tokenSync/internal/storage/sqlite"
	"tokenSync/internal/token"
)

var (
	nftContract   = model.MustParseFelt("0x0c01")
	multiContract = model.MustParseFelt("0x0c02")
	erc20Contract = model.MustParseFelt("0x0c03")
	alice         = model.MustParseFelt("0x0a11ce")
	bob           = model.MustParseFelt("0x0b0b")
)

type fakeChain struct {
	latest uint64
	blocks map[uint64]model.Block
	errs   map[uint64]int
}

func (c *fakeChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.latest, nil
}

func (c *fakeChain) BlockWithReceipts(ctx context.Context, number uint64) (model.Block, error) {
	if c.errs[number] > 0 {
		c.errs[number]--
		return model.Block{}, fmt.Errorf("transient failure for block %d", number)
	}
	block, ok := c.blocks[number]
	if !ok {
		return model.Block{Number: number, Hash: model.FeltFromUint64(number)}, nil
	}
	return block, nil
}

type fakeABIs map[model.Felt][]model.ABIEntry

func (f fakeABIs) ContractABI(ctx context.Context, contract model.Felt, blockNumber uint64) ([]model.ABIEntry, error) {
	return f[contract], nil
}

// failingCursorStore wraps a store so the cursor write inside a unit of work fails.
type failingCursorStore struct {
	storage.Store
}

func (s failingCursorStore) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	uow, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingCursorUnitOfWork{UnitOfWork: uow}, nil
}

type failingCursorUnitOfWork struct {
	storage.UnitOfWork
}

func (failingCursorUnitOfWork) SetLastSyncedBlock(ctx context.Context, blockNumber uint64) error {
	return errors.New("disk full")
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "tokensync.sqlite"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	_, err = store.Migrate(context.Background())
	require.NoError(t, err)
	return store
}

func newTestPipeline(t *testing.T) Pipeline {
	t.Helper()
	classifier, err := token.NewEventClassifier(nil)
	require.NoError(t, err)
	abis := fakeABIs{
		nftContract: {{Type: "function", Name: "owner_of"}},
		erc20Contract: {
			{Type: "function", Name: "balance_of"},
			{Type: "function", Name: "transfer"},
		},
	}
	return Pipeline{
		Classifier: classifier,
		Decoder:    token.NewTransferDecoder(token.DecoderConfig{}),
		Contracts:  token.NewContractClassifier(abis, token.NewNotAMatchCache(), token.DefaultRequirements(), nil),
		Reconciler: ledger.NewReconciler(ledger.Policy{}, nil),
	}
}

func felts(values ...uint64) []model.Felt {
	out := make([]model.Felt, len(values))
	for i, v := range values {
		out[i] = model.FeltFromUint64(v)
	}
	return out
}

func words(parts ...[]model.Felt) []model.Felt {
	var out []model.Felt
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func ownershipEvent(from, to model.Felt, id uint64) model.RawEvent {
	return model.RawEvent{
		FromAddress: nftContract,
		Keys:        []model.Felt{token.TransferKey},
		Data:        words([]model.Felt{from, to}, felts(id, 0)),
	}
}

func balanceEvent(from, to model.Felt, id, amount uint64) model.RawEvent {
	return model.RawEvent{
		FromAddress: multiContract,
		Keys:        []model.Felt{token.TransferSingleKey},
		Data:        words([]model.Felt{from, to}, felts(id, 0, amount, 0)),
	}
}

func block(number uint64, events ...model.RawEvent) model.Block {
	receipt := model.Receipt{TransactionHash: model.FeltFromUint64(number*100 + 1)}
	for i, ev := range events {
		ev.BlockNumber = number
		ev.TxHash = receipt.TransactionHash
		ev.EventIndex = i
		receipt.Events = append(receipt.Events, ev)
	}
	return model.Block{Number: number, Hash: model.FeltFromUint64(number + 0xb000), Receipts: []model.Receipt{receipt}}
}

func readOwner(t *testing.T, store storage.Store, contract model.Felt, id uint64) (model.Felt, bool) {
	t.Helper()
	ctx := context.Background()
	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback(ctx)
	owner, ok, err := uow.Owner(ctx, contract, model.NewWideUint(id))
	require.NoError(t, err)
	return owner, ok
}

func readBalance(t *testing.T, store storage.Store, contract model.Felt, id uint64, holder model.Felt) string {
	t.Helper()
	ctx := context.Background()
	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback(ctx)
	amount, err := uow.Balance(ctx, contract, model.NewWideUint(id), holder)
	require.NoError(t, err)
	return model.FormatWideUint(amount)
}

func TestRunRequiresInitializedCursor(t *testing.T) {
	store := newTestStore(t)
	runner := NewRunner(RunConfig{BatchSize: 10}, &fakeChain{latest: 5}, store, newTestPipeline(t), nil, nil, nil)

	err := runner.Run(context.Background())
	require.ErrorIs(t, err, model.ErrSyncNotInitialized)
}

func TestRunAppliesBlocksAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, NewSyncCursor(store).Seed(ctx, 9))

	chain := &fakeChain{
		latest: 12,
		blocks: map[uint64]model.Block{
			10: block(10,
				ownershipEvent(model.ZeroFelt, alice, 1),
				balanceEvent(model.ZeroFelt, alice, 7, 100),
			),
			11: block(11,
				ownershipEvent(alice, bob, 1),
				balanceEvent(alice, bob, 7, 40),
			),
		},
		errs: map[uint64]int{11: 1},
	}
	journalPath := filepath.Join(t.TempDir(), "journal.jsonl")
	journal := storage.NewJournal(journalPath)

	runner := NewRunner(RunConfig{BatchSize: 2, MaxRetries: 2, RetryBackoff: 1}, chain, store, newTestPipeline(t), journal, nil, nil)
	require.NoError(t, runner.Run(ctx))

	last, err := NewSyncCursor(store).Read(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(12), last)

	owner, ok := readOwner(t, store, nftContract, 1)
	require.True(t, ok)
	require.Equal(t, bob, owner)
	require.Equal(t, "60", readBalance(t, store, multiContract, 7, alice))
	require.Equal(t, "40", readBalance(t, store, multiContract, 7, bob))

	raw, err := os.ReadFile(journalPath)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(raw)), "\n"), 4)
}

func TestRunStopsAtConfiguredBlock(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, NewSyncCursor(store).Seed(ctx, 0))

	runner := NewRunner(RunConfig{ToBlock: 3, BatchSize: 10}, &fakeChain{latest: 50}, store, newTestPipeline(t), nil, nil, nil)
	require.NoError(t, runner.Run(ctx))

	last, err := NewSyncCursor(store).Read(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), last)
}

func TestProcessBlockUnderfundedTransferRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cursor := NewSyncCursor(store)
	require.NoError(t, cursor.Seed(ctx, 4))

	runner := NewRunner(RunConfig{BatchSize: 1}, &fakeChain{}, store, newTestPipeline(t), nil, nil, nil)
	require.NoError(t, runner.ProcessBlock(ctx, block(5, balanceEvent(model.ZeroFelt, alice, 7, 10))))

	err := runner.ProcessBlock(ctx, block(6,
		ownershipEvent(model.ZeroFelt, bob, 2),
		balanceEvent(alice, bob, 7, 11),
	))
	require.ErrorIs(t, err, model.ErrState)

	last, err := cursor.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(5), last)
	require.Equal(t, "10", readBalance(t, store, multiContract, 7, alice))
	_, ok := readOwner(t, store, nftContract, 2)
	require.False(t, ok)
}

func TestProcessBlockDecodeErrorPersistsNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cursor := NewSyncCursor(store)
	require.NoError(t, cursor.Seed(ctx, 4))

	malformed := balanceEvent(model.ZeroFelt, alice, 7, 10)
	malformed.Data = malformed.Data[:5]

	runner := NewRunner(RunConfig{BatchSize: 1}, &fakeChain{}, store, newTestPipeline(t), nil, nil, nil)
	err := runner.ProcessBlock(ctx, block(5, ownershipEvent(model.ZeroFelt, alice, 1), malformed))

	var decodeErr *model.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, model.KindBalance, decodeErr.Kind)

	last, err := cursor.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(4), last)
	_, ok := readOwner(t, store, nftContract, 1)
	require.False(t, ok)
}

func TestProcessBlockCursorFailureRollsBackState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, NewSyncCursor(store).Seed(ctx, 4))

	runner := NewRunner(RunConfig{BatchSize: 1}, &fakeChain{}, failingCursorStore{Store: store}, newTestPipeline(t), nil, nil, nil)
	err := runner.ProcessBlock(ctx, block(5, ownershipEvent(model.ZeroFelt, alice, 1)))
	require.Error(t, err)

	last, err := NewSyncCursor(store).Read(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(4), last)
	_, ok := readOwner(t, store, nftContract, 1)
	require.False(t, ok)
}

func TestProcessBlockSkipsUnrecognizedAndForeignContracts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, NewSyncCursor(store).Seed(ctx, 0))

	approval := model.RawEvent{
		FromAddress: nftContract,
		Keys:        []model.Felt{token.SelectorFromName("Approval")},
		Data:        felts(1, 2, 3),
	}
	fungible := ownershipEvent(alice, bob, 500)
	fungible.FromAddress = erc20Contract

	pipeline := newTestPipeline(t)
	runner := NewRunner(RunConfig{BatchSize: 1}, &fakeChain{}, store, pipeline, nil, nil, nil)
	require.NoError(t, runner.ProcessBlock(ctx, block(1, approval, fungible)))

	last, err := NewSyncCursor(store).Read(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), last)
	_, ok := readOwner(t, store, erc20Contract, 500)
	require.False(t, ok)
	require.True(t, pipeline.Contracts.Cache().Contains(model.KindOwnership, erc20Contract))
}

func TestProcessBlockSkipsRevertedReceipts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, NewSyncCursor(store).Seed(ctx, 0))

	b := block(1, ownershipEvent(model.ZeroFelt, alice, 9))
	b.Receipts[0].Reverted = true

	runner := NewRunner(RunConfig{BatchSize: 1}, &fakeChain{}, store, newTestPipeline(t), nil, nil, nil)
	require.NoError(t, runner.ProcessBlock(ctx, b))

	_, ok := readOwner(t, store, nftContract, 9)
	require.False(t, ok)
}
