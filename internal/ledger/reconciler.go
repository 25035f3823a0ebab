package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tokenSync/internal/model"
	"tokenSync/internal/storage"
)

// Policy holds reconciliation assumptions that are configurable.
type Policy struct {
	// VerifyPreviousOwner rejects an ownership transfer whose from address
	// differs from the recorded owner. Off by default: ownership is
	// overwritten unconditionally.
	VerifyPreviousOwner bool
}

// Reconciler applies decoded transfer records to persisted state inside a unit of work.
type Reconciler struct {
	policy Policy
	logger *zap.Logger
}

func NewReconciler(policy Policy, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{policy: policy, logger: logger}
}

// Apply mutates state for one record. On error the caller must roll back the unit of work.
func (r *Reconciler) Apply(ctx context.Context, uow storage.UnitOfWork, record model.TransferRecord) error {
	switch rec := record.(type) {
	case model.OwnershipTransfer:
		return r.applyOwnership(ctx, uow, rec)
	case model.BalanceTransfer:
		if err := r.touch(ctx, uow, rec.Contract, model.KindBalance, rec.TokenID, rec.BlockNumber); err != nil {
			return err
		}
		return r.applyBalance(ctx, uow, rec)
	case model.BatchBalanceTransfer:
		for _, transfer := range rec.Transfers() {
			if err := r.touch(ctx, uow, transfer.Contract, model.KindBatchBalance, transfer.TokenID, transfer.BlockNumber); err != nil {
				return err
			}
			if err := r.applyBalance(ctx, uow, transfer); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported transfer record %T", record)
	}
}

func (r *Reconciler) applyOwnership(ctx context.Context, uow storage.UnitOfWork, rec model.OwnershipTransfer) error {
	if r.policy.VerifyPreviousOwner {
		current, ok, err := uow.Owner(ctx, rec.Contract, rec.TokenID)
		if err != nil {
			return fmt.Errorf("read owner: %w", err)
		}
		expected := model.ZeroFelt
		if ok {
			expected = current
		}
		if expected != rec.From {
			return &model.StateError{
				Contract: rec.Contract,
				TokenID:  rec.TokenID,
				Account:  rec.From,
				Reason:   fmt.Sprintf("recorded owner is %s", expected.Hex()),
			}
		}
	}

	if err := r.touch(ctx, uow, rec.Contract, model.KindOwnership, rec.TokenID, rec.BlockNumber); err != nil {
		return err
	}
	if err := uow.SetOwner(ctx, rec.Contract, rec.TokenID, rec.To, rec.BlockNumber); err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	return nil
}

func (r *Reconciler) applyBalance(ctx context.Context, uow storage.UnitOfWork, rec model.BalanceTransfer) error {
	if !rec.From.IsZero() {
		balance, err := uow.Balance(ctx, rec.Contract, rec.TokenID, rec.From)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		if balance.Lt(rec.Amount) {
			return &model.StateError{
				Contract: rec.Contract,
				TokenID:  rec.TokenID,
				Account:  rec.From,
				Reason: fmt.Sprintf("negative balance: have %s, debit %s",
					model.FormatWideUint(balance), model.FormatWideUint(rec.Amount)),
			}
		}
		balance.Sub(balance, rec.Amount)
		if err := uow.SetBalance(ctx, rec.Contract, rec.TokenID, rec.From, balance, rec.BlockNumber); err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
	}

	if !rec.To.IsZero() {
		balance, err := uow.Balance(ctx, rec.Contract, rec.TokenID, rec.To)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		if _, overflow := balance.AddOverflow(balance, rec.Amount); overflow {
			return &model.StateError{
				Contract: rec.Contract,
				TokenID:  rec.TokenID,
				Account:  rec.To,
				Reason:   "balance overflows 256 bits",
			}
		}
		if err := uow.SetBalance(ctx, rec.Contract, rec.TokenID, rec.To, balance, rec.BlockNumber); err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}
	}
	return nil
}

func (r *Reconciler) touch(ctx context.Context, uow storage.UnitOfWork, contract model.Felt, kind model.TransferKind, tokenID *model.WideUint, blockNumber uint64) error {
	if err := uow.TouchContract(ctx, contract, kind.Standard(), blockNumber); err != nil {
		return fmt.Errorf("contract metadata: %w", err)
	}
	if err := uow.TouchToken(ctx, contract, tokenID, blockNumber); err != nil {
		return fmt.Errorf("token metadata: %w", err)
	}
	return nil
}
