package executor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/walletmesh/quorumd/broadcaster"
	"github.com/walletmesh/quorumd/coordinator/config"
	"github.com/walletmesh/quorumd/coordinator/modules/keylock"
	"github.com/walletmesh/quorumd/coordinator/modules/logger"
	proposal_repo "github.com/walletmesh/quorumd/coordinator/repositories/proposal"
	"github.com/walletmesh/quorumd/coordinator/services/notifier"
	"github.com/walletmesh/quorumd/coordinator/services/registry"
	"github.com/walletmesh/quorumd/coordinator/types"
	"github.com/walletmesh/quorumd/verifier"
)

// Intrinsic gas costs, matching the execution layer's calldata pricing,
// plus a flat per-signature verification surcharge.
const (
	baseGas        = 21000
	dataZeroGas    = 4
	dataNonZeroGas = 16
	perSigGas      = 8000
)

type ExecutionResult struct {
	Executed        bool   `json:"executed"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}

type CanExecuteResult struct {
	CanExecute bool   `json:"can_execute"`
	Reason     string `json:"reason,omitempty"`
}

type GasEstimate struct {
	GasLimit  uint64   `json:"gas_limit"`
	GasPrice  *big.Int `json:"gas_price"`
	TotalCost *big.Int `json:"total_cost"`
}

// ExecutorService decides when a proposal has quorum, aggregates the
// collected signatures into one executable payload and hands it to the
// broadcaster exactly once.
type ExecutorService interface {
	TryExecute(ctx context.Context, proposalID string) (*ExecutionResult, error)
	// TryExecuteLocked is the same check for callers that already hold the
	// proposal's critical section (the signing service invokes it right
	// after appending a signature).
	TryExecuteLocked(ctx context.Context, p *types.Proposal) (*ExecutionResult, error)
	CanExecute(proposalID string) (*CanExecuteResult, error)
	EstimateGas(proposalID string) (*GasEstimate, error)
	Aggregate(p *types.Proposal) (*types.AggregatedSignature, error)
}

type BaseExecutorService struct {
	repo        proposal_repo.ProposalRepo
	registry    registry.RegistryService
	notifier    notifier.NotifierService
	broadcaster broadcaster.Broadcaster
	aggregator  verifier.Aggregator
	locks       *keylock.KeyLock
	gasPrice    *big.Int
	freshness   time.Duration
	logger      logger.Logger
}

func NewExecutorService(
	repo proposal_repo.ProposalRepo,
	reg registry.RegistryService,
	nt notifier.NotifierService,
	bc broadcaster.Broadcaster,
	agg verifier.Aggregator,
	locks *keylock.KeyLock,
	gasPrice *big.Int,
	signingCfg *config.SigningConfig,
) *BaseExecutorService {
	if gasPrice == nil {
		gasPrice = big.NewInt(1e9)
	}
	freshness := 5 * time.Minute
	if signingCfg != nil && signingCfg.FreshnessWindow > 0 {
		freshness = signingCfg.FreshnessWindow
	}
	return &BaseExecutorService{
		repo:        repo,
		registry:    reg,
		notifier:    nt,
		broadcaster: bc,
		aggregator:  agg,
		locks:       locks,
		gasPrice:    gasPrice,
		freshness:   freshness,
		logger:      logger.NewLogger("executor"),
	}
}

func (s *BaseExecutorService) TryExecute(ctx context.Context, proposalID string) (*ExecutionResult, error) {
	unlock := s.locks.Lock(proposalID)
	defer unlock()

	p, err := s.repo.Get(proposalID)
	if err != nil {
		return nil, err
	}

	return s.TryExecuteLocked(ctx, p)
}

// TryExecuteLocked is idempotent under concurrent invocation: the caller
// holds the proposal's section, so a second racer enters only after the
// first finished and sees a non-pending status, which is a no-op.
func (s *BaseExecutorService) TryExecuteLocked(ctx context.Context, p *types.Proposal) (*ExecutionResult, error) {
	if p.Status != types.StatusPending {
		return &ExecutionResult{Executed: false}, nil
	}
	if p.CollectedSignatures() < p.RequiredSignatures {
		return &ExecutionResult{Executed: false}, nil
	}

	aggregated, err := s.Aggregate(p)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate signatures: %w", err)
	}

	// Unreachable if the collector's preconditions held; reaching it means
	// the proposal record is inconsistent.
	if aggregated.TotalWeight < p.RequiredSignatures {
		return nil, types.NewErrorf(types.ErrInsufficientWeight,
			"aggregate weight %d below required %d", aggregated.TotalWeight, p.RequiredSignatures)
	}

	txHash, err := s.broadcaster.Execute(ctx, p.To, p.Value, p.Data, aggregated)
	if err != nil {
		p.Status = types.StatusFailed
		p.Metadata.FailureReason = err.Error()
		if saveErr := s.repo.Save(p); saveErr != nil {
			return nil, fmt.Errorf("failed to record execution failure: %v (execute error: %w)", saveErr, err)
		}
		s.logger.Log("proposal %s failed to execute: %v", p.ID, err)
		return &ExecutionResult{Executed: false},
			types.NewErrorf(types.ErrExecutionFailed, "broadcast failed: %v", err)
	}

	now := time.Now()
	p.Status = types.StatusExecuted
	p.ExecutedAt = &now
	p.TransactionHash = txHash
	if err := s.repo.Save(p); err != nil {
		return nil, fmt.Errorf("failed to save executed proposal: %w", err)
	}
	s.logger.Log("proposal %s executed, tx %s", p.ID, txHash)

	s.notifier.Publish(&types.NotificationMessage{
		Type:    types.NotificationProposalExecuted,
		Title:   "Proposal executed",
		Message: fmt.Sprintf("Proposal %s reached quorum and was broadcast", p.ID),
		Payload: types.ProposalExecutedPayload{
			ProposalID:      p.ID,
			TransactionHash: txHash,
			ExecutedAt:      now,
		},
		Recipients: registry.ProposalRecipients(s.registry, p),
	})

	return &ExecutionResult{Executed: true, TransactionHash: txHash}, nil
}

// Aggregate builds the executable payload: every collected signature with
// the signer's identity and a uniform weight of 1. When every signer is a
// hardware (BLS) validator the individual signatures are additionally
// merged into one combined blob.
func (s *BaseExecutorService) Aggregate(p *types.Proposal) (*types.AggregatedSignature, error) {
	entries := make([]types.AggregatedSignatureEntry, 0, len(p.Signatures))
	blsSignatures := make([][]byte, 0, len(p.Signatures))
	allHardware := len(p.Signatures) > 0

	for _, sig := range p.Signatures {
		entries = append(entries, types.AggregatedSignatureEntry{
			ValidatorID:   sig.ValidatorID,
			SignerAddress: sig.SignerAddress,
			SignerType:    sig.SignerType,
			Weight:        1,
			Signature:     sig.Signature,
		})
		if sig.SignerType == types.KindHardware {
			blsSignatures = append(blsSignatures, sig.Signature)
		} else {
			allHardware = false
		}
	}

	aggregated := &types.AggregatedSignature{
		ProposalID:  p.ID,
		PayloadHash: p.CanonicalPayload(),
		Entries:     entries,
		TotalWeight: len(entries),
	}

	if allHardware && s.aggregator != nil {
		combined, err := s.aggregator.AggregateBLS(blsSignatures)
		if err != nil {
			return nil, fmt.Errorf("failed to combine BLS signatures: %w", err)
		}
		aggregated.Combined = combined
	}

	return aggregated, nil
}

// CanExecute applies the signing preconditions without mutating state, for
// pre-flight checks before the final signature is requested from a user.
func (s *BaseExecutorService) CanExecute(proposalID string) (*CanExecuteResult, error) {
	p, err := s.repo.Get(proposalID)
	if err != nil {
		return nil, err
	}

	if p.Status != types.StatusPending {
		return &CanExecuteResult{Reason: fmt.Sprintf("proposal is %s", p.Status)}, nil
	}
	now := time.Now()
	if p.IsOverdue(now) {
		return &CanExecuteResult{Reason: "proposal is past its deadline"}, nil
	}

	seen := make(map[string]struct{}, len(p.Signatures))
	for _, sig := range p.Signatures {
		if _, ok := seen[sig.ValidatorID]; ok {
			return &CanExecuteResult{
				Reason: fmt.Sprintf("duplicate signature from validator %s", sig.ValidatorID),
			}, nil
		}
		seen[sig.ValidatorID] = struct{}{}

		if !p.IsEligible(sig.ValidatorID) {
			return &CanExecuteResult{
				Reason: fmt.Sprintf("validator %s is not eligible", sig.ValidatorID),
			}, nil
		}
		v, err := s.registry.Get(sig.ValidatorID)
		if err != nil {
			return &CanExecuteResult{
				Reason: fmt.Sprintf("validator %s is unknown", sig.ValidatorID),
			}, nil
		}
		if !v.IsActive {
			return &CanExecuteResult{
				Reason: fmt.Sprintf("validator %s is inactive", sig.ValidatorID),
			}, nil
		}
		if now.Sub(sig.SignedAt) > s.freshness {
			return &CanExecuteResult{
				Reason: fmt.Sprintf("signature from validator %s is stale", sig.ValidatorID),
			}, nil
		}
	}

	if p.CollectedSignatures() < p.RequiredSignatures {
		return &CanExecuteResult{
			Reason: fmt.Sprintf("%d of %d signatures collected",
				p.CollectedSignatures(), p.RequiredSignatures),
		}, nil
	}

	return &CanExecuteResult{CanExecute: true}, nil
}

func (s *BaseExecutorService) EstimateGas(proposalID string) (*GasEstimate, error) {
	p, err := s.repo.Get(proposalID)
	if err != nil {
		return nil, err
	}

	gasLimit := uint64(baseGas)
	for _, b := range p.Data {
		if b == 0 {
			gasLimit += dataZeroGas
		} else {
			gasLimit += dataNonZeroGas
		}
	}
	gasLimit += uint64(len(p.Signatures)) * perSigGas

	totalCost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), s.gasPrice)

	return &GasEstimate{
		GasLimit:  gasLimit,
		GasPrice:  new(big.Int).Set(s.gasPrice),
		TotalCost: totalCost,
	}, nil
}
