package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/walletmesh/quorumd/coordinator/config"
	"github.com/walletmesh/quorumd/coordinator/modules/keylock"
	"github.com/walletmesh/quorumd/coordinator/modules/logger"
	proposal_repo "github.com/walletmesh/quorumd/coordinator/repositories/proposal"
	"github.com/walletmesh/quorumd/coordinator/services/executor"
	"github.com/walletmesh/quorumd/coordinator/services/notifier"
	proposal_service "github.com/walletmesh/quorumd/coordinator/services/proposal"
	"github.com/walletmesh/quorumd/coordinator/services/registry"
	"github.com/walletmesh/quorumd/coordinator/types"
	"github.com/walletmesh/quorumd/verifier"
)

type SignRequest struct {
	ProposalID  string
	ValidatorID string
	Signature   []byte
	SignedAt    time.Time
	Device      *types.DeviceInfo
}

type SignResult struct {
	Proposal        *types.Proposal `json:"proposal"`
	Executed        bool            `json:"executed"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
}

// SigningService collects validator signatures over a proposal's canonical
// payload. Sign is the hot path: all checks, the append and the quorum
// trigger run inside one per-proposal critical section.
type SigningService interface {
	Sign(ctx context.Context, req SignRequest) (*SignResult, error)
}

type BaseSigningService struct {
	repo      proposal_repo.ProposalRepo
	registry  registry.RegistryService
	proposals proposal_service.ProposalService
	executor  executor.ExecutorService
	notifier  notifier.NotifierService
	verifier  verifier.Verifier
	locks     *keylock.KeyLock
	cfg       *config.SigningConfig
	logger    logger.Logger
}

func NewSigningService(
	repo proposal_repo.ProposalRepo,
	reg registry.RegistryService,
	proposals proposal_service.ProposalService,
	exec executor.ExecutorService,
	nt notifier.NotifierService,
	vf verifier.Verifier,
	locks *keylock.KeyLock,
	cfg *config.SigningConfig,
) *BaseSigningService {
	return &BaseSigningService{
		repo:      repo,
		registry:  reg,
		proposals: proposals,
		executor:  exec,
		notifier:  nt,
		verifier:  vf,
		locks:     locks,
		cfg:       cfg,
		logger:    logger.NewLogger("signing"),
	}
}

// Sign validates and appends one signature, then checks quorum. Check order
// is fixed: status before expiry, expiry before eligibility, eligibility
// before duplicates, duplicates before cryptography, so a caller always
// learns the most fundamental defect first.
func (s *BaseSigningService) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	unlock := s.locks.Lock(req.ProposalID)
	defer unlock()

	p, err := s.repo.Get(req.ProposalID)
	if err != nil {
		return nil, err
	}

	if p.Status != types.StatusPending {
		return nil, types.NewErrorf(types.ErrNotPending, "proposal is %s", p.Status)
	}

	now := time.Now()
	if p.IsOverdue(now) {
		// Lazy expiry: the sweeper has not reached this proposal yet, so
		// transition it here, inside the section we already hold.
		if err := s.proposals.ExpireLocked(p); err != nil {
			return nil, fmt.Errorf("failed to expire proposal: %w", err)
		}
		return nil, types.NewError(types.ErrExpired, "proposal expired before the signature arrived")
	}

	if !p.IsEligible(req.ValidatorID) {
		return nil, types.NewErrorf(types.ErrUnauthorized,
			"validator %s is not eligible to sign this proposal", req.ValidatorID)
	}

	v, err := s.registry.Get(req.ValidatorID)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return nil, types.NewErrorf(types.ErrUnauthorized,
			"validator %s has been removed", req.ValidatorID)
	}

	if p.HasSignatureFrom(req.ValidatorID) {
		return nil, types.NewErrorf(types.ErrAlreadySigned,
			"validator %s already signed this proposal", req.ValidatorID)
	}

	ok, err := s.verifier.Verify(p.CanonicalPayload(), req.Signature, v)
	if err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}
	if !ok {
		return nil, types.NewError(types.ErrInvalidSignature,
			"signature does not verify against the validator's public key")
	}

	signedAt := req.SignedAt
	if signedAt.IsZero() {
		signedAt = now
	}
	if now.Sub(signedAt) > s.cfg.FreshnessWindow || signedAt.Sub(now) > s.cfg.FreshnessWindow {
		return nil, types.NewErrorf(types.ErrStaleSignature,
			"signature timestamp %s outside the %s freshness window", signedAt, s.cfg.FreshnessWindow)
	}

	p.Signatures = append(p.Signatures, types.ProposalSignature{
		ValidatorID:   req.ValidatorID,
		Signature:     req.Signature,
		SignerType:    v.Kind,
		SignedAt:      signedAt,
		SignerAddress: v.Address(),
		Device:        req.Device,
	})
	if err := s.repo.Save(p); err != nil {
		return nil, fmt.Errorf("failed to save proposal: %w", err)
	}
	if err := s.registry.TouchLastUsed(req.ValidatorID, signedAt); err != nil {
		s.logger.Log("failed to touch last-used for validator %s: %v", req.ValidatorID, err)
	}
	s.logger.Log("proposal %s signed by validator %s (%d of %d)",
		p.ID, req.ValidatorID, p.CollectedSignatures(), p.RequiredSignatures)

	s.notifier.Publish(&types.NotificationMessage{
		Type:    types.NotificationSignatureAdded,
		Title:   "Signature added",
		Message: fmt.Sprintf("Proposal %s collected %d of %d signatures", p.ID, p.CollectedSignatures(), p.RequiredSignatures),
		Payload: types.SignatureAddedPayload{
			ProposalID:          p.ID,
			ValidatorID:         req.ValidatorID,
			CollectedSignatures: p.CollectedSignatures(),
			RemainingSignatures: p.RequiredSignatures - p.CollectedSignatures(),
		},
		Recipients: registry.ProposalRecipients(s.registry, p),
	})

	// Quorum check in the same section. The executor no-ops if this was not
	// the final signature.
	execResult, err := s.executor.TryExecuteLocked(ctx, p)
	if err != nil {
		// Execution failure resolves the proposal but the signature itself
		// was accepted; report the resolved proposal, not an error.
		if types.IsKind(err, types.ErrExecutionFailed) {
			return &SignResult{Proposal: p, Executed: false}, nil
		}
		return nil, err
	}

	return &SignResult{
		Proposal:        p,
		Executed:        execResult.Executed,
		TransactionHash: execResult.TransactionHash,
	}, nil
}
