package proposal

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/walletmesh/quorumd/coordinator/config"
	"github.com/walletmesh/quorumd/coordinator/modules/keylock"
	"github.com/walletmesh/quorumd/coordinator/modules/logger"
	proposal_repo "github.com/walletmesh/quorumd/coordinator/repositories/proposal"
	"github.com/walletmesh/quorumd/coordinator/services/notifier"
	"github.com/walletmesh/quorumd/coordinator/services/registry"
	"github.com/walletmesh/quorumd/coordinator/types"
)

const defaultListLimit = 50

type CreateParams struct {
	Creator            string
	To                 string
	Value              *big.Int
	Data               []byte
	RequiredSignatures int
	ValidatorIDs       []string
	TTL                time.Duration
	Metadata           types.ProposalMetadata
}

type ListFilter struct {
	Status types.ProposalStatus
	Limit  int
	Offset int
}

// ProposalService owns proposal records and their lifecycle. It is the
// source of truth for status; signature appends happen in the signing
// service, execution transitions in the executor, both inside the same
// per-proposal critical section this service's mutators use.
type ProposalService interface {
	Create(params CreateParams) (*types.Proposal, error)
	Get(proposalID string) (*types.Proposal, error)
	ListForUser(userID string, filter ListFilter) ([]*types.Proposal, error)
	ListPendingForUser(userID string) ([]*types.Proposal, error)
	Cancel(proposalID, requestedBy string) (*types.Proposal, error)
	// ExpireLocked transitions a pending proposal to expired. The caller
	// must hold the proposal's critical section.
	ExpireLocked(p *types.Proposal) error
}

type BaseProposalService struct {
	repo     proposal_repo.ProposalRepo
	registry registry.RegistryService
	notifier notifier.NotifierService
	locks    *keylock.KeyLock
	cfg      *config.SigningConfig
	logger   logger.Logger
}

func NewProposalService(
	repo proposal_repo.ProposalRepo,
	reg registry.RegistryService,
	nt notifier.NotifierService,
	locks *keylock.KeyLock,
	cfg *config.SigningConfig,
) *BaseProposalService {
	return &BaseProposalService{
		repo:     repo,
		registry: reg,
		notifier: nt,
		locks:    locks,
		cfg:      cfg,
		logger:   logger.NewLogger("proposal"),
	}
}

func (s *BaseProposalService) Create(params CreateParams) (*types.Proposal, error) {
	if params.To == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "destination address is required")
	}
	if len(params.ValidatorIDs) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "at least one eligible validator is required")
	}
	if params.RequiredSignatures < 1 {
		return nil, types.NewError(types.ErrInvalidRequest, "required signatures must be positive")
	}
	if params.RequiredSignatures > len(params.ValidatorIDs) {
		return nil, types.NewErrorf(types.ErrInvalidRequest,
			"required signatures %d exceeds eligible validator count %d",
			params.RequiredSignatures, len(params.ValidatorIDs))
	}

	owners := make(map[string]struct{})
	for _, validatorID := range params.ValidatorIDs {
		v, err := s.registry.Get(validatorID)
		if err != nil {
			return nil, err
		}
		if !v.IsActive {
			return nil, types.NewErrorf(types.ErrInvalidRequest,
				"validator %s is not active", validatorID)
		}
		owners[v.Owner] = struct{}{}
	}

	required, err := s.registry.RequiresMultiSig(params.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to check multi-sig requirement: %w", err)
	}
	if required {
		policy, err := s.registry.GetPolicy()
		if err != nil {
			return nil, fmt.Errorf("failed to GetPolicy: %w", err)
		}
		if params.RequiredSignatures < policy.Threshold {
			return nil, types.NewErrorf(types.ErrInvalidRequest,
				"this transaction requires at least %d signatures by policy", policy.Threshold)
		}
	}

	ttl := params.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	now := time.Now()
	value := params.Value
	if value == nil {
		value = big.NewInt(0)
	}
	proposal := &types.Proposal{
		ID:                 uuid.New().String(),
		Creator:            params.Creator,
		To:                 params.To,
		Value:              value,
		Data:               params.Data,
		RequiredSignatures: params.RequiredSignatures,
		Signatures:         []types.ProposalSignature{},
		ValidatorIDs:       params.ValidatorIDs,
		Status:             types.StatusPending,
		CreatedAt:          now,
		ExpiresAt:          now.Add(ttl),
		Metadata:           params.Metadata,
	}

	if err := s.repo.Save(proposal); err != nil {
		return nil, fmt.Errorf("failed to save proposal: %w", err)
	}
	s.logger.Log("proposal %s created by %s (to=%s, required=%d)",
		proposal.ID, proposal.Creator, proposal.To, proposal.RequiredSignatures)

	recipients := make([]string, 0, len(owners))
	for owner := range owners {
		recipients = append(recipients, owner)
	}
	sort.Strings(recipients)

	s.notifier.Publish(&types.NotificationMessage{
		Type:    types.NotificationNewProposal,
		Title:   "New transaction proposal",
		Message: fmt.Sprintf("%s proposed a transaction to %s", proposal.Creator, proposal.To),
		Payload: types.NewProposalPayload{
			ProposalID:         proposal.ID,
			Creator:            proposal.Creator,
			To:                 proposal.To,
			Value:              proposal.Value.String(),
			RequiredSignatures: proposal.RequiredSignatures,
			ExpiresAt:          proposal.ExpiresAt,
		},
		Recipients: recipients,
	})

	return proposal, nil
}

func (s *BaseProposalService) Get(proposalID string) (*types.Proposal, error) {
	return s.repo.Get(proposalID)
}

// ListForUser returns proposals the user created or is an eligible signer
// for, newest first.
func (s *BaseProposalService) ListForUser(userID string, filter ListFilter) ([]*types.Proposal, error) {
	proposals, err := s.repo.All()
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	ownedValidators := make(map[string]struct{})
	active, err := s.registry.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to ListActive: %w", err)
	}
	for _, v := range active {
		if v.Owner == userID {
			ownedValidators[v.ID] = struct{}{}
		}
	}

	matched := make([]*types.Proposal, 0, len(proposals))
	for _, p := range proposals {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if p.Creator == userID {
			matched = append(matched, p)
			continue
		}
		for _, validatorID := range p.ValidatorIDs {
			if _, ok := ownedValidators[validatorID]; ok {
				matched = append(matched, p)
				break
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], nil
}

func (s *BaseProposalService) ListPendingForUser(userID string) ([]*types.Proposal, error) {
	return s.ListForUser(userID, ListFilter{Status: types.StatusPending, Limit: defaultListLimit})
}

// Cancel transitions a still-pending proposal to cancelled. Creator-only.
// It runs inside the proposal's critical section, so it fails cleanly if
// execution completed concurrently.
func (s *BaseProposalService) Cancel(proposalID, requestedBy string) (*types.Proposal, error) {
	unlock := s.locks.Lock(proposalID)
	defer unlock()

	p, err := s.repo.Get(proposalID)
	if err != nil {
		return nil, err
	}

	if p.Creator != requestedBy {
		return nil, types.NewError(types.ErrUnauthorized, "only the creator may cancel a proposal")
	}
	if p.Status != types.StatusPending {
		return nil, types.NewErrorf(types.ErrAlreadyResolved,
			"proposal is already %s", p.Status)
	}

	p.Status = types.StatusCancelled
	if err := s.repo.Save(p); err != nil {
		return nil, fmt.Errorf("failed to save proposal: %w", err)
	}
	s.logger.Log("proposal %s cancelled by %s", p.ID, requestedBy)

	s.notifier.Publish(&types.NotificationMessage{
		Type:    types.NotificationProposalCancelled,
		Title:   "Proposal cancelled",
		Message: fmt.Sprintf("Proposal %s was cancelled by its creator", p.ID),
		Payload: types.ProposalCancelledPayload{
			ProposalID:  p.ID,
			CancelledBy: requestedBy,
		},
		Recipients: registry.ProposalRecipients(s.registry, p),
	})

	return p, nil
}

func (s *BaseProposalService) ExpireLocked(p *types.Proposal) error {
	if p.Status != types.StatusPending {
		return types.NewErrorf(types.ErrAlreadyResolved, "proposal is already %s", p.Status)
	}

	p.Status = types.StatusExpired
	if err := s.repo.Save(p); err != nil {
		return fmt.Errorf("failed to save proposal: %w", err)
	}
	s.logger.Log("proposal %s expired (deadline %s)", p.ID, p.ExpiresAt)

	s.notifier.Publish(&types.NotificationMessage{
		Type:    types.NotificationProposalExpired,
		Title:   "Proposal expired",
		Message: fmt.Sprintf("Proposal %s expired before reaching quorum", p.ID),
		Payload: types.ProposalExpiredPayload{
			ProposalID: p.ID,
			ExpiredAt:  time.Now(),
		},
		Recipients: registry.ProposalRecipients(s.registry, p),
	})

	return nil
}
