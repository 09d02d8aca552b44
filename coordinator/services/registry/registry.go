package registry

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"lukechampine.com/frand"

	"github.com/walletmesh/quorumd/coordinator/modules/logger"
	"github.com/walletmesh/quorumd/coordinator/repositories/validator"
	"github.com/walletmesh/quorumd/coordinator/types"
)

const enrollmentChallengeLen = 32

// RegistryService owns the set of authentication factors for the account
// and the signing policy that decides when multi-sig is mandatory.
type RegistryService interface {
	ListActive() ([]*types.Validator, error)
	Get(validatorID string) (*types.Validator, error)
	Add(v *types.Validator) (*types.Validator, string, error)
	Remove(validatorID string) error
	TouchLastUsed(validatorID string, at time.Time) error

	GetPolicy() (*types.SigningPolicy, error)
	SetPolicy(policy *types.SigningPolicy) error
	RequiresMultiSig(value *big.Int) (bool, error)
}

type BaseRegistryService struct {
	// mu serializes registry mutations: the threshold invariant is checked
	// against the active-validator count, so check and write must not
	// interleave.
	mu     sync.Mutex
	repo   validator.ValidatorRepo
	logger logger.Logger
}

func NewRegistryService(repo validator.ValidatorRepo) *BaseRegistryService {
	return &BaseRegistryService{
		repo:   repo,
		logger: logger.NewLogger("registry"),
	}
}

func (s *BaseRegistryService) ListActive() ([]*types.Validator, error) {
	validators, err := s.repo.GetValidators()
	if err != nil {
		return nil, fmt.Errorf("failed to GetValidators: %w", err)
	}

	active := make([]*types.Validator, 0, len(validators))
	for _, v := range validators {
		if v.IsActive {
			active = append(active, v)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	return active, nil
}

func (s *BaseRegistryService) Get(validatorID string) (*types.Validator, error) {
	return s.repo.GetValidator(validatorID)
}

// Add registers a new authentication factor and returns it along with a
// one-time enrollment challenge the device must answer during its signing
// ceremony. Duplicate identifiers are rejected.
func (s *BaseRegistryService) Add(v *types.Validator) (*types.Validator, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	validators, err := s.repo.GetValidators()
	if err != nil {
		return nil, "", fmt.Errorf("failed to GetValidators: %w", err)
	}
	if _, ok := validators[v.ID]; ok {
		return nil, "", types.NewErrorf(types.ErrInvalidRequest, "validator %s already exists", v.ID)
	}

	v.IsActive = true
	v.CreatedAt = time.Now()

	if err := s.repo.SaveValidator(v); err != nil {
		return nil, "", fmt.Errorf("failed to SaveValidator: %w", err)
	}

	challenge := hex.EncodeToString(frand.Bytes(enrollmentChallengeLen))
	s.logger.Log("validator %s (%s) registered for owner %s", v.ID, v.Kind, v.Owner)

	return v, challenge, nil
}

// Remove deactivates a validator. It refuses to drop the registry below one
// active validator and shrinks the policy threshold when the remaining
// active count no longer covers it.
func (s *BaseRegistryService) Remove(validatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.repo.GetValidator(validatorID)
	if err != nil {
		return err
	}

	active, err := s.ListActive()
	if err != nil {
		return err
	}
	wasActive := v.IsActive
	if wasActive && len(active) <= 1 {
		return types.NewError(types.ErrLastValidatorRemoval,
			"cannot remove the last active validator")
	}

	v.IsActive = false
	if err := s.repo.SaveValidator(v); err != nil {
		return fmt.Errorf("failed to SaveValidator: %w", err)
	}

	remaining := len(active)
	if wasActive {
		remaining--
	}

	policy, err := s.repo.GetPolicy()
	if err != nil {
		return fmt.Errorf("failed to GetPolicy: %w", err)
	}
	if policy.Threshold > remaining {
		policy.Threshold = remaining
		if err := s.repo.SavePolicy(policy); err != nil {
			return fmt.Errorf("failed to SavePolicy: %w", err)
		}
		s.logger.Log("threshold shrunk to %d after removing validator %s", remaining, validatorID)
	}

	return nil
}

func (s *BaseRegistryService) TouchLastUsed(validatorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.repo.GetValidator(validatorID)
	if err != nil {
		return err
	}
	v.LastUsedAt = at

	if err := s.repo.SaveValidator(v); err != nil {
		return fmt.Errorf("failed to SaveValidator: %w", err)
	}
	return nil
}

func (s *BaseRegistryService) GetPolicy() (*types.SigningPolicy, error) {
	return s.repo.GetPolicy()
}

// SetPolicy re-validates 1 <= threshold <= |active validators| against the
// current registry before persisting; an invalid update leaves the stored
// policy unchanged.
func (s *BaseRegistryService) SetPolicy(policy *types.SigningPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.ListActive()
	if err != nil {
		return err
	}

	if policy.Threshold < 1 || policy.Threshold > len(active) {
		return types.NewErrorf(types.ErrInvalidThreshold,
			"threshold %d out of range [1, %d]", policy.Threshold, len(active))
	}

	if err := s.repo.SavePolicy(policy); err != nil {
		return fmt.Errorf("failed to SavePolicy: %w", err)
	}
	return nil
}

// ProposalRecipients resolves the owning users behind a proposal's eligible
// validators, plus the creator, sorted so fanout and history order stay
// deterministic. Validators that no longer resolve are skipped.
func ProposalRecipients(reg RegistryService, p *types.Proposal) []string {
	owners := map[string]struct{}{p.Creator: {}}
	for _, validatorID := range p.ValidatorIDs {
		v, err := reg.Get(validatorID)
		if err != nil {
			continue
		}
		owners[v.Owner] = struct{}{}
	}

	recipients := make([]string, 0, len(owners))
	for owner := range owners {
		recipients = append(recipients, owner)
	}
	sort.Strings(recipients)
	return recipients
}

// RequiresMultiSig reports whether the given transaction value forces a
// multi-signature flow: either the policy demands it outright, or the value
// reaches the high-value override.
func (s *BaseRegistryService) RequiresMultiSig(value *big.Int) (bool, error) {
	policy, err := s.repo.GetPolicy()
	if err != nil {
		return false, fmt.Errorf("failed to GetPolicy: %w", err)
	}

	if policy.RequireMultiSig {
		return true, nil
	}
	if policy.HighValueThreshold != nil && value != nil &&
		value.Cmp(policy.HighValueThreshold) >= 0 {
		return true, nil
	}
	return false, nil
}
