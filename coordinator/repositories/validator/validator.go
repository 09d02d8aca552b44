package validator

import (
	"encoding/json"
	"fmt"

	"github.com/walletmesh/quorumd/coordinator/modules/state"
	"github.com/walletmesh/quorumd/coordinator/types"
)

const (
	validatorsKey    = "validators"
	signingPolicyKey = "signing_policy"
)

// ValidatorRepo persists the validator registry and the account's signing
// policy. Invariant enforcement (thresholds, last-validator protection)
// lives in the registry service; the repo is plain storage.
type ValidatorRepo interface {
	SaveValidator(validator *types.Validator) error
	GetValidator(validatorID string) (*types.Validator, error)
	GetValidators() (map[string]*types.Validator, error)
	DeleteValidator(validatorID string) error

	SavePolicy(policy *types.SigningPolicy) error
	GetPolicy() (*types.SigningPolicy, error)
}

type BaseValidatorRepo struct {
	state state.State
}

func NewValidatorRepo(s state.State) (*BaseValidatorRepo, error) {
	repo := &BaseValidatorRepo{state: s}

	bz, err := s.Get(validatorsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s storage: %w", validatorsKey, err)
	}
	if bz == nil {
		if err := s.Set(validatorsKey, []byte("{}")); err != nil {
			return nil, fmt.Errorf("failed to init %s storage: %w", validatorsKey, err)
		}
	}

	return repo, nil
}

func (r *BaseValidatorRepo) SaveValidator(validator *types.Validator) error {
	validators, err := r.GetValidators()
	if err != nil {
		return fmt.Errorf("failed to GetValidators: %w", err)
	}

	validators[validator.ID] = validator

	validatorsBz, err := json.Marshal(validators)
	if err != nil {
		return fmt.Errorf("failed to marshal validators: %w", err)
	}

	if err := r.state.Set(validatorsKey, validatorsBz); err != nil {
		return fmt.Errorf("failed to put validators: %w", err)
	}

	return nil
}

func (r *BaseValidatorRepo) GetValidator(validatorID string) (*types.Validator, error) {
	validators, err := r.GetValidators()
	if err != nil {
		return nil, fmt.Errorf("failed to GetValidators: %w", err)
	}

	validator, ok := validators[validatorID]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "validator %s not found", validatorID)
	}

	return validator, nil
}

func (r *BaseValidatorRepo) GetValidators() (map[string]*types.Validator, error) {
	bz, err := r.state.Get(validatorsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get validators (key: %s): %w", validatorsKey, err)
	}
	if bz == nil {
		return make(map[string]*types.Validator), nil
	}

	var validators map[string]*types.Validator
	if err := json.Unmarshal(bz, &validators); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validators: %w", err)
	}

	return validators, nil
}

func (r *BaseValidatorRepo) DeleteValidator(validatorID string) error {
	validators, err := r.GetValidators()
	if err != nil {
		return fmt.Errorf("failed to GetValidators: %w", err)
	}

	delete(validators, validatorID)

	validatorsBz, err := json.Marshal(validators)
	if err != nil {
		return fmt.Errorf("failed to marshal validators: %w", err)
	}

	if err := r.state.Set(validatorsKey, validatorsBz); err != nil {
		return fmt.Errorf("failed to put validators: %w", err)
	}

	return nil
}

func (r *BaseValidatorRepo) SavePolicy(policy *types.SigningPolicy) error {
	policyBz, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to marshal signing policy: %w", err)
	}

	if err := r.state.Set(signingPolicyKey, policyBz); err != nil {
		return fmt.Errorf("failed to put signing policy: %w", err)
	}

	return nil
}

// GetPolicy returns the stored policy, or a single-signature default when
// none has been set yet.
func (r *BaseValidatorRepo) GetPolicy() (*types.SigningPolicy, error) {
	bz, err := r.state.Get(signingPolicyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get signing policy: %w", err)
	}
	if bz == nil {
		return &types.SigningPolicy{RequireMultiSig: false, Threshold: 1}, nil
	}

	var policy types.SigningPolicy
	if err := json.Unmarshal(bz, &policy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signing policy: %w", err)
	}

	return &policy, nil
}
