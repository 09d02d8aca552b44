package proposal

import (
	"encoding/json"
	"fmt"

	"github.com/walletmesh/quorumd/coordinator/modules/state"
	"github.com/walletmesh/quorumd/coordinator/types"
)

const proposalsKeyPrefix = "proposals/"

// ProposalRepo persists proposals, one storage key per proposal id, so a
// save touches nothing but the record it belongs to.
type ProposalRepo interface {
	Save(proposal *types.Proposal) error
	Get(proposalID string) (*types.Proposal, error)
	All() ([]*types.Proposal, error)
}

type BaseProposalRepo struct {
	state state.State
}

func NewProposalRepo(s state.State) *BaseProposalRepo {
	return &BaseProposalRepo{state: s}
}

func makeProposalKey(proposalID string) string {
	return proposalsKeyPrefix + proposalID
}

func (r *BaseProposalRepo) Save(proposal *types.Proposal) error {
	proposalBz, err := json.Marshal(proposal)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal: %w", err)
	}

	if err := r.state.Set(makeProposalKey(proposal.ID), proposalBz); err != nil {
		return fmt.Errorf("failed to put proposal: %w", err)
	}

	return nil
}

func (r *BaseProposalRepo) Get(proposalID string) (*types.Proposal, error) {
	bz, err := r.state.Get(makeProposalKey(proposalID))
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal (key: %s): %w", makeProposalKey(proposalID), err)
	}
	if bz == nil {
		return nil, types.NewErrorf(types.ErrNotFound, "proposal %s not found", proposalID)
	}

	var proposal types.Proposal
	if err := json.Unmarshal(bz, &proposal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proposal: %w", err)
	}

	return &proposal, nil
}

func (r *BaseProposalRepo) All() ([]*types.Proposal, error) {
	values, err := r.state.Range(proposalsKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to range over proposals: %w", err)
	}

	proposals := make([]*types.Proposal, 0, len(values))
	for _, bz := range values {
		var proposal types.Proposal
		if err := json.Unmarshal(bz, &proposal); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proposal: %w", err)
		}
		proposals = append(proposals, &proposal)
	}

	return proposals, nil
}
