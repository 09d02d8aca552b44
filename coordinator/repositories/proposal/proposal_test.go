package proposal

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/quorumd/coordinator/modules/state"
	"github.com/walletmesh/quorumd/coordinator/types"
)

func TestSaveGetProposal(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/quorumd_test_SaveGetProposal"
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath)
	req.NoError(err)
	defer stg.Close()

	repo := NewProposalRepo(stg)

	proposal := &types.Proposal{
		ID:                 "proposal_id",
		Creator:            "alice",
		To:                 "0xdead",
		Value:              big.NewInt(100),
		RequiredSignatures: 2,
		Status:             types.StatusPending,
		CreatedAt:          time.Now(),
		ExpiresAt:          time.Now().Add(time.Hour),
	}
	err = repo.Save(proposal)
	req.NoError(err)

	loaded, err := repo.Get(proposal.ID)
	req.NoError(err)
	req.Equal(proposal.ID, loaded.ID)
	req.Equal(proposal.Creator, loaded.Creator)
	req.Equal(0, proposal.Value.Cmp(loaded.Value))
	req.Equal(proposal.Status, loaded.Status)
}

func TestGetMissingProposal(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/quorumd_test_GetMissingProposal"
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath)
	req.NoError(err)
	defer stg.Close()

	repo := NewProposalRepo(stg)

	_, err = repo.Get("missing")
	req.Error(err)
	req.True(types.IsKind(err, types.ErrNotFound))
}

func TestAllProposals(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/quorumd_test_AllProposals"
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath)
	req.NoError(err)
	defer stg.Close()

	repo := NewProposalRepo(stg)

	for _, id := range []string{"p1", "p2", "p3"} {
		err = repo.Save(&types.Proposal{
			ID:     id,
			Value:  big.NewInt(0),
			Status: types.StatusPending,
		})
		req.NoError(err)
	}

	proposals, err := repo.All()
	req.NoError(err)
	req.Len(proposals, 3)
}
