package proposal

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/quorumd/coordinator/config"
	"github.com/walletmesh/quorumd/coordinator/modules/keylock"
	"github.com/walletmesh/quorumd/coordinator/modules/state"
	proposal_repo "github.com/walletmesh/quorumd/coordinator/repositories/proposal"
	validator_repo "github.com/walletmesh/quorumd/coordinator/repositories/validator"
	"github.com/walletmesh/quorumd/coordinator/services/notifier"
	"github.com/walletmesh/quorumd/coordinator/services/registry"
	"github.com/walletmesh/quorumd/coordinator/types"
)

type testEnv struct {
	repo     proposal_repo.ProposalRepo
	registry registry.RegistryService
	notifier notifier.NotifierService
	service  *BaseProposalService
}

func newTestEnv(t *testing.T, dbPath string) *testEnv {
	t.Helper()

	stg, err := state.NewLevelDBState(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		stg.Close()
		os.RemoveAll(dbPath)
	})

	validatorRepo, err := validator_repo.NewValidatorRepo(stg)
	require.NoError(t, err)

	repo := proposal_repo.NewProposalRepo(stg)
	reg := registry.NewRegistryService(validatorRepo)
	nt := notifier.NewNotifierService(16)

	svc := NewProposalService(repo, reg, nt, keylock.New(), &config.SigningConfig{
		FreshnessWindow: 5 * time.Minute,
		DefaultTTL:      24 * time.Hour,
	})
	nt.SetPendingLister(svc)

	return &testEnv{repo: repo, registry: reg, notifier: nt, service: svc}
}

func (e *testEnv) addValidator(t *testing.T, id, owner string) {
	t.Helper()
	_, _, err := e.registry.Add(&types.Validator{
		ID:        id,
		Owner:     owner,
		Kind:      types.KindPasskey,
		PublicKey: []byte("pubkey_" + id),
	})
	require.NoError(t, err)
}

func validCreateParams() CreateParams {
	return CreateParams{
		Creator:            "alice",
		To:                 "0xdead",
		Value:              big.NewInt(100),
		RequiredSignatures: 2,
		ValidatorIDs:       []string{"v1", "v2"},
	}
}

func TestCreateProposal(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_CreateProposal")
	env.addValidator(t, "v1", "alice")
	env.addValidator(t, "v2", "bob")

	proposal, err := env.service.Create(validCreateParams())
	req.NoError(err)
	req.NotEmpty(proposal.ID)
	req.Equal(types.StatusPending, proposal.Status)
	req.Equal(2, proposal.RequiredSignatures)
	req.True(proposal.ExpiresAt.After(proposal.CreatedAt))

	loaded, err := env.repo.Get(proposal.ID)
	req.NoError(err)
	req.Equal(proposal.ID, loaded.ID)

	// both validator owners got a new_proposal notification
	for _, owner := range []string{"alice", "bob"} {
		resync, err := env.notifier.Resync(owner)
		req.NoError(err)
		req.Len(resync.RecentNotifications, 1)
		req.Equal(types.NotificationNewProposal, resync.RecentNotifications[0].Type)
	}
}

func TestCreateProposalValidation(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_CreateProposalValidation")
	env.addValidator(t, "v1", "alice")
	env.addValidator(t, "v2", "bob")

	params := validCreateParams()
	params.To = ""
	_, err := env.service.Create(params)
	req.True(types.IsKind(err, types.ErrInvalidRequest))

	params = validCreateParams()
	params.RequiredSignatures = 0
	_, err = env.service.Create(params)
	req.True(types.IsKind(err, types.ErrInvalidRequest))

	params = validCreateParams()
	params.RequiredSignatures = 3
	_, err = env.service.Create(params)
	req.True(types.IsKind(err, types.ErrInvalidRequest))

	params = validCreateParams()
	params.ValidatorIDs = []string{"v1", "unknown"}
	_, err = env.service.Create(params)
	req.True(types.IsKind(err, types.ErrNotFound))
}

func TestCreateProposalEnforcesPolicyThreshold(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_CreatePolicyThreshold")
	env.addValidator(t, "v1", "alice")
	env.addValidator(t, "v2", "bob")

	err := env.registry.SetPolicy(&types.SigningPolicy{RequireMultiSig: true, Threshold: 2})
	req.NoError(err)

	params := validCreateParams()
	params.RequiredSignatures = 1
	params.ValidatorIDs = []string{"v1"}
	_, err = env.service.Create(params)
	req.True(types.IsKind(err, types.ErrInvalidRequest))

	params = validCreateParams()
	_, err = env.service.Create(params)
	req.NoError(err)
}

func TestListForUser(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_ListForUser")
	env.addValidator(t, "v1", "alice")
	env.addValidator(t, "v2", "bob")

	params := validCreateParams()
	params.RequiredSignatures = 1
	params.ValidatorIDs = []string{"v1"}

	first, err := env.service.Create(params)
	req.NoError(err)
	second, err := env.service.Create(params)
	req.NoError(err)

	// alice created both; bob is neither creator nor eligible signer
	proposals, err := env.service.ListForUser("alice", ListFilter{})
	req.NoError(err)
	req.Len(proposals, 2)

	proposals, err = env.service.ListForUser("bob", ListFilter{})
	req.NoError(err)
	req.Empty(proposals)

	// newest first
	req.Equal(second.ID, func() string {
		all, err := env.service.ListForUser("alice", ListFilter{Limit: 1})
		req.NoError(err)
		req.Len(all, 1)
		return all[0].ID
	}())

	proposals, err = env.service.ListForUser("alice", ListFilter{Limit: 1, Offset: 1})
	req.NoError(err)
	req.Len(proposals, 1)
	req.Equal(first.ID, proposals[0].ID)
}

func TestListForUserAsSigner(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_ListForUserAsSigner")
	env.addValidator(t, "v1", "alice")
	env.addValidator(t, "v2", "bob")

	_, err := env.service.Create(validCreateParams())
	req.NoError(err)

	// bob owns v2, an eligible signer
	proposals, err := env.service.ListForUser("bob", ListFilter{})
	req.NoError(err)
	req.Len(proposals, 1)
}

func TestCancelProposal(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_CancelProposal")
	env.addValidator(t, "v1", "alice")
	env.addValidator(t, "v2", "bob")

	proposal, err := env.service.Create(validCreateParams())
	req.NoError(err)

	_, err = env.service.Cancel(proposal.ID, "mallory")
	req.True(types.IsKind(err, types.ErrUnauthorized))

	cancelled, err := env.service.Cancel(proposal.ID, "alice")
	req.NoError(err)
	req.Equal(types.StatusCancelled, cancelled.Status)

	_, err = env.service.Cancel(proposal.ID, "alice")
	req.True(types.IsKind(err, types.ErrAlreadyResolved))
}

func TestExpireLocked(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_ExpireLocked")
	env.addValidator(t, "v1", "alice")
	env.addValidator(t, "v2", "bob")

	proposal, err := env.service.Create(validCreateParams())
	req.NoError(err)

	err = env.service.ExpireLocked(proposal)
	req.NoError(err)
	req.Equal(types.StatusExpired, proposal.Status)

	loaded, err := env.repo.Get(proposal.ID)
	req.NoError(err)
	req.Equal(types.StatusExpired, loaded.Status)

	err = env.service.ExpireLocked(proposal)
	req.True(types.IsKind(err, types.ErrAlreadyResolved))
}
