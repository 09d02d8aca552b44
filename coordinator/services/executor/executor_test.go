package executor

import (
	"context"
	"errors"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/walletmesh/quorumd/coordinator/config"
	"github.com/walletmesh/quorumd/coordinator/modules/keylock"
	"github.com/walletmesh/quorumd/coordinator/modules/state"
	proposal_repo "github.com/walletmesh/quorumd/coordinator/repositories/proposal"
	validator_repo "github.com/walletmesh/quorumd/coordinator/repositories/validator"
	"github.com/walletmesh/quorumd/coordinator/services/notifier"
	"github.com/walletmesh/quorumd/coordinator/services/registry"
	"github.com/walletmesh/quorumd/coordinator/types"
	"github.com/walletmesh/quorumd/mocks/collabMocks"
)

type testEnv struct {
	repo        proposal_repo.ProposalRepo
	registry    registry.RegistryService
	executor    *BaseExecutorService
	broadcaster *collabMocks.MockBroadcaster
	aggregator  *collabMocks.MockAggregator
}

func newTestEnv(t *testing.T, dbPath string) *testEnv {
	t.Helper()

	stg, err := state.NewLevelDBState(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		stg.Close()
		os.RemoveAll(dbPath)
	})

	ctrl := gomock.NewController(t)
	broadcasterMock := collabMocks.NewMockBroadcaster(ctrl)
	aggregatorMock := collabMocks.NewMockAggregator(ctrl)

	validatorRepo, err := validator_repo.NewValidatorRepo(stg)
	require.NoError(t, err)

	repo := proposal_repo.NewProposalRepo(stg)
	reg := registry.NewRegistryService(validatorRepo)
	nt := notifier.NewNotifierService(16)

	exec := NewExecutorService(repo, reg, nt, broadcasterMock, aggregatorMock,
		keylock.New(), big.NewInt(1e9), &config.SigningConfig{FreshnessWindow: 5 * time.Minute})

	return &testEnv{
		repo:        repo,
		registry:    reg,
		executor:    exec,
		broadcaster: broadcasterMock,
		aggregator:  aggregatorMock,
	}
}

func (e *testEnv) addValidator(t *testing.T, id, owner string, kind types.ValidatorKind) {
	t.Helper()
	_, _, err := e.registry.Add(&types.Validator{
		ID:        id,
		Owner:     owner,
		Kind:      kind,
		PublicKey: []byte("pubkey_" + id),
	})
	require.NoError(t, err)
}

func (e *testEnv) saveProposal(t *testing.T, p *types.Proposal) {
	t.Helper()
	require.NoError(t, e.repo.Save(p))
}

func signature(validatorID string, kind types.ValidatorKind) types.ProposalSignature {
	return types.ProposalSignature{
		ValidatorID: validatorID,
		Signature:   []byte("sig_" + validatorID),
		SignerType:  kind,
		SignedAt:    time.Now(),
	}
}

func readyProposal(signatures ...types.ProposalSignature) *types.Proposal {
	validatorIDs := make([]string, len(signatures))
	for i, sig := range signatures {
		validatorIDs[i] = sig.ValidatorID
	}
	return &types.Proposal{
		ID:                 "proposal_id",
		Creator:            "alice",
		To:                 "0xdead",
		Value:              big.NewInt(100),
		Data:               []byte{0x00, 0x01, 0x02, 0x00},
		RequiredSignatures: len(signatures),
		Signatures:         signatures,
		ValidatorIDs:       validatorIDs,
		Status:             types.StatusPending,
		CreatedAt:          time.Now(),
		ExpiresAt:          time.Now().Add(time.Hour),
	}
}

func TestTryExecuteExactlyOnce(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_ExactlyOnce")
	env.addValidator(t, "v1", "alice", types.KindPasskey)
	env.addValidator(t, "v2", "bob", types.KindPasskey)

	p := readyProposal(
		signature("v1", types.KindPasskey),
		signature("v2", types.KindPasskey),
	)
	env.saveProposal(t, p)

	// the whole point: N racers, one broadcast
	env.broadcaster.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("0xtxhash", nil).
		Times(1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		executed int
		errs     []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := env.executor.TryExecute(context.Background(), p.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if result.Executed {
				executed++
			}
		}()
	}
	wg.Wait()

	req.Empty(errs)
	req.Equal(1, executed)

	loaded, err := env.repo.Get(p.ID)
	req.NoError(err)
	req.Equal(types.StatusExecuted, loaded.Status)
	req.Equal("0xtxhash", loaded.TransactionHash)
}

func TestTryExecuteBelowQuorumIsNoop(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_BelowQuorum")
	env.addValidator(t, "v1", "alice", types.KindPasskey)
	env.addValidator(t, "v2", "bob", types.KindPasskey)

	p := readyProposal(signature("v1", types.KindPasskey))
	p.RequiredSignatures = 2
	p.ValidatorIDs = []string{"v1", "v2"}
	env.saveProposal(t, p)

	result, err := env.executor.TryExecute(context.Background(), p.ID)
	req.NoError(err)
	req.False(result.Executed)

	loaded, err := env.repo.Get(p.ID)
	req.NoError(err)
	req.Equal(types.StatusPending, loaded.Status)
}

func TestTryExecuteBroadcastFailure(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_BroadcastFailure")
	env.addValidator(t, "v1", "alice", types.KindPasskey)

	p := readyProposal(signature("v1", types.KindPasskey))
	env.saveProposal(t, p)

	env.broadcaster.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("node unreachable"))

	_, err := env.executor.TryExecute(context.Background(), p.ID)
	req.True(types.IsKind(err, types.ErrExecutionFailed))

	loaded, err := env.repo.Get(p.ID)
	req.NoError(err)
	req.Equal(types.StatusFailed, loaded.Status)
	req.Equal("node unreachable", loaded.Metadata.FailureReason)

	// resolved proposals are not retried
	result, err := env.executor.TryExecute(context.Background(), p.ID)
	req.NoError(err)
	req.False(result.Executed)
}

func TestAggregateMixedKinds(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_AggregateMixed")

	p := readyProposal(
		signature("v1", types.KindSocial),
		signature("v2", types.KindHardware),
	)

	aggregated, err := env.executor.Aggregate(p)
	req.NoError(err)
	req.Len(aggregated.Entries, 2)
	req.Equal(2, aggregated.TotalWeight)
	req.Equal(p.CanonicalPayload(), aggregated.PayloadHash)
	req.Nil(aggregated.Combined)

	for _, entry := range aggregated.Entries {
		req.Equal(1, entry.Weight)
	}
}

func TestAggregateAllHardwareCombines(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_AggregateHardware")

	p := readyProposal(
		signature("v1", types.KindHardware),
		signature("v2", types.KindHardware),
	)

	env.aggregator.EXPECT().
		AggregateBLS(gomock.Any()).
		Return([]byte("combined"), nil)

	aggregated, err := env.executor.Aggregate(p)
	req.NoError(err)
	req.Equal([]byte("combined"), aggregated.Combined)
}

func TestCanExecute(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_CanExecute")
	env.addValidator(t, "v1", "alice", types.KindPasskey)
	env.addValidator(t, "v2", "bob", types.KindPasskey)

	p := readyProposal(
		signature("v1", types.KindPasskey),
		signature("v2", types.KindPasskey),
	)
	env.saveProposal(t, p)

	result, err := env.executor.CanExecute(p.ID)
	req.NoError(err)
	req.True(result.CanExecute)
	req.Empty(result.Reason)
}

func TestCanExecuteReportsReason(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_CanExecuteReason")
	env.addValidator(t, "v1", "alice", types.KindPasskey)
	env.addValidator(t, "v2", "bob", types.KindPasskey)

	// below quorum
	p := readyProposal(signature("v1", types.KindPasskey))
	p.RequiredSignatures = 2
	p.ValidatorIDs = []string{"v1", "v2"}
	env.saveProposal(t, p)

	result, err := env.executor.CanExecute(p.ID)
	req.NoError(err)
	req.False(result.CanExecute)
	req.Contains(result.Reason, "1 of 2")

	// signer removed after signing
	req.NoError(env.registry.Remove("v1"))
	result, err = env.executor.CanExecute(p.ID)
	req.NoError(err)
	req.False(result.CanExecute)
	req.Contains(result.Reason, "inactive")

	// past deadline
	p.ExpiresAt = time.Now().Add(-time.Minute)
	env.saveProposal(t, p)
	result, err = env.executor.CanExecute(p.ID)
	req.NoError(err)
	req.False(result.CanExecute)
	req.Contains(result.Reason, "deadline")
}

func TestCanExecuteStaleSignature(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_CanExecuteStale")
	env.addValidator(t, "v1", "alice", types.KindPasskey)
	env.addValidator(t, "v2", "bob", types.KindPasskey)

	// signed_at outside the freshness window fails the pre-flight check even
	// though the signature was valid when it was collected
	stale := signature("v1", types.KindPasskey)
	stale.SignedAt = time.Now().Add(-time.Hour)

	p := readyProposal(stale, signature("v2", types.KindPasskey))
	env.saveProposal(t, p)

	result, err := env.executor.CanExecute(p.ID)
	req.NoError(err)
	req.False(result.CanExecute)
	req.Contains(result.Reason, "stale")
}

func TestEstimateGas(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "/tmp/quorumd_test_EstimateGas")

	p := readyProposal(
		signature("v1", types.KindPasskey),
		signature("v2", types.KindPasskey),
	)
	env.saveProposal(t, p)

	estimate, err := env.executor.EstimateGas(p.ID)
	req.NoError(err)

	// 21000 base + 2 zero bytes * 4 + 2 non-zero bytes * 16 + 2 sigs * 8000
	expectedLimit := uint64(21000 + 2*4 + 2*16 + 2*8000)
	req.Equal(expectedLimit, estimate.GasLimit)
	req.Equal(0, estimate.GasPrice.Cmp(big.NewInt(1e9)))

	expectedCost := new(big.Int).Mul(new(big.Int).SetUint64(expectedLimit), big.NewInt(1e9))
	req.Equal(0, estimate.TotalCost.Cmp(expectedCost))
}
