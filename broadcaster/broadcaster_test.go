package broadcaster

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/quorumd/coordinator/modules/keystore"
	"github.com/walletmesh/quorumd/coordinator/types"
)

func TestDevBroadcasterExecute(t *testing.T) {
	req := require.New(t)

	bc := NewDevBroadcaster(keystore.NewKeyPair())

	aggregated := &types.AggregatedSignature{
		ProposalID:  "p1",
		TotalWeight: 2,
		Entries: []types.AggregatedSignatureEntry{
			{ValidatorID: "v1", Weight: 1, Signature: []byte("sig1")},
			{ValidatorID: "v2", Weight: 1, Signature: []byte("sig2")},
		},
	}

	txHash, err := bc.Execute(context.Background(), "0xdead", big.NewInt(100), []byte{0x01}, aggregated)
	req.NoError(err)
	req.Len(txHash, 66) // 0x + 32 bytes hex
	req.Equal("0x", txHash[:2])
}

func TestDevBroadcasterCancelledContext(t *testing.T) {
	req := require.New(t)

	bc := NewDevBroadcaster(keystore.NewKeyPair())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bc.Execute(ctx, "0xdead", big.NewInt(0), nil, &types.AggregatedSignature{})
	req.ErrorIs(err, context.Canceled)
}
