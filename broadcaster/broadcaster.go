package broadcaster

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/walletmesh/quorumd/coordinator/modules/keystore"
	"github.com/walletmesh/quorumd/coordinator/modules/logger"
	"github.com/walletmesh/quorumd/coordinator/types"
)

// Broadcaster hands an aggregated quorum of signatures to the execution
// layer. It may be slow (network round trip to a node) and must be treated
// as fallible; the coordinator never retries automatically.
type Broadcaster interface {
	Execute(ctx context.Context, to string, value *big.Int, data []byte,
		aggregated *types.AggregatedSignature) (string, error)
}

// DevBroadcaster is a local stand-in for a real account-abstraction client.
// It derives a deterministic transaction hash from the call and the
// aggregate, stamped with the daemon's service key.
type DevBroadcaster struct {
	keys   *keystore.KeyPair
	logger logger.Logger
}

var _ Broadcaster = (*DevBroadcaster)(nil)

func NewDevBroadcaster(keys *keystore.KeyPair) *DevBroadcaster {
	return &DevBroadcaster{
		keys:   keys,
		logger: logger.NewLogger("broadcaster"),
	}
}

func (b *DevBroadcaster) Execute(ctx context.Context, to string, value *big.Int, data []byte,
	aggregated *types.AggregatedSignature) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	aggBz, err := json.Marshal(aggregated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal aggregated signature: %w", err)
	}

	digest := ethcrypto.Keccak256([]byte(to), value.Bytes(), data, aggBz)
	receipt := ed25519.Sign(b.keys.Priv, digest)
	txHash := "0x" + hex.EncodeToString(ethcrypto.Keccak256(receipt))

	b.logger.Log("broadcast to=%s value=%s signers=%d tx=%s",
		to, value.String(), len(aggregated.Entries), txHash)

	return txHash, nil
}
