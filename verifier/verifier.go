package verifier

import (
	"crypto/ed25519"
	"fmt"

	"github.com/corestario/kyber/pairing"
	bls12381 "github.com/corestario/kyber/pairing/bls12381"
	"github.com/corestario/kyber/sign/bls"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/walletmesh/quorumd/coordinator/types"
)

// Verifier checks one validator's signature over a proposal's canonical
// payload. The scheme depends on the validator kind; the coordination core
// only cares about the boolean result.
type Verifier interface {
	Verify(payload []byte, signature []byte, v *types.Validator) (bool, error)
}

// Aggregator merges hardware (BLS) signatures into one blob.
type Aggregator interface {
	AggregateBLS(signatures [][]byte) ([]byte, error)
}

type StandardVerifier struct {
	suite pairing.Suite
}

var _ Verifier = (*StandardVerifier)(nil)
var _ Aggregator = (*StandardVerifier)(nil)

func NewStandardVerifier() *StandardVerifier {
	return &StandardVerifier{
		suite: bls12381.NewBLS12381Suite(nil).(pairing.Suite),
	}
}

// Verify dispatches on the validator kind:
//   - social: secp256k1 over the Keccak-256 canonical payload, 64- or
//     65-byte [R || S (|| V)] signatures;
//   - passkey: ed25519 over the SHA3-256 passkey challenge derived from the
//     canonical payload;
//   - hardware: BLS12-381 over the canonical payload.
//
// A malformed public key is an error; a well-formed but wrong signature is
// (false, nil).
func (sv *StandardVerifier) Verify(payload []byte, signature []byte, v *types.Validator) (bool, error) {
	switch v.Kind {
	case types.KindSocial:
		if len(signature) < 64 {
			return false, nil
		}
		return ethcrypto.VerifySignature(v.PublicKey, payload, signature[:64]), nil

	case types.KindPasskey:
		if len(v.PublicKey) != ed25519.PublicKeySize {
			return false, fmt.Errorf("invalid ed25519 public key length %d", len(v.PublicKey))
		}
		challenge := sha3.Sum256(payload)
		return ed25519.Verify(ed25519.PublicKey(v.PublicKey), challenge[:], signature), nil

	case types.KindHardware:
		point := sv.suite.G2().Point()
		if err := point.UnmarshalBinary(v.PublicKey); err != nil {
			return false, fmt.Errorf("failed to unmarshal BLS public key: %w", err)
		}
		if err := bls.Verify(sv.suite, point, payload, signature); err != nil {
			return false, nil
		}
		return true, nil

	default:
		return false, fmt.Errorf("unknown validator kind %q", v.Kind)
	}
}

// AggregateBLS merges the given BLS signatures into a single blob that
// verifies against the aggregate public key.
func (sv *StandardVerifier) AggregateBLS(signatures [][]byte) ([]byte, error) {
	combined, err := bls.AggregateSignatures(sv.suite, signatures...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate BLS signatures: %w", err)
	}
	return combined, nil
}
