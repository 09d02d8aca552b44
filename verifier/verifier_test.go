package verifier

import (
	"crypto/ed25519"
	"testing"

	"github.com/corestario/kyber/pairing"
	bls12381 "github.com/corestario/kyber/pairing/bls12381"
	"github.com/corestario/kyber/sign/bls"
	"github.com/corestario/kyber/util/random"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/walletmesh/quorumd/coordinator/types"
)

var payload = ethcrypto.Keccak256([]byte("0xdead"), []byte{0x64}, []byte{0x01, 0x02})

func TestVerifySocial(t *testing.T) {
	req := require.New(t)
	sv := NewStandardVerifier()

	priv, err := ethcrypto.GenerateKey()
	req.NoError(err)

	signature, err := ethcrypto.Sign(payload, priv)
	req.NoError(err)

	v := &types.Validator{
		Kind:      types.KindSocial,
		PublicKey: ethcrypto.CompressPubkey(&priv.PublicKey),
	}

	ok, err := sv.Verify(payload, signature, v)
	req.NoError(err)
	req.True(ok)

	// wrong payload fails cleanly
	ok, err = sv.Verify(ethcrypto.Keccak256([]byte("other")), signature, v)
	req.NoError(err)
	req.False(ok)

	// truncated signature fails cleanly
	ok, err = sv.Verify(payload, signature[:32], v)
	req.NoError(err)
	req.False(ok)
}

func TestVerifyPasskey(t *testing.T) {
	req := require.New(t)
	sv := NewStandardVerifier()

	pub, priv, err := ed25519.GenerateKey(nil)
	req.NoError(err)

	challenge := sha3.Sum256(payload)
	signature := ed25519.Sign(priv, challenge[:])

	v := &types.Validator{
		Kind:      types.KindPasskey,
		PublicKey: []byte(pub),
	}

	ok, err := sv.Verify(payload, signature, v)
	req.NoError(err)
	req.True(ok)

	ok, err = sv.Verify(ethcrypto.Keccak256([]byte("other")), signature, v)
	req.NoError(err)
	req.False(ok)

	// malformed public key is an error, not a clean false
	v.PublicKey = []byte("short")
	_, err = sv.Verify(payload, signature, v)
	req.Error(err)
}

func TestVerifyHardware(t *testing.T) {
	req := require.New(t)
	sv := NewStandardVerifier()

	suite := bls12381.NewBLS12381Suite(nil).(pairing.Suite)
	priv, pub := bls.NewKeyPair(suite, random.New())

	pubBz, err := pub.MarshalBinary()
	req.NoError(err)

	signature, err := bls.Sign(suite, priv, payload)
	req.NoError(err)

	v := &types.Validator{
		Kind:      types.KindHardware,
		PublicKey: pubBz,
	}

	ok, err := sv.Verify(payload, signature, v)
	req.NoError(err)
	req.True(ok)

	ok, err = sv.Verify(ethcrypto.Keccak256([]byte("other")), signature, v)
	req.NoError(err)
	req.False(ok)
}

func TestVerifyUnknownKind(t *testing.T) {
	req := require.New(t)
	sv := NewStandardVerifier()

	_, err := sv.Verify(payload, []byte("sig"), &types.Validator{Kind: "bogus"})
	req.Error(err)
}

func TestAggregateBLS(t *testing.T) {
	req := require.New(t)
	sv := NewStandardVerifier()

	suite := bls12381.NewBLS12381Suite(nil).(pairing.Suite)

	privA, pubA := bls.NewKeyPair(suite, random.New())
	privB, pubB := bls.NewKeyPair(suite, random.New())

	sigA, err := bls.Sign(suite, privA, payload)
	req.NoError(err)
	sigB, err := bls.Sign(suite, privB, payload)
	req.NoError(err)

	combined, err := sv.AggregateBLS([][]byte{sigA, sigB})
	req.NoError(err)
	req.NotEmpty(combined)

	aggregatedPub := bls.AggregatePublicKeys(suite, pubA, pubB)
	req.NoError(bls.Verify(suite, aggregatedPub, payload, combined))
}
