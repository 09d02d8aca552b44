package types

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ValidatorKind tells which authentication factor backs a validator and
// which signature scheme its public key belongs to.
type ValidatorKind string

const (
	KindSocial   ValidatorKind = "social"
	KindPasskey  ValidatorKind = "passkey"
	KindHardware ValidatorKind = "hardware"
)

// SocialMeta describes a social-login key.
type SocialMeta struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
}

// PasskeyMeta describes a WebAuthn passkey credential.
type PasskeyMeta struct {
	CredentialID string `json:"credential_id"`
	AAGUID       string `json:"aaguid,omitempty"`
}

// HardwareMeta describes a hardware signer.
type HardwareMeta struct {
	Model      string `json:"model,omitempty"`
	SerialHash string `json:"serial_hash,omitempty"`
}

// Validator is one authentication factor authorized to sign for an account.
// Only LastUsedAt and IsActive change after creation.
type Validator struct {
	ID         string        `json:"id"`
	Owner      string        `json:"owner"`
	Kind       ValidatorKind `json:"kind"`
	Name       string        `json:"name"`
	PublicKey  []byte        `json:"public_key"`
	IsActive   bool          `json:"is_active"`
	CreatedAt  time.Time     `json:"created_at"`
	LastUsedAt time.Time     `json:"last_used_at,omitempty"`

	Social   *SocialMeta   `json:"social,omitempty"`
	Passkey  *PasskeyMeta  `json:"passkey,omitempty"`
	Hardware *HardwareMeta `json:"hardware,omitempty"`
}

// Address returns the validator's signer identity: an Ethereum address for
// secp256k1 social keys, the hex-encoded public key otherwise.
func (v *Validator) Address() string {
	if v.Kind == KindSocial {
		if pub, err := ethcrypto.DecompressPubkey(v.PublicKey); err == nil {
			return ethcrypto.PubkeyToAddress(*pub).Hex()
		}
		if pub, err := ethcrypto.UnmarshalPubkey(v.PublicKey); err == nil {
			return ethcrypto.PubkeyToAddress(*pub).Hex()
		}
	}
	return hex.EncodeToString(v.PublicKey)
}

// SigningPolicy is the per-account signing configuration.
// Invariant: 1 <= Threshold <= number of active validators.
type SigningPolicy struct {
	RequireMultiSig    bool     `json:"require_multi_sig"`
	Threshold          int      `json:"threshold"`
	HighValueThreshold *big.Int `json:"high_value_threshold,omitempty"`
}

type ProposalStatus string

const (
	StatusPending   ProposalStatus = "pending"
	StatusExecuted  ProposalStatus = "executed"
	StatusCancelled ProposalStatus = "cancelled"
	StatusExpired   ProposalStatus = "expired"
	StatusFailed    ProposalStatus = "failed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s ProposalStatus) IsTerminal() bool {
	return s != StatusPending
}

// DeviceInfo identifies a connected client. Display and fanout targeting
// only, never part of authorization.
type DeviceInfo struct {
	DeviceID     string   `json:"device_id"`
	Name         string   `json:"name,omitempty"`
	Platform     string   `json:"platform,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// ProposalSignature is one validator's attestation over a proposal's
// canonical payload.
type ProposalSignature struct {
	ValidatorID   string        `json:"validator_id"`
	Signature     []byte        `json:"signature"`
	SignerType    ValidatorKind `json:"signer_type"`
	SignedAt      time.Time     `json:"signed_at"`
	SignerAddress string        `json:"signer_address"`
	Device        *DeviceInfo   `json:"device,omitempty"`
}

type ProposalMetadata struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Kind          string `json:"kind,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Proposal is a pending or resolved authorization request for one outbound
// call. Proposals are never deleted, only terminally resolved.
type Proposal struct {
	ID                 string              `json:"id"`
	Creator            string              `json:"creator"`
	To                 string              `json:"to"`
	Value              *big.Int            `json:"value"`
	Data               []byte              `json:"data,omitempty"`
	RequiredSignatures int                 `json:"required_signatures"`
	Signatures         []ProposalSignature `json:"signatures"`
	ValidatorIDs       []string            `json:"validator_ids"`
	Status             ProposalStatus      `json:"status"`
	CreatedAt          time.Time           `json:"created_at"`
	ExpiresAt          time.Time           `json:"expires_at"`
	ExecutedAt         *time.Time          `json:"executed_at,omitempty"`
	TransactionHash    string              `json:"transaction_hash,omitempty"`
	Metadata           ProposalMetadata    `json:"metadata"`
}

// CollectedSignatures is the authoritative collected-signature count.
func (p *Proposal) CollectedSignatures() int {
	return len(p.Signatures)
}

// IsEligible reports whether the validator may sign this proposal.
func (p *Proposal) IsEligible(validatorID string) bool {
	for _, id := range p.ValidatorIDs {
		if id == validatorID {
			return true
		}
	}
	return false
}

// HasSignatureFrom reports whether the validator already signed.
func (p *Proposal) HasSignatureFrom(validatorID string) bool {
	for _, sig := range p.Signatures {
		if sig.ValidatorID == validatorID {
			return true
		}
	}
	return false
}

// IsOverdue reports whether the proposal has outlived its deadline.
func (p *Proposal) IsOverdue(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// CanonicalPayload is the byte string every validator signs:
// Keccak256(to || value || data).
func (p *Proposal) CanonicalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteString(p.To)
	if p.Value != nil {
		buf.Write(p.Value.Bytes())
	}
	buf.Write(p.Data)
	return ethcrypto.Keccak256(buf.Bytes())
}

// AggregatedSignatureEntry carries one collected signature together with the
// signer's identity and weight inside an aggregate.
type AggregatedSignatureEntry struct {
	ValidatorID   string        `json:"validator_id"`
	SignerAddress string        `json:"signer_address"`
	SignerType    ValidatorKind `json:"signer_type"`
	Weight        int           `json:"weight"`
	Signature     []byte        `json:"signature"`
}

// AggregatedSignature is the executable payload handed to the broadcaster
// once quorum is reached. Combined is only set when every signer is a
// hardware (BLS) validator and the individual signatures could be merged
// into a single blob.
type AggregatedSignature struct {
	ProposalID  string                     `json:"proposal_id"`
	PayloadHash []byte                     `json:"payload_hash"`
	Entries     []AggregatedSignatureEntry `json:"entries"`
	TotalWeight int                        `json:"total_weight"`
	Combined    []byte                     `json:"combined,omitempty"`
}
