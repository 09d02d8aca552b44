package dto

// This package contains DTO (Data Transfer Object) structures
// for providing validated and sanitized values to service layer

type CreateProposalDTO struct {
	Creator            string
	To                 string
	Value              string
	Data               []byte
	RequiredSignatures int
	ValidatorIDs       []string
	TTLSeconds         int64
	Title              string
	Description        string
	Kind               string
}

type ProposalIdDTO struct {
	ProposalID string
}

type ProposalListDTO struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

type SignProposalDTO struct {
	ProposalID    string
	ValidatorID   string
	Signature     []byte
	SignedAtUnix  int64
	DeviceID      string
	DeviceName    string
	Platform      string
}

type CancelProposalDTO struct {
	ProposalID string
	UserID     string
}

type AddValidatorDTO struct {
	ID        string
	Owner     string
	Kind      string
	Name      string
	PublicKey []byte

	Provider     string
	Subject      string
	CredentialID string
	AAGUID       string
	Model        string
	SerialHash   string
}

type ValidatorIdDTO struct {
	ValidatorID string
}

type SigningPolicyDTO struct {
	RequireMultiSig    bool
	Threshold          int
	HighValueThreshold string
}

type UserIdDTO struct {
	UserID string
}
