package requests

type CreateProposalForm struct {
	Creator            string   `json:"creator" validate:"attr=creator,min=1"`
	To                 string   `json:"to" validate:"attr=to,min=1"`
	Value              string   `json:"value"`
	Data               []byte   `json:"data"`
	RequiredSignatures int      `json:"required_signatures"`
	ValidatorIDs       []string `json:"validator_ids"`
	TTLSeconds         int64    `json:"ttl_seconds"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Kind               string   `json:"kind"`
}

type ProposalIdForm struct {
	ProposalID string `query:"proposalID" json:"proposalID" validate:"attr=proposalID,min=1"`
}

type ProposalListForm struct {
	UserID string `query:"userID" json:"userID" validate:"attr=userID,min=1"`
	Status string `query:"status" json:"status"`
	Limit  int    `query:"limit" json:"limit"`
	Offset int    `query:"offset" json:"offset"`
}

type SignProposalForm struct {
	ProposalID   string `json:"proposal_id" validate:"attr=proposal_id,min=1"`
	ValidatorID  string `json:"validator_id" validate:"attr=validator_id,min=1"`
	Signature    []byte `json:"signature"`
	SignedAtUnix int64  `json:"signed_at"`
	DeviceID     string `json:"device_id"`
	DeviceName   string `json:"device_name"`
	Platform     string `json:"platform"`
}

type CancelProposalForm struct {
	ProposalID string `json:"proposal_id" validate:"attr=proposal_id,min=1"`
	UserID     string `json:"user_id" validate:"attr=user_id,min=1"`
}

type AddValidatorForm struct {
	ID        string `json:"id" validate:"attr=id,min=1"`
	Owner     string `json:"owner" validate:"attr=owner,min=1"`
	Kind      string `json:"kind" validate:"attr=kind,min=1"`
	Name      string `json:"name"`
	PublicKey []byte `json:"public_key"`

	Provider     string `json:"provider"`
	Subject      string `json:"subject"`
	CredentialID string `json:"credential_id"`
	AAGUID       string `json:"aaguid"`
	Model        string `json:"model"`
	SerialHash   string `json:"serial_hash"`
}

type ValidatorIdForm struct {
	ValidatorID string `query:"validatorID" json:"validatorID" validate:"attr=validatorID,min=1"`
}

type SigningPolicyForm struct {
	RequireMultiSig    bool   `json:"require_multi_sig"`
	Threshold          int    `json:"threshold"`
	HighValueThreshold string `json:"high_value_threshold"`
}

type UserIdForm struct {
	UserID string `query:"userID" json:"userID" validate:"attr=userID,min=1"`
}
