package types

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationNewProposal       NotificationType = "new_proposal"
	NotificationSignatureAdded    NotificationType = "signature_added"
	NotificationProposalExecuted  NotificationType = "proposal_executed"
	NotificationProposalCancelled NotificationType = "proposal_cancelled"
	NotificationProposalExpired   NotificationType = "proposal_expired"
)

// NotificationPayload is implemented by exactly one payload shape per
// notification type.
type NotificationPayload interface {
	NotificationType() NotificationType
}

type NewProposalPayload struct {
	ProposalID         string    `json:"proposal_id"`
	Creator            string    `json:"creator"`
	To                 string    `json:"to"`
	Value              string    `json:"value"`
	RequiredSignatures int       `json:"required_signatures"`
	ExpiresAt          time.Time `json:"expires_at"`
}

func (NewProposalPayload) NotificationType() NotificationType { return NotificationNewProposal }

type SignatureAddedPayload struct {
	ProposalID          string `json:"proposal_id"`
	ValidatorID         string `json:"validator_id"`
	CollectedSignatures int    `json:"collected_signatures"`
	RemainingSignatures int    `json:"remaining_signatures"`
}

func (SignatureAddedPayload) NotificationType() NotificationType { return NotificationSignatureAdded }

type ProposalExecutedPayload struct {
	ProposalID      string    `json:"proposal_id"`
	TransactionHash string    `json:"transaction_hash"`
	ExecutedAt      time.Time `json:"executed_at"`
}

func (ProposalExecutedPayload) NotificationType() NotificationType {
	return NotificationProposalExecuted
}

type ProposalCancelledPayload struct {
	ProposalID  string `json:"proposal_id"`
	CancelledBy string `json:"cancelled_by"`
}

func (ProposalCancelledPayload) NotificationType() NotificationType {
	return NotificationProposalCancelled
}

type ProposalExpiredPayload struct {
	ProposalID string    `json:"proposal_id"`
	ExpiredAt  time.Time `json:"expired_at"`
}

func (ProposalExpiredPayload) NotificationType() NotificationType {
	return NotificationProposalExpired
}

// NotificationMessage describes one proposal state change. Ephemeral: it
// lives in per-recipient history rings and on best-effort side channels,
// never in the proposal store.
type NotificationMessage struct {
	ID         string              `json:"id"`
	Type       NotificationType    `json:"type"`
	Title      string              `json:"title"`
	Message    string              `json:"message"`
	Payload    NotificationPayload `json:"-"`
	Timestamp  time.Time           `json:"timestamp"`
	Recipients []string            `json:"recipients"`
}

type notificationMessageJSON struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Recipients []string         `json:"recipients"`
}

func (m NotificationMessage) MarshalJSON() ([]byte, error) {
	out := notificationMessageJSON{
		ID:         m.ID,
		Type:       m.Type,
		Title:      m.Title,
		Message:    m.Message,
		Timestamp:  m.Timestamp,
		Recipients: m.Recipients,
	}
	if m.Payload != nil {
		bz, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
		}
		out.Payload = bz
	}
	return json.Marshal(out)
}

func (m *NotificationMessage) UnmarshalJSON(data []byte) error {
	var raw notificationMessageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ID = raw.ID
	m.Type = raw.Type
	m.Title = raw.Title
	m.Message = raw.Message
	m.Timestamp = raw.Timestamp
	m.Recipients = raw.Recipients

	if len(raw.Payload) == 0 {
		m.Payload = nil
		return nil
	}

	payload, err := decodePayload(raw.Type, raw.Payload)
	if err != nil {
		return err
	}
	m.Payload = payload
	return nil
}

func decodePayload(t NotificationType, data []byte) (NotificationPayload, error) {
	switch t {
	case NotificationNewProposal:
		var p NewProposalPayload
		return p, json.Unmarshal(data, &p)
	case NotificationSignatureAdded:
		var p SignatureAddedPayload
		return p, json.Unmarshal(data, &p)
	case NotificationProposalExecuted:
		var p ProposalExecutedPayload
		return p, json.Unmarshal(data, &p)
	case NotificationProposalCancelled:
		var p ProposalCancelledPayload
		return p, json.Unmarshal(data, &p)
	case NotificationProposalExpired:
		var p ProposalExpiredPayload
		return p, json.Unmarshal(data, &p)
	default:
		return nil, fmt.Errorf("unknown notification type %q", t)
	}
}
