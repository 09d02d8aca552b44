package notifylog

import (
	"time"

	"github.com/walletmesh/quorumd/coordinator/types"
)

// Record is one notification delivery written to an asynchronous side
// channel, one record per recipient.
type Record struct {
	ID        string                 `json:"id"`
	Recipient string                 `json:"recipient"`
	Type      types.NotificationType `json:"type"`
	Payload   []byte                 `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
	Offset    uint64                 `json:"offset"`
}

// Log is an append-only notification log. Appends are best-effort from the
// caller's point of view: a failing side channel must never block or fail
// the signing path, so the fanout hub logs and swallows errors from here.
type Log interface {
	Append(records ...Record) error
	GetRecords(offset uint64) ([]Record, error)
	Close() error
}
