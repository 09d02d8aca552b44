package notifier

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/walletmesh/quorumd/coordinator/modules/logger"
	"github.com/walletmesh/quorumd/coordinator/types"
	"github.com/walletmesh/quorumd/notifylog"
)

const defaultHistorySize = 64

// PendingLister is the slice of the proposal store resync needs. The
// notifier must not depend on the whole proposal service: the proposal
// service itself publishes through the notifier.
type PendingLister interface {
	ListPendingForUser(userID string) ([]*types.Proposal, error)
}

// ResyncResult is the full current state a reconnecting device needs: the
// same pending set a continuously-connected device would have, plus a
// bounded recent-notification history.
type ResyncResult struct {
	PendingProposals    []*types.Proposal            `json:"pending_proposals"`
	RecentNotifications []*types.NotificationMessage `json:"recent_notifications"`
}

// NotifierService fans proposal state changes out to every live device
// channel of each recipient, mirrors them onto asynchronous side channels,
// and serves the pull-based resync path.
type NotifierService interface {
	Publish(msg *types.NotificationMessage)
	Subscribe(userID string, ws *websocket.Conn, device *types.DeviceInfo) string
	Resync(userID string) (*ResyncResult, error)
	SetPendingLister(lister PendingLister)
	ConnectionCount(userID string) int
	Close()
}

type BaseNotifierService struct {
	// mu guards both the connection table and the history rings.
	mu          sync.Mutex
	conns       map[string]map[string]*Connection
	history     map[string][]*types.NotificationMessage
	historySize int

	sideChannels []notifylog.Log
	lister       PendingLister
	logger       logger.Logger
}

func NewNotifierService(historySize int, sideChannels ...notifylog.Log) *BaseNotifierService {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &BaseNotifierService{
		conns:        make(map[string]map[string]*Connection),
		history:      make(map[string][]*types.NotificationMessage),
		historySize:  historySize,
		sideChannels: sideChannels,
		logger:       logger.NewLogger("notifier"),
	}
}

func (s *BaseNotifierService) SetPendingLister(lister PendingLister) {
	s.lister = lister
}

// Publish delivers msg to every live connection of every recipient and,
// independently, appends it to each asynchronous side channel. Side-channel
// failures are logged and swallowed: they must never fail the signing path.
func (s *BaseNotifierService) Publish(msg *types.NotificationMessage) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	for _, recipient := range msg.Recipients {
		ring := append(s.history[recipient], msg)
		if len(ring) > s.historySize {
			ring = ring[len(ring)-s.historySize:]
		}
		s.history[recipient] = ring

		for _, conn := range s.conns[recipient] {
			conn.push(msg)
		}
	}
	s.mu.Unlock()

	if len(s.sideChannels) > 0 {
		go s.appendToSideChannels(msg)
	}
}

func (s *BaseNotifierService) appendToSideChannels(msg *types.NotificationMessage) {
	payloadBz, err := json.Marshal(msg)
	if err != nil {
		s.logger.Log("failed to marshal notification %s for side channels: %v", msg.ID, err)
		return
	}

	records := make([]notifylog.Record, 0, len(msg.Recipients))
	for _, recipient := range msg.Recipients {
		records = append(records, notifylog.Record{
			ID:        uuid.New().String(),
			Recipient: recipient,
			Type:      msg.Type,
			Payload:   payloadBz,
			CreatedAt: msg.Timestamp,
		})
	}

	for _, channel := range s.sideChannels {
		if err := channel.Append(records...); err != nil {
			s.logger.Log("side channel delivery failed for notification %s: %v", msg.ID, err)
		}
	}
}

// Subscribe registers a device's live channel and starts its pumps.
// Multiple simultaneous connections per user are permitted; teardown of one
// leaves the others untouched.
func (s *BaseNotifierService) Subscribe(userID string, ws *websocket.Conn, device *types.DeviceInfo) string {
	connID := uuid.New().String()
	conn := &Connection{
		id:     connID,
		userID: userID,
		device: device,
		ws:     ws,
		send:   make(chan *types.NotificationMessage, sendBufferSize),
		logger: s.logger,
	}
	conn.unregister = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if userConns, ok := s.conns[userID]; ok {
			delete(userConns, connID)
			if len(userConns) == 0 {
				delete(s.conns, userID)
			}
		}
	}

	s.mu.Lock()
	if _, ok := s.conns[userID]; !ok {
		s.conns[userID] = make(map[string]*Connection)
	}
	s.conns[userID][connID] = conn
	s.mu.Unlock()

	go conn.writePump()
	go conn.readPump()

	s.logger.Log("device %s subscribed for user %s (connection %s)", deviceName(device), userID, connID)
	return connID
}

func deviceName(device *types.DeviceInfo) string {
	if device == nil || device.DeviceID == "" {
		return "unknown"
	}
	return device.DeviceID
}

// Resync returns the caller's full current pending set rather than a delta,
// so a device can safely call it after any suspected gap.
func (s *BaseNotifierService) Resync(userID string) (*ResyncResult, error) {
	var (
		pending []*types.Proposal
		err     error
	)
	if s.lister != nil {
		pending, err = s.lister.ListPendingForUser(userID)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	ring := s.history[userID]
	recent := make([]*types.NotificationMessage, len(ring))
	copy(recent, ring)
	s.mu.Unlock()

	return &ResyncResult{
		PendingProposals:    pending,
		RecentNotifications: recent,
	}, nil
}

func (s *BaseNotifierService) ConnectionCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns[userID])
}

func (s *BaseNotifierService) Close() {
	s.mu.Lock()
	conns := make([]*Connection, 0)
	for _, userConns := range s.conns {
		for _, conn := range userConns {
			conns = append(conns, conn)
		}
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}

	for _, channel := range s.sideChannels {
		if err := channel.Close(); err != nil {
			s.logger.Log("failed to close side channel: %v", err)
		}
	}
}
