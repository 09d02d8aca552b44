package sweeper

import (
	"context"
	"time"

	"github.com/walletmesh/quorumd/coordinator/config"
	"github.com/walletmesh/quorumd/coordinator/modules/keylock"
	"github.com/walletmesh/quorumd/coordinator/modules/logger"
	proposal_repo "github.com/walletmesh/quorumd/coordinator/repositories/proposal"
	proposal_service "github.com/walletmesh/quorumd/coordinator/services/proposal"
	"github.com/walletmesh/quorumd/coordinator/types"
)

// SweeperService periodically expires pending proposals that outlived their
// deadline. It is the backstop behind lazy expiry on the signing path; both
// run the same transition under the same per-proposal section, so they
// cannot double-fire.
type SweeperService interface {
	Run(ctx context.Context)
	SweepOnce() int
}

type BaseSweeperService struct {
	repo      proposal_repo.ProposalRepo
	proposals proposal_service.ProposalService
	locks     *keylock.KeyLock
	interval  time.Duration
	logger    logger.Logger
}

func NewSweeperService(
	repo proposal_repo.ProposalRepo,
	proposals proposal_service.ProposalService,
	locks *keylock.KeyLock,
	cfg *config.SweeperConfig,
) *BaseSweeperService {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &BaseSweeperService{
		repo:      repo,
		proposals: proposals,
		locks:     locks,
		interval:  interval,
		logger:    logger.NewLogger("sweeper"),
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *BaseSweeperService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Log("sweeper stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			if expired := s.SweepOnce(); expired > 0 {
				s.logger.Log("expired %d overdue proposals", expired)
			}
		}
	}
}

// SweepOnce scans all proposals and expires the overdue pending ones,
// returning how many it transitioned. Failures on one proposal never stop
// the scan.
func (s *BaseSweeperService) SweepOnce() int {
	proposals, err := s.repo.All()
	if err != nil {
		s.logger.Log("failed to list proposals: %v", err)
		return 0
	}

	now := time.Now()
	expired := 0
	for _, candidate := range proposals {
		if candidate.Status != types.StatusPending || !candidate.IsOverdue(now) {
			continue
		}
		if s.expireOne(candidate.ID, now) {
			expired++
		}
	}
	return expired
}

// expireOne re-checks under the proposal's section: the candidate snapshot
// may be stale by the time the lock is acquired (a racing signature could
// have executed it).
func (s *BaseSweeperService) expireOne(proposalID string, now time.Time) bool {
	unlock := s.locks.Lock(proposalID)
	defer unlock()

	p, err := s.repo.Get(proposalID)
	if err != nil {
		s.logger.Log("failed to reload proposal %s: %v", proposalID, err)
		return false
	}
	if p.Status != types.StatusPending || !p.IsOverdue(now) {
		return false
	}

	if err := s.proposals.ExpireLocked(p); err != nil {
		s.logger.Log("failed to expire proposal %s: %v", proposalID, err)
		return false
	}
	return true
}
