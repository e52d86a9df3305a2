package session

import (
	"time"

	"github.com/opencity/sandbox/pkg/core"
)

// Status returns the last published status. Safe from any goroutine.
func (s *Session) Status() core.SessionStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Session) publishStatus() {
	st := core.SessionStatus{
		SessionID:    s.id,
		Time:         time.Now(),
		Tick:         s.tick.Load(),
		Paused:       s.paused,
		Mode:         s.possession.Mode(),
		View:         s.possession.Camera(),
		Money:        s.economy.Money(),
		Wanted:       s.economy.Wanted(),
		Bodies:       len(s.world.Bodies()),
		TickDuration: s.tickTime,
		Outbox:       s.outbox.Len(),
	}
	pos := playerView{s}.Position()
	st.Position = [3]float64{pos.X(), pos.Y(), pos.Z()}
	if m := s.missions.Active(); m != nil {
		st.ActiveMission = m.ID
		st.MissionElapsed = m.Elapsed
	}
	if pc, ok := s.deps.Saves.(pendingCounter); ok {
		st.SaveQueue = pc.Pending()
	}

	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}
