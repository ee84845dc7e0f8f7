package session

import (
	"context"
	"time"

	"github.com/KhichiDushyant/voice-agent/internal/records"
)

// watch polls for silence and call-length limits. Both limits route into
// graceful termination rather than dropping the connection.
func (s *Session) watch(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.terminate(records.CallStatusCompleted, "session context done")
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		idle := time.Since(s.lastActivity)
		elapsed := time.Since(s.startedAt)
		state := s.state
		s.mu.Unlock()

		if state >= StateEnding {
			return
		}
		// The silence clock only runs once the caller leg is live;
		// context loading and AI dialing do not count against it.
		if state >= StateAwaitingFirstUtterance && idle > s.opts.SilenceTimeout {
			s.terminate(records.CallStatusCompleted, "silence timeout")
			return
		}
		if elapsed > s.opts.MaxCallDuration {
			s.terminate(records.CallStatusCompleted, "max call duration reached")
			return
		}
	}
}
