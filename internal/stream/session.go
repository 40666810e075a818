package stream

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaycast/broadcaster/internal/encoder"
	"github.com/relaycast/broadcaster/internal/profile"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped" // terminal
	StatusCrashed  Status = "crashed" // terminal: restart ceiling exceeded
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool { return s == StatusStopped || s == StatusCrashed }

// Process is one live external encoder process. proc.Handle implements it;
// tests substitute fakes.
type Process interface {
	// Wait blocks until exit or ctx cancellation. Cancellation must not
	// terminate the process.
	Wait(ctx context.Context) (int, error)
	// Terminate gracefully stops the process group, escalating to a forced
	// kill after timeout. No-op on an exited process.
	Terminate(timeout time.Duration)
	Suspend() error
	Resume() error
	PID() int
}

// Launcher spawns the external encoder binary with the given arguments.
type Launcher func(bin string, args []string) (Process, error)

// Session is one supervised broadcast. Identity and descriptors are fixed at
// creation; runtime state is guarded by mu and mutated only through the
// Supervisor and its monitor task.
type Session struct {
	ID          uuid.UUID
	OwnerID     int64
	Source      encoder.Source
	Destination encoder.Destination
	Loop        bool
	CreatedAt   time.Time

	mu            sync.Mutex
	status        Status
	profile       profile.Profile
	requestedTier int // operator-requested tier; adaptation never steps above it
	process       Process
	restartCount  int
	cancelMonitor context.CancelFunc
	queue         *Queue // non-nil only for playlist sources
}

// View is the read-only projection of a Session exposed on the query surface.
// The stream key is always masked.
type View struct {
	ID           uuid.UUID          `json:"id"`
	OwnerID      int64              `json:"owner_id"`
	Status       Status             `json:"status"`
	SourceKind   encoder.SourceKind `json:"source_kind"`
	Tier         int                `json:"tier"`
	VideoBitrate string             `json:"video_bitrate"`
	Loop         bool               `json:"loop"`
	RestartCount int                `json:"restart_count"`
	Endpoint     string             `json:"endpoint"`
	MaskedKey    string             `json:"masked_key"`
	CreatedAt    time.Time          `json:"created_at"`
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	return View{
		ID:           s.ID,
		OwnerID:      s.OwnerID,
		Status:       s.status,
		SourceKind:   s.Source.Kind,
		Tier:         s.profile.Tier,
		VideoBitrate: s.profile.VideoBitrate,
		Loop:         s.Loop,
		RestartCount: s.restartCount,
		Endpoint:     s.Destination.URL,
		MaskedKey:    s.Destination.MaskedKey(),
		CreatedAt:    s.CreatedAt,
	}
}

// shortID renders the first uuid segment for operator-facing messages.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
