// Package stream supervises long-running external encoder processes: it owns
// the live session registry, drives state transitions, bounds crash-restart
// cycles, and swaps quality profiles without losing session identity.
package stream

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycast/broadcaster/internal/encoder"
	"github.com/relaycast/broadcaster/internal/profile"
)

// Notifier informs an owner of a state change. Implementations must be
// non-blocking from the supervisor's perspective; delivery failures are
// swallowed by the implementation.
type Notifier func(ownerID int64, text string)

// Store mirrors session state to the persistence collaborator. All calls are
// best-effort: a store failure never blocks or fails a state transition.
type Store interface {
	CreateSession(ctx context.Context, rec SessionRecord) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateRestartCount(ctx context.Context, id uuid.UUID, count int) error
	UpdateTier(ctx context.Context, id uuid.UUID, tier int) error
	AddItem(ctx context.Context, sessionID uuid.UUID, item Item, position int) error
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
	MarkItemPlayed(ctx context.Context, itemID uuid.UUID) error
}

// SessionRecord is the persisted shape of a session.
type SessionRecord struct {
	ID           uuid.UUID
	OwnerID      int64
	Source       encoder.Source
	Destination  encoder.Destination
	Tier         int
	Loop         bool
	Status       Status
	RestartCount int
}

// Options configures supervision policy.
type Options struct {
	RestartCeiling        int           // unintentional exits beyond this crash the session
	RestartBackoff        time.Duration // fixed wait before each relaunch
	StopTimeout           time.Duration // graceful termination wait
	SingleSessionPerOwner bool
	DefaultDestination    encoder.Destination // used when a start request has none
}

// Supervisor owns all live sessions. Each session gets one monitor goroutine
// that waits on process exit; all mutation of a session happens under its
// lock, so operator calls and the monitor never race.
type Supervisor struct {
	opts     Options
	profiles *profile.Registry
	builder  *encoder.Builder
	launch   Launcher
	store    Store    // may be nil
	notify   Notifier // may be nil
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	ctx    context.Context // bounds backoff waits; done on Close
	cancel context.CancelFunc
}

// New creates a Supervisor. store and notify may be nil.
func New(opts Options, profiles *profile.Registry, builder *encoder.Builder, launch Launcher, store Store, notify Notifier, logger *zap.Logger) *Supervisor {
	if opts.RestartCeiling <= 0 {
		opts.RestartCeiling = 5
	}
	if opts.RestartBackoff <= 0 {
		opts.RestartBackoff = 5 * time.Second
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		opts:     opts,
		profiles: profiles,
		builder:  builder,
		launch:   launch,
		store:    store,
		notify:   notify,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start creates a new session in the running state: builds encoder arguments,
// spawns the process, and launches the monitor task. The same typed operation
// serves operator requests and internal triggers such as boot-time restore.
func (s *Supervisor) Start(ownerID int64, src encoder.Source, dst encoder.Destination, tier int, loop bool) (View, error) {
	if dst.URL == "" {
		dst = s.opts.DefaultDestination
	}
	if dst.URL == "" {
		return View{}, ErrNoDestination
	}
	if src.Kind == encoder.KindPlaylist && len(src.Items) == 0 {
		return View{}, ErrEmptyQueue
	}
	prof := s.profiles.Resolve(tier)

	s.mu.Lock()
	if s.opts.SingleSessionPerOwner {
		for _, sess := range s.sessions {
			if sess.OwnerID == ownerID {
				s.mu.Unlock()
				return View{}, ErrAlreadyRunning
			}
		}
	}

	sess := &Session{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Source:        src,
		Destination:   dst,
		Loop:          loop,
		CreatedAt:     time.Now(),
		status:        StatusRunning,
		profile:       prof,
		requestedTier: prof.Tier,
	}
	if src.Kind == encoder.KindPlaylist {
		sess.queue = NewQueue(src.Items)
	}

	args, err := s.buildArgsLocked(sess)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	p, err := s.launch(s.builder.FFmpegPath(), args)
	if err != nil {
		s.mu.Unlock()
		s.builder.RemoveManifest(sess.ID.String())
		return View{}, fmt.Errorf("spawn encoder: %w", err)
	}
	sess.process = p
	s.sessions[sess.ID] = sess
	s.startMonitorLocked(sess, p)
	view := sess.viewLocked()
	s.mu.Unlock()

	s.persist(func(ctx context.Context, st Store) error {
		return st.CreateSession(ctx, SessionRecord{
			ID: sess.ID, OwnerID: ownerID, Source: src, Destination: dst,
			Tier: prof.Tier, Loop: loop, Status: StatusRunning,
		})
	})
	if sess.queue != nil {
		for i, item := range sess.queue.Items() {
			item, i := item, i
			s.persist(func(ctx context.Context, st Store) error {
				return st.AddItem(ctx, sess.ID, item, i)
			})
		}
	}

	s.logger.Info("stream started",
		zap.String("session_id", sess.ID.String()),
		zap.Int64("owner_id", ownerID),
		zap.String("source_kind", string(src.Kind)),
		zap.Int("tier", prof.Tier),
		zap.Int("pid", p.PID()),
	)
	return view, nil
}

// Stop transitions a live session to stopped and removes it from the
// registry. The monitor task is cancelled before the process is terminated,
// so the resulting exit is never misread as a crash. Returns whether a live
// session was found.
func (s *Supervisor) Stop(id uuid.UUID) bool {
	sess := s.lookup(id)
	if sess == nil {
		return false
	}

	sess.mu.Lock()
	if sess.status == StatusStopping || sess.status.Terminal() {
		sess.mu.Unlock()
		return false
	}
	sess.status = StatusStopping
	if sess.cancelMonitor != nil {
		sess.cancelMonitor()
	}
	p := sess.process
	sess.process = nil
	sess.mu.Unlock()

	if p != nil {
		p.Terminate(s.opts.StopTimeout)
	}

	sess.mu.Lock()
	sess.status = StatusStopped
	sess.mu.Unlock()

	s.remove(id)
	s.builder.RemoveManifest(id.String())
	s.persist(func(ctx context.Context, st Store) error {
		return st.UpdateStatus(ctx, id, StatusStopped)
	})
	s.logger.Info("stream stopped", zap.String("session_id", id.String()))
	return true
}

// Pause suspends the encoder process. Only valid from running; on platforms
// without suspend support the error is returned and state is unchanged.
func (s *Supervisor) Pause(id uuid.UUID) error {
	sess := s.lookup(id)
	if sess == nil {
		return ErrNotFound
	}
	sess.mu.Lock()
	if sess.status != StatusRunning {
		sess.mu.Unlock()
		return ErrNotRunning
	}
	if err := sess.process.Suspend(); err != nil {
		sess.mu.Unlock()
		return err
	}
	sess.status = StatusPaused
	sess.mu.Unlock()

	s.persist(func(ctx context.Context, st Store) error {
		return st.UpdateStatus(ctx, id, StatusPaused)
	})
	s.logger.Info("stream paused", zap.String("session_id", id.String()))
	return nil
}

// Resume continues a paused encoder process.
func (s *Supervisor) Resume(id uuid.UUID) error {
	sess := s.lookup(id)
	if sess == nil {
		return ErrNotFound
	}
	sess.mu.Lock()
	if sess.status != StatusPaused {
		sess.mu.Unlock()
		return ErrNotPaused
	}
	if err := sess.process.Resume(); err != nil {
		sess.mu.Unlock()
		return err
	}
	sess.status = StatusRunning
	sess.mu.Unlock()

	s.persist(func(ctx context.Context, st Store) error {
		return st.UpdateStatus(ctx, id, StatusRunning)
	})
	s.logger.Info("stream resumed", zap.String("session_id", id.String()))
	return nil
}

// ChangeProfile rebuilds the session's process under a new quality tier while
// preserving session identity. Only valid from running.
func (s *Supervisor) ChangeProfile(id uuid.UUID, tier int) (View, error) {
	sess := s.lookup(id)
	if sess == nil {
		return View{}, ErrNotFound
	}
	next := s.profiles.Resolve(tier)

	sess.mu.Lock()
	if sess.status != StatusRunning {
		sess.mu.Unlock()
		return View{}, ErrNotRunning
	}
	sess.requestedTier = next.Tier
	if next.Tier == sess.profile.Tier {
		view := sess.viewLocked()
		sess.mu.Unlock()
		return view, nil
	}
	err := s.swapProfileLocked(sess, next)
	view := sess.viewLocked()
	sess.mu.Unlock()

	if err != nil {
		s.finalizeCrashedSwap(sess, err)
		return View{}, err
	}
	s.persist(func(ctx context.Context, st Store) error {
		return st.UpdateTier(ctx, id, next.Tier)
	})
	s.logger.Info("stream profile changed",
		zap.String("session_id", id.String()),
		zap.Int("tier", next.Tier),
	)
	return view, nil
}

// Get returns the view of a live session.
func (s *Supervisor) Get(id uuid.UUID) (View, bool) {
	sess := s.lookup(id)
	if sess == nil {
		return View{}, false
	}
	return sess.View(), true
}

// ListAll returns views of every live session, ordered by creation time.
func (s *Supervisor) ListAll() []View {
	return s.list(func(*Session) bool { return true })
}

// ListForOwner returns views of the owner's live sessions, ordered by
// creation time.
func (s *Supervisor) ListForOwner(ownerID int64) []View {
	return s.list(func(sess *Session) bool { return sess.OwnerID == ownerID })
}

// Close stops the adaptation/backoff clock and terminates every live session.
func (s *Supervisor) Close() {
	s.cancel()
	for _, v := range s.ListAll() {
		s.Stop(v.ID)
	}
}

// ── playlist operations ─────────────────────────────────────────────────────

// Playlist returns the session's items in order.
func (s *Supervisor) Playlist(id uuid.UUID) ([]Item, error) {
	sess, err := s.playlistSession(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.queue.Items(), nil
}

// AddPlaylistItem appends an unplayed item. It takes effect on the next
// process rebuild (crash restart or profile change).
func (s *Supervisor) AddPlaylistItem(id uuid.UUID, path, title string) (Item, error) {
	sess, err := s.playlistSession(id)
	if err != nil {
		return Item{}, err
	}
	sess.mu.Lock()
	item := *sess.queue.Append(path, title)
	position := sess.queue.Len() - 1
	sess.mu.Unlock()

	s.persist(func(ctx context.Context, st Store) error {
		return st.AddItem(ctx, id, item, position)
	})
	return item, nil
}

// RemovePlaylistItem removes an unplayed item from the queue.
func (s *Supervisor) RemovePlaylistItem(id, itemID uuid.UUID) error {
	sess, err := s.playlistSession(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	err = sess.queue.Remove(itemID)
	sess.mu.Unlock()
	if err != nil {
		return err
	}
	s.persist(func(ctx context.Context, st Store) error {
		return st.RemoveItem(ctx, itemID)
	})
	return nil
}

// AdvancePlaylist returns the next unplayed item in position order.
func (s *Supervisor) AdvancePlaylist(id uuid.UUID) (Item, error) {
	sess, err := s.playlistSession(id)
	if err != nil {
		return Item{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.queue.Advance()
}

// MarkPlaylistItemPlayed sets an item's played marker, excluding it from
// future restart manifests.
func (s *Supervisor) MarkPlaylistItemPlayed(id, itemID uuid.UUID) error {
	sess, err := s.playlistSession(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	err = sess.queue.MarkPlayed(itemID)
	sess.mu.Unlock()
	if err != nil {
		return err
	}
	s.persist(func(ctx context.Context, st Store) error {
		return st.MarkItemPlayed(ctx, itemID)
	})
	return nil
}

// ── internals ───────────────────────────────────────────────────────────────

func (s *Supervisor) lookup(id uuid.UUID) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *Supervisor) remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Supervisor) list(keep func(*Session) bool) []View {
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if keep(sess) {
			live = append(live, sess)
		}
	}
	s.mu.Unlock()

	views := make([]View, 0, len(live))
	for _, sess := range live {
		views = append(views, sess.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views
}

func (s *Supervisor) playlistSession(id uuid.UUID) (*Session, error) {
	sess := s.lookup(id)
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.queue == nil {
		return nil, ErrNotPlaylist
	}
	return sess, nil
}

// buildArgsLocked rebuilds encoder arguments from the session's current
// source and profile. For playlists the source is narrowed to the unplayed
// items so a restart never replays delivered content. Caller holds sess.mu
// (or exclusively owns sess during Start).
func (s *Supervisor) buildArgsLocked(sess *Session) ([]string, error) {
	src := sess.Source
	if sess.queue != nil {
		src = encoder.PlaylistSource(sess.queue.Unplayed())
	}
	return s.builder.Build(sess.ID.String(), src, sess.Destination, sess.profile, sess.Loop)
}

// startMonitorLocked launches the monitor goroutine bound to p. Caller holds
// sess.mu (or exclusively owns sess during Start).
func (s *Supervisor) startMonitorLocked(sess *Session, p Process) {
	mctx, cancel := context.WithCancel(context.Background())
	sess.cancelMonitor = cancel
	go func() {
		code, err := p.Wait(mctx)
		if err != nil {
			// Monitor cancelled: an intentional stop or profile swap owns the
			// process now. No further session mutation from this task.
			return
		}
		s.onUnexpectedExit(sess, p, code)
	}()
}

// onUnexpectedExit applies the bounded-restart policy after a process exit
// that was not operator-initiated.
func (s *Supervisor) onUnexpectedExit(sess *Session, p Process, code int) {
	sess.mu.Lock()
	// Stale monitor (process already replaced) or a transition already in
	// flight: this exit is not ours to handle.
	if sess.process != p || (sess.status != StatusRunning && sess.status != StatusPaused) {
		sess.mu.Unlock()
		return
	}
	sess.restartCount++
	count := sess.restartCount
	sess.mu.Unlock()

	s.logger.Warn("encoder exited unexpectedly",
		zap.String("session_id", sess.ID.String()),
		zap.Int("exit_code", code),
		zap.Int("restart_count", count),
	)
	s.persist(func(ctx context.Context, st Store) error {
		return st.UpdateRestartCount(ctx, sess.ID, count)
	})

	if count > s.opts.RestartCeiling {
		s.finalizeCrashed(sess)
		s.notifyOwner(sess.OwnerID, fmt.Sprintf(
			"Stream %s stopped after %d crashes.", shortID(sess.ID), s.opts.RestartCeiling))
		return
	}

	s.notifyOwner(sess.OwnerID, fmt.Sprintf(
		"Stream %s crashed (exit %d). Restarting (%d/%d)…",
		shortID(sess.ID), code, count, s.opts.RestartCeiling))

	select {
	case <-time.After(s.opts.RestartBackoff):
	case <-s.ctx.Done():
		return
	}
	s.relaunch(sess, p)
}

// relaunch spawns a replacement process after the backoff, unless the session
// was stopped or swapped in the meantime.
func (s *Supervisor) relaunch(sess *Session, old Process) {
	sess.mu.Lock()
	if sess.process != old || (sess.status != StatusRunning && sess.status != StatusPaused) {
		sess.mu.Unlock()
		return
	}
	args, err := s.buildArgsLocked(sess)
	var p Process
	if err == nil {
		p, err = s.launch(s.builder.FFmpegPath(), args)
	}
	if err != nil {
		sess.status = StatusCrashed
		sess.process = nil
		sess.mu.Unlock()
		s.remove(sess.ID)
		s.builder.RemoveManifest(sess.ID.String())
		s.persist(func(ctx context.Context, st Store) error {
			return st.UpdateStatus(ctx, sess.ID, StatusCrashed)
		})
		s.logger.Error("stream relaunch failed", zap.String("session_id", sess.ID.String()), zap.Error(err))
		s.notifyOwner(sess.OwnerID, fmt.Sprintf("Stream %s could not be restarted.", shortID(sess.ID)))
		return
	}
	sess.process = p
	sess.status = StatusRunning
	s.startMonitorLocked(sess, p)
	sess.mu.Unlock()

	s.persist(func(ctx context.Context, st Store) error {
		return st.UpdateStatus(ctx, sess.ID, StatusRunning)
	})
	s.logger.Info("stream relaunched", zap.String("session_id", sess.ID.String()), zap.Int("pid", p.PID()))
}

// swapProfileLocked atomically replaces the running process with one built
// from next. The old handle's monitor is cancelled before the old process is
// terminated, and the new monitor starts before the lock is released, so
// there is no window where the session is double- or un-watched. Caller
// holds sess.mu. On error the session is left crashed; the caller finalizes.
func (s *Supervisor) swapProfileLocked(sess *Session, next profile.Profile) error {
	if sess.cancelMonitor != nil {
		sess.cancelMonitor()
	}
	old := sess.process
	sess.process = nil
	if old != nil {
		old.Terminate(s.opts.StopTimeout)
	}

	prev := sess.profile
	sess.profile = next
	args, err := s.buildArgsLocked(sess)
	var p Process
	if err == nil {
		p, err = s.launch(s.builder.FFmpegPath(), args)
	}
	if err != nil {
		sess.profile = prev
		sess.status = StatusCrashed
		return fmt.Errorf("profile swap: %w", err)
	}
	sess.process = p
	s.startMonitorLocked(sess, p)
	return nil
}

// finalizeCrashed marks the session crashed and drops it from the registry.
func (s *Supervisor) finalizeCrashed(sess *Session) {
	sess.mu.Lock()
	sess.status = StatusCrashed
	if sess.cancelMonitor != nil {
		sess.cancelMonitor()
	}
	sess.process = nil
	sess.mu.Unlock()

	s.remove(sess.ID)
	s.builder.RemoveManifest(sess.ID.String())
	s.persist(func(ctx context.Context, st Store) error {
		return st.UpdateStatus(ctx, sess.ID, StatusCrashed)
	})
	s.logger.Error("stream crashed permanently", zap.String("session_id", sess.ID.String()))
}

// finalizeCrashedSwap cleans up after a failed profile swap, outside the
// session lock.
func (s *Supervisor) finalizeCrashedSwap(sess *Session, cause error) {
	s.remove(sess.ID)
	s.builder.RemoveManifest(sess.ID.String())
	s.persist(func(ctx context.Context, st Store) error {
		return st.UpdateStatus(ctx, sess.ID, StatusCrashed)
	})
	s.logger.Error("profile swap failed, session crashed",
		zap.String("session_id", sess.ID.String()), zap.Error(cause))
	s.notifyOwner(sess.OwnerID, fmt.Sprintf("Stream %s failed during quality change.", shortID(sess.ID)))
}

// persist runs a best-effort store update with a bounded context.
func (s *Supervisor) persist(op func(ctx context.Context, st Store) error) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := op(ctx, s.store); err != nil {
		s.logger.Warn("session store update failed", zap.Error(err))
	}
}

// notifyOwner delivers fire-and-forget; it never blocks a state transition.
func (s *Supervisor) notifyOwner(ownerID int64, text string) {
	if s.notify == nil {
		return
	}
	go s.notify(ownerID, text)
}
