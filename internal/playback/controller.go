// Package playback bridges a local media element and a party's sync
// channel. The host drives the element and publishes; viewers follow the
// replicated document and correct their element against it.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cinesync/cinesync/internal/playerstate"
	"github.com/cinesync/cinesync/internal/syncchannel"
)

const (
	// DriftThreshold is the largest playhead difference, in seconds, a viewer
	// tolerates before hard-seeking to the host's position.
	DriftThreshold = 2.0

	// ThrottleInterval bounds how often continuous playback publishes
	// currentTime.
	ThrottleInterval = time.Second

	ScreenShareTitle = "Screen Share"
	CameraTitle      = "Camera"

	discussionTimeout = 60 * time.Second
)

var (
	ErrReadOnly         = errors.New("viewers cannot control shared playback")
	ErrNoSource         = errors.New("no media source loaded")
	ErrSourceEnded      = errors.New("media has ended; load a new source")
	ErrPermissionDenied = errors.New("capture permission denied")
	ErrCaptureBlocked   = errors.New("capture blocked by browser policy")
	ErrClosed           = errors.New("controller closed")
)

type Role int

const (
	RoleViewer Role = iota
	RoleHost
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "viewer"
}

// SyncChannel is the part of syncchannel.Channel the controller uses.
type SyncChannel interface {
	Publish(state playerstate.PlayerState)
	Subscribe(fn func(playerstate.PlayerState)) syncchannel.Unsubscribe
}

// DiscussionStarter produces post-viewing questions for a title.
type DiscussionStarter interface {
	DiscussionStarters(ctx context.Context, movieTitle string) ([]string, error)
}

// DiscussionSink displays discussion-starter questions.
type DiscussionSink interface {
	ShowDiscussion(questions []string)
}

type Notification struct {
	Title       string
	Description string
	Destructive bool
}

// Notifier surfaces non-fatal problems to the user.
type Notifier interface {
	Notify(n Notification)
}

// Capturer acquires a live capture stream. It blocks while the user answers
// the permission prompt and returns ErrPermissionDenied or ErrCaptureBlocked
// (possibly wrapped) when the capture is refused.
type Capturer interface {
	Capture(ctx context.Context, kind SourceKind) (playerstate.MediaStream, error)
}

type Config struct {
	Role        Role
	Element     MediaElement
	Channel     SyncChannel
	Starter     DiscussionStarter
	Discussions DiscussionSink
	Notifier    Notifier
	Title       string
	Now         func() time.Time
}

type Controller struct {
	role        Role
	element     MediaElement
	channel     SyncChannel
	starter     DiscussionStarter
	discussions DiscussionSink
	notifier    Notifier
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       playerstate.PlayerState
	phase       Phase
	kind        SourceKind
	ref         ObjectRef
	lastPublish time.Time
	lastRemote  *playerstate.PlayerState
	unsubscribe syncchannel.Unsubscribe
	closed      bool
}

func New(cfg Config) *Controller {
	if cfg.Element == nil {
		panic("playback: media element is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = logNotifier{}
	}

	c := &Controller{
		role:        cfg.Role,
		element:     cfg.Element,
		channel:     cfg.Channel,
		starter:     cfg.Starter,
		discussions: cfg.Discussions,
		notifier:    notifier,
		now:         now,
		state:       playerstate.New(cfg.Title),
		phase:       PhaseIdle,
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if c.channel != nil {
		c.unsubscribe = c.channel.Subscribe(c.applyRemote)
	}
	return c
}

func (c *Controller) Role() Role { return c.role }

// State returns a copy of the local player state.
func (c *Controller) State() playerstate.PlayerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) SourceKind() SourceKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind
}

// --- host controls ---

func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkControl(); err != nil {
		return err
	}
	c.playLocked()
	return nil
}

func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkControl(); err != nil {
		return err
	}
	c.element.Pause()
	c.state.IsPlaying = false
	c.state.CurrentTime = c.element.CurrentTime()
	c.transition(EventPause)
	c.publishLocked()
	return nil
}

func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	playing := c.state.IsPlaying
	c.mu.Unlock()
	if playing {
		return c.Pause()
	}
	return c.Play()
}

func (c *Controller) Seek(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkControl(); err != nil {
		return err
	}
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	if c.state.Duration > 0 && seconds > c.state.Duration {
		seconds = c.state.Duration
	}
	c.element.Seek(seconds)
	c.state.CurrentTime = seconds
	c.publishLocked()
	return nil
}

// ToggleMute flips mute on the local element. Viewers keep the change to
// themselves; the host publishes it as the party default.
func (c *Controller) ToggleMute() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	muted := !c.state.IsMuted
	c.element.SetMuted(muted)
	c.state.IsMuted = muted
	if c.role == RoleHost {
		c.publishLocked()
	}
	return nil
}

// SetFullscreen mirrors the browser's fullscreen state. It is display-only
// and never reconciled across participants.
func (c *Controller) SetFullscreen(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.IsFullscreen == on {
		return
	}
	c.state.IsFullscreen = on
	if c.role == RoleHost {
		c.publishLocked()
	}
}

// LoadFile adopts an uploaded file after releasing the current source.
func (c *Controller) LoadFile(name string, ref ObjectRef) error {
	if ref == nil {
		return errors.New("object reference is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkHost(); err != nil {
		return err
	}

	c.releaseLocked()
	c.transition(EventSourceCleared)
	url := ref.URL()
	c.ref = ref
	c.kind = SourceFile
	c.state.VideoSource = &url
	c.state.Title = name
	c.state.IsPlaying = false
	c.state.Stream = nil
	c.state.Duration = 0
	c.state.CurrentTime = 0
	c.element.Load(Source{Kind: SourceFile, URL: url})
	c.transition(EventSourceAdopted)
	c.publishLocked()
	return nil
}

// StartCapture replaces the current source with a live screen or camera
// capture. The stream stays local: the published document carries a null
// source.
func (c *Controller) StartCapture(ctx context.Context, capturer Capturer, kind SourceKind) error {
	if !kind.IsCapture() {
		return fmt.Errorf("%s is not a capture source", kind)
	}

	c.mu.Lock()
	if err := c.checkHost(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.releaseLocked()
	c.resetToNoSourceLocked()
	c.mu.Unlock()

	stream, err := capturer.Capture(ctx, kind)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.notifier.Notify(captureNotification(kind, err))
		c.publishLocked()
		return err
	}
	if c.closed {
		stream.StopTracks()
		return ErrClosed
	}

	c.kind = kind
	c.state.Stream = stream
	c.state.VideoSource = nil
	c.state.Title = captureTitle(kind)
	c.element.Load(Source{Kind: kind, Stream: stream})
	c.transition(EventSourceAdopted)
	if err := c.element.Play(); err != nil {
		slog.Warn("playback: capture preview rejected", "error", err)
	} else {
		c.state.IsPlaying = true
		c.transition(EventPlay)
	}
	c.publishLocked()
	return nil
}

// EndCapture handles the capture track ending (the user stopped sharing).
func (c *Controller) EndCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.kind.IsCapture() {
		return
	}
	c.releaseLocked()
	c.resetToNoSourceLocked()
	if c.role == RoleHost {
		c.publishLocked()
	}
}

// --- native element events ---

func (c *Controller) HandleLoadedMetadata(duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = 0
	}
	c.state.Duration = duration
	c.transition(EventMetadataLoaded)

	if c.role == RoleHost {
		c.publishLocked()
		return
	}
	if c.lastRemote != nil {
		c.reconcileLocked(*c.lastRemote)
	}
}

func (c *Controller) HandlePlay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.transition(EventPlay)
	if c.state.IsPlaying {
		return
	}
	c.state.IsPlaying = true
	if c.role == RoleHost {
		c.publishLocked()
	}
}

func (c *Controller) HandlePause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.transition(EventPause)
	if !c.state.IsPlaying {
		return
	}
	c.state.IsPlaying = false
	if c.role == RoleHost {
		c.publishLocked()
	}
}

// HandleTimeUpdate records the playhead. The host publishes it at most once
// per ThrottleInterval.
func (c *Controller) HandleTimeUpdate(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state.CurrentTime = seconds
	if c.role != RoleHost {
		return
	}
	if c.now().Sub(c.lastPublish) >= ThrottleInterval {
		c.publishLocked()
	}
}

// HandleEnded handles natural end of media. For a titled file source it
// requests discussion starters in the background, once per source.
func (c *Controller) HandleEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if !c.transition(EventEnded) {
		return
	}
	c.state.IsPlaying = false
	if c.role == RoleHost {
		c.publishLocked()
	}

	title := c.state.Title
	if c.kind.IsCapture() || c.kind == SourceNone || !isGenuineTitle(title) || c.starter == nil {
		return
	}
	c.wg.Add(1)
	go c.requestDiscussion(title)
}

// Close detaches from the channel, releases owned media and waits for
// in-flight discussion requests to finish or be cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.releaseLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// --- viewer reconciliation ---

func (c *Controller) applyRemote(remote playerstate.PlayerState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.role == RoleHost {
		return
	}

	snapshot := remote
	c.lastRemote = &snapshot

	if !playerstate.SourceEqual(remote.VideoSource, c.state.VideoSource) {
		c.adoptRemoteSourceLocked(remote.VideoSource)
	}

	c.state.IsPlaying = remote.IsPlaying
	c.state.Title = remote.Title
	c.state.CurrentTime = remote.CurrentTime
	if c.state.Duration == 0 {
		c.state.Duration = remote.Duration
	}

	c.reconcileLocked(remote)
}

func (c *Controller) adoptRemoteSourceLocked(src *string) {
	c.element.Unload()
	c.transition(EventSourceCleared)
	c.state.Duration = 0

	if src == nil {
		c.kind = SourceNone
		c.state.VideoSource = nil
		return
	}
	url := *src
	c.kind = SourceRemote
	c.state.VideoSource = &url
	c.element.Load(Source{Kind: SourceRemote, URL: url})
	c.transition(EventSourceAdopted)
}

func (c *Controller) reconcileLocked(remote playerstate.PlayerState) {
	if c.phase == PhaseIdle || c.phase == PhaseEnded {
		return
	}

	if remote.IsPlaying && c.element.Paused() {
		if err := c.element.Play(); err != nil {
			slog.Warn("playback: play rejected", "error", err)
			c.state.IsPlaying = false
		} else {
			c.transition(EventPlay)
		}
	} else if !remote.IsPlaying && !c.element.Paused() {
		c.element.Pause()
		c.transition(EventPause)
	}

	if math.Abs(c.element.CurrentTime()-remote.CurrentTime) > DriftThreshold {
		c.element.Seek(remote.CurrentTime)
	}
}

// --- helpers ---

func (c *Controller) checkHost() error {
	if c.closed {
		return ErrClosed
	}
	if c.role != RoleHost {
		return ErrReadOnly
	}
	return nil
}

func (c *Controller) checkControl() error {
	if err := c.checkHost(); err != nil {
		return err
	}
	switch c.phase {
	case PhaseIdle:
		return ErrNoSource
	case PhaseEnded:
		return ErrSourceEnded
	}
	return nil
}

func (c *Controller) playLocked() {
	if err := c.element.Play(); err != nil {
		slog.Warn("playback: play rejected", "error", err)
		c.state.IsPlaying = false
		return
	}
	c.state.IsPlaying = true
	c.state.CurrentTime = c.element.CurrentTime()
	c.transition(EventPlay)
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	if c.role != RoleHost || c.channel == nil {
		return
	}
	c.lastPublish = c.now()
	c.channel.Publish(c.state)
}

// transition applies e and reports whether it was legal in the current phase.
func (c *Controller) transition(e Event) bool {
	next, ok := Next(c.phase, e)
	if !ok {
		slog.Debug("playback: ignored event", "phase", c.phase.String(), "event", e.String())
		return false
	}
	c.phase = next
	return true
}

// releaseLocked stops the capture and revokes the file reference currently
// owned by this client. Each resource is released exactly once.
func (c *Controller) releaseLocked() {
	if c.state.Stream != nil {
		c.state.Stream.StopTracks()
		c.state.Stream = nil
	}
	if c.ref != nil {
		c.ref.Revoke()
		c.ref = nil
	}
	if c.kind != SourceNone {
		c.element.Unload()
	}
}

func (c *Controller) resetToNoSourceLocked() {
	c.kind = SourceNone
	c.state.VideoSource = nil
	c.state.IsPlaying = false
	c.state.Duration = 0
	c.state.CurrentTime = 0
	c.state.Title = playerstate.DefaultTitle
	c.transition(EventSourceCleared)
}

func (c *Controller) requestDiscussion(title string) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, discussionTimeout)
	defer cancel()

	questions, err := c.starter.DiscussionStarters(ctx, title)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		slog.Warn("playback: discussion starters failed", "title", title, "error", err)
		c.notifier.Notify(Notification{
			Title:       "Could not generate discussion starters",
			Description: err.Error(),
			Destructive: true,
		})
		return
	}
	if c.discussions != nil {
		c.discussions.ShowDiscussion(questions)
	}
}

func isGenuineTitle(title string) bool {
	return title != "" && title != playerstate.DefaultTitle &&
		title != ScreenShareTitle && title != CameraTitle
}

func captureTitle(kind SourceKind) string {
	if kind == SourceCamera {
		return CameraTitle
	}
	return ScreenShareTitle
}

func captureNotification(kind SourceKind, err error) Notification {
	label := captureTitle(kind)
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return Notification{
			Title:       label + " Failed",
			Description: "Permission was denied. Please try again.",
			Destructive: true,
		}
	case errors.Is(err, ErrCaptureBlocked):
		return Notification{
			Title:       label + " Blocked",
			Description: "Your browser or environment has blocked capture for security reasons. Try opening the app in a new tab.",
			Destructive: true,
		}
	default:
		slog.Error("playback: capture failed", "kind", kind.String(), "error", err)
		return Notification{
			Title:       label + " Failed",
			Description: "An unexpected error occurred while starting the capture.",
			Destructive: true,
		}
	}
}

type logNotifier struct{}

func (logNotifier) Notify(n Notification) {
	slog.Warn("notification", "title", n.Title, "description", n.Description)
}
