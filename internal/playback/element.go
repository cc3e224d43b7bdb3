package playback

import (
	"sync"
	"time"

	"github.com/cinesync/cinesync/internal/playerstate"
)

type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceFile
	SourceRemote
	SourceScreen
	SourceCamera
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceRemote:
		return "remote"
	case SourceScreen:
		return "screen"
	case SourceCamera:
		return "camera"
	default:
		return "none"
	}
}

// IsCapture reports whether the kind is a live capture.
func (k SourceKind) IsCapture() bool {
	return k == SourceScreen || k == SourceCamera
}

// Source is what the media element plays: a URL for file and remote
// sources, a stream for captures.
type Source struct {
	Kind   SourceKind
	URL    string
	Stream playerstate.MediaStream
}

// MediaElement is the local player the controller drives. Implementations
// must not call back into the Controller from these methods; native events
// are reported through the Controller's Handle* methods instead.
type MediaElement interface {
	Load(src Source)
	Unload()
	Play() error
	Pause()
	Paused() bool
	CurrentTime() float64
	Seek(seconds float64)
	SetMuted(muted bool)
}

// ObjectRef is a client-created reference to an uploaded file. URL is what
// gets published as the party's video source; Revoke releases the reference.
type ObjectRef interface {
	URL() string
	Revoke()
}

// HeadlessElement is a clock-driven MediaElement with no decoder. The
// playhead advances with wall time while playing and stops at the duration.
type HeadlessElement struct {
	mu       sync.Mutex
	now      func() time.Time
	src      Source
	playing  bool
	position float64
	anchor   time.Time
	muted    bool
	duration float64
}

func NewHeadlessElement(now func() time.Time) *HeadlessElement {
	if now == nil {
		now = time.Now
	}
	return &HeadlessElement{now: now}
}

func (e *HeadlessElement) Load(src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = src
	e.playing = false
	e.position = 0
	e.duration = 0
}

func (e *HeadlessElement) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = Source{}
	e.playing = false
	e.position = 0
	e.duration = 0
}

func (e *HeadlessElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src.Kind == SourceNone {
		return ErrNoSource
	}
	if !e.playing {
		e.playing = true
		e.anchor = e.now()
	}
	return nil
}

func (e *HeadlessElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = e.currentLocked()
	e.playing = false
}

func (e *HeadlessElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.playing
}

func (e *HeadlessElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

func (e *HeadlessElement) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	e.position = seconds
	e.anchor = e.now()
}

func (e *HeadlessElement) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
}

func (e *HeadlessElement) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// SetDuration records the media length once it is known.
func (e *HeadlessElement) SetDuration(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.duration = seconds
}

func (e *HeadlessElement) Source() Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Tick reports the playhead and whether playback just reached the end. The
// element pauses itself at the end, like a browser media element does.
func (e *HeadlessElement) Tick() (position float64, ended bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	position = e.currentLocked()
	if e.playing && e.duration > 0 && position >= e.duration {
		e.playing = false
		e.position = e.duration
		return e.duration, true
	}
	return position, false
}

func (e *HeadlessElement) currentLocked() float64 {
	if !e.playing {
		return e.position
	}
	pos := e.position + e.now().Sub(e.anchor).Seconds()
	if e.duration > 0 && pos > e.duration {
		pos = e.duration
	}
	return pos
}
