package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cinesync/cinesync/internal/playback"
	"github.com/cinesync/cinesync/internal/playerstate"
	"github.com/cinesync/cinesync/internal/reactions"
)

const tickInterval = 250 * time.Millisecond

// follower drives a headless player from the party's shared state and
// prints what a participant would see.
type follower struct {
	ctrl    *playback.Controller
	element *playback.HeadlessElement
	bus     *reactions.Bus
	overlay *reactions.Overlay
	out     io.Writer

	lastSrc *string
	loaded  bool
}

// locatorRef is a media locator the host already uploaded; there is nothing
// local to release.
type locatorRef string

func (r locatorRef) URL() string { return string(r) }
func (r locatorRef) Revoke()     {}

func (f *follower) printState(s playerstate.PlayerState) {
	src := "none"
	if s.VideoSource != nil {
		src = *s.VideoSource
	}
	status := "paused"
	if s.IsPlaying {
		status = "playing"
	}
	fmt.Fprintf(f.out, "[state] %s %q %s at %.1fs of %.1fs\n", status, s.Title, src, s.CurrentTime, s.Duration)
}

func (f *follower) renderOverlay() {
	active := f.overlay.Active()
	if len(active) == 0 {
		return
	}
	emojis := make([]string, 0, len(active))
	for _, r := range active {
		emojis = append(emojis, r.Emoji)
	}
	fmt.Fprintf(f.out, "[reactions] %s\n", strings.Join(emojis, " "))
}

func (f *follower) printDiscussion(ev reactions.Event) {
	fmt.Fprintln(f.out, "[discussion]")
	for i, q := range ev.Questions {
		fmt.Fprintf(f.out, "  %d. %s\n", i+1, q)
	}
}

// tick advances the headless element and reports its native events.
func (f *follower) tick() {
	state := f.ctrl.State()
	if !playerstate.SourceEqual(state.VideoSource, f.lastSrc) {
		f.lastSrc = state.VideoSource
		f.loaded = false
	}
	if !f.loaded && state.VideoSource != nil && state.Duration > 0 {
		f.loaded = true
		f.element.SetDuration(state.Duration)
		f.ctrl.HandleLoadedMetadata(state.Duration)
	}

	pos, ended := f.element.Tick()
	if ended {
		f.ctrl.HandleEnded()
		return
	}
	if !f.element.Paused() {
		f.ctrl.HandleTimeUpdate(pos)
	}
}

func (f *follower) run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

// readCommands handles one command per line until in is exhausted.
func (f *follower) readCommands(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := f.command(line); err != nil {
			fmt.Fprintf(f.out, "error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("follow: reading commands failed", "error", err)
	}
}

func (f *follower) command(line string) error {
	if reactions.IsQuickReaction(line) {
		return f.bus.EmitReaction(line)
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "play":
		return f.ctrl.Play()
	case "pause":
		return f.ctrl.Pause()
	case "toggle":
		return f.ctrl.TogglePlay()
	case "mute":
		return f.ctrl.ToggleMute()
	case "seek":
		seconds, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("parse seek position: %w", err)
		}
		return f.ctrl.Seek(seconds)
	case "load":
		locator, title, _ := strings.Cut(arg, " ")
		if locator == "" {
			return fmt.Errorf("usage: load <locator> [title]")
		}
		if title == "" {
			title = locator
		}
		return f.ctrl.LoadFile(strings.TrimSpace(title), locatorRef(locator))
	case "duration":
		seconds, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		f.element.SetDuration(seconds)
		f.ctrl.HandleLoadedMetadata(seconds)
		return nil
	case "react":
		return f.bus.EmitReaction(arg)
	case "status":
		f.printState(f.ctrl.State())
		fmt.Fprintf(f.out, "[phase] %s (%s)\n", f.ctrl.Phase(), f.ctrl.Role())
		return nil
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}
