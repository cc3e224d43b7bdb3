// Package playerstate defines the replicated player document shared by a
// party's host and viewers, and the rules for turning local state into it.
package playerstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// DefaultTitle is shown before any media is adopted.
const DefaultTitle = "Movie Title"

// ErrEmptyDocument is returned by Decode for an absent or null document.
var ErrEmptyDocument = errors.New("empty player document")

// MediaStream is a live capture handle (screen share or camera). It belongs
// to the client that produced it and is never replicated.
type MediaStream interface {
	StopTracks()
}

type PlayerState struct {
	IsPlaying    bool
	IsMuted      bool
	IsFullscreen bool
	VideoSource  *string
	Stream       MediaStream
	Duration     float64
	CurrentTime  float64
	Title        string
}

// Record is the wire document stored per party. VideoSrc carries no
// omitempty: a missing source is written as an explicit null.
type Record struct {
	IsPlaying    bool    `json:"isPlaying"`
	IsMuted      bool    `json:"isMuted"`
	IsFullscreen bool    `json:"isFullscreen"`
	VideoSrc     *string `json:"videoSrc"`
	Duration     float64 `json:"duration"`
	CurrentTime  float64 `json:"currentTime"`
	VideoTitle   string  `json:"videoTitle"`
}

func New(title string) PlayerState {
	if title == "" {
		title = DefaultTitle
	}
	return PlayerState{Title: title}
}

// Serialize strips the capture stream and normalizes the numeric fields so
// the result is always encodable and satisfies currentTime <= duration.
func Serialize(s PlayerState) Record {
	duration := finite(s.Duration)
	current := finite(s.CurrentTime)
	if current < 0 {
		current = 0
	}
	if duration > 0 && current > duration {
		current = duration
	}

	var src *string
	if s.VideoSource != nil {
		v := *s.VideoSource
		src = &v
	}

	return Record{
		IsPlaying:    s.IsPlaying,
		IsMuted:      s.IsMuted,
		IsFullscreen: s.IsFullscreen,
		VideoSrc:     src,
		Duration:     duration,
		CurrentTime:  current,
		VideoTitle:   s.Title,
	}
}

// State converts a received document back into a PlayerState. The Stream
// field is always nil.
func (r Record) State() PlayerState {
	var src *string
	if r.VideoSrc != nil {
		v := *r.VideoSrc
		src = &v
	}
	return PlayerState{
		IsPlaying:    r.IsPlaying,
		IsMuted:      r.IsMuted,
		IsFullscreen: r.IsFullscreen,
		VideoSource:  src,
		Duration:     r.Duration,
		CurrentTime:  r.CurrentTime,
		Title:        r.VideoTitle,
	}
}

func (r Record) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode player document: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Record{}, ErrEmptyDocument
	}
	var r Record
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return Record{}, fmt.Errorf("decode player document: %w", err)
	}
	return r, nil
}

// SourceEqual reports whether two optional sources point at the same media.
func SourceEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
