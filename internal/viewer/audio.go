package viewer

import (
	"errors"
	"math"

	"studybuddy/internal/models"
)

// SkipSeconds is the step of the relative seek controls.
const SkipSeconds = 10.0

var ErrNoAudio = errors.New("no audio bound")

// AudioPlayer tracks transport state for the bound audio resource. Positions
// are seconds and always stay within [0, duration].
type AudioPlayer struct {
	resource models.AudioResource
	section  int
	playing  bool
	loading  bool
	position float64
	duration float64
}

func NewAudioPlayer(resource models.AudioResource) *AudioPlayer {
	return &AudioPlayer{resource: resource}
}

// ControlsEnabled reports whether transport controls can be used: some URL,
// genuine or fallback, is bound and no swap is in progress.
func (p *AudioPlayer) ControlsEnabled() bool {
	return p.resource.AudioURL != "" && !p.loading
}

func (p *AudioPlayer) Toggle() (bool, error) {
	if !p.ControlsEnabled() {
		return p.playing, ErrNoAudio
	}
	p.playing = !p.playing
	return p.playing, nil
}

// Seek moves to an absolute time.
func (p *AudioPlayer) Seek(t float64) float64 {
	p.position = clamp(t, 0, p.duration)
	return p.position
}

// Skip moves relative to the current position.
func (p *AudioPlayer) Skip(delta float64) float64 {
	return p.Seek(p.position + delta)
}

// SetDuration records the clip length once its metadata is known.
func (p *AudioPlayer) SetDuration(d float64) {
	if d < 0 {
		d = 0
	}
	p.duration = d
	p.position = clamp(p.position, 0, d)
}

// SetPosition records playback progress. Reaching the end stops playback.
func (p *AudioPlayer) SetPosition(t float64) float64 {
	p.Seek(t)
	if p.duration > 0 && p.position >= p.duration {
		p.playing = false
	}
	return p.position
}

// BeginSwap stops playback before a new resource is requested for a section.
func (p *AudioPlayer) BeginSwap() {
	p.playing = false
	p.position = 0
	p.loading = true
}

// CancelSwap leaves the current resource bound after a failed request.
func (p *AudioPlayer) CancelSwap() {
	p.loading = false
}

// Bind replaces the resource. A bind that completes a swap starts playing.
func (p *AudioPlayer) Bind(resource models.AudioResource, section int) {
	autoplay := p.loading
	p.resource = resource
	p.section = section
	p.position = 0
	p.duration = 0
	p.loading = false
	p.playing = autoplay && resource.AudioURL != ""
}

func (p *AudioPlayer) Resource() models.AudioResource { return p.resource }

func (p *AudioPlayer) Section() int { return p.section }

func (p *AudioPlayer) Loading() bool { return p.loading }

type AudioState struct {
	Title           string  `json:"title"`
	AudioURL        string  `json:"audioUrl"`
	Fallback        bool    `json:"fallback"`
	Section         int     `json:"section"`
	Playing         bool    `json:"playing"`
	Loading         bool    `json:"loading"`
	Position        float64 `json:"position"`
	Duration        float64 `json:"duration"`
	ControlsEnabled bool    `json:"controlsEnabled"`
}

func (p *AudioPlayer) State() AudioState {
	return AudioState{
		Title:           p.resource.Title,
		AudioURL:        p.resource.AudioURL,
		Fallback:        p.resource.Fallback,
		Section:         p.section,
		Playing:         p.playing,
		Loading:         p.loading,
		Position:        p.position,
		Duration:        p.duration,
		ControlsEnabled: p.ControlsEnabled(),
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if math.IsNaN(v) {
		return lo
	}
	return min(max(v, lo), hi)
}
