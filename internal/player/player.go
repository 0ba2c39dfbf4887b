// Package player holds playback state for the client: which song is selected
// and whether it is playing.
//
// The state machine is the single source of truth for playback; whatever
// renders audio observes it and resynchronizes after every transition. All
// methods are synchronous and meant to be called from one goroutine (the UI
// loop).
package player

import "github.com/ayase-lab/traqtune/internal/models"

// State is the playback state machine.
//
// Idle (no current song) → playing/paused once a song is selected. There is
// no terminal state; the machine lives as long as the client does.
type State struct {
	current     *models.Song
	playing     bool
	currentTime float64 // seconds into the current song
	duration    float64 // reported length of the current song, seconds
}

// New returns an idle state: no current song, not playing.
func New() *State {
	return &State{}
}

// HandlePlayRequest is the single entry point for user play interactions.
//
// Requesting the current song toggles play/pause; requesting a different
// song switches to it and starts playing.
func (s *State) HandlePlayRequest(song models.Song) {
	if s.CurrentSongID() == song.ID {
		s.TogglePlay()
		return
	}
	s.PlayNewSong(song)
}

// PlayNewSong makes song current and starts playing, regardless of prior
// state. Playback position resets for the new track.
func (s *State) PlayNewSong(song models.Song) {
	s.current = &song
	s.playing = true
	s.currentTime = 0
	s.duration = 0
}

// TogglePlay flips the playing flag. Without a current song it is a no-op.
func (s *State) TogglePlay() {
	if s.current == nil {
		return
	}
	s.playing = !s.playing
}

// Pause stops playback. Idempotent.
func (s *State) Pause() {
	s.playing = false
}

// CurrentSong returns the selected song, or nil when idle.
func (s *State) CurrentSong() *models.Song {
	return s.current
}

// CurrentSongID returns the id of the current song, or "" when idle.
func (s *State) CurrentSongID() string {
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// IsPlaying reports whether playback is running. Only ever true with a
// current song.
func (s *State) IsPlaying() bool {
	return s.playing
}

// SetProgress records the playback position reported by the audio collaborator.
func (s *State) SetProgress(currentTime, duration float64) {
	s.currentTime = currentTime
	s.duration = duration
}

// CurrentTime returns seconds into the current song.
func (s *State) CurrentTime() float64 {
	return s.currentTime
}

// Duration returns the reported song length in seconds.
func (s *State) Duration() float64 {
	return s.duration
}

// ProgressPercent returns playback progress in [0, 100].
//
// Returns 0 when duration is 0 (nothing loaded yet), for any current time.
func (s *State) ProgressPercent() float64 {
	if s.duration == 0 {
		return 0
	}

	pct := s.currentTime / s.duration * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
