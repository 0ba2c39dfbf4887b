// Package ui implements the terminal playback client using bubbletea's Elm architecture.
//
// The [Model] fetches the gateway's song list on startup, renders it with
// charmbracelet/bubbles/list and drives a [player.State] from keyboard input:
// enter requests playback of the selection (toggling when it is already the
// current song), space pauses and resumes, and a one-second tick advances the
// elapsed clock while a song is playing.
//
// Playback itself is delegated: the gateway's stream URL for the current song
// is shown in the footer and can be handed to the default browser with o.
package ui
