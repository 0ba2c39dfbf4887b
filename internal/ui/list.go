package ui

import (
	"github.com/ayase-lab/traqtune/internal/models"
	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = songItem{}

// songItem wraps [models.Song] to implement [list.Item].
type songItem struct {
	song models.Song
}

func (i songItem) FilterValue() string { return i.song.Name }
func (i songItem) Title() string       { return i.song.Name }
func (i songItem) Description() string {
	desc := i.song.MIME
	if !i.song.CreatedAt.IsZero() {
		desc = desc + " • " + i.song.CreatedAt.Format("2006-01-02")
	}
	return desc
}
