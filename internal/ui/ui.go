package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayase-lab/traqtune/internal/gatewayclient"
	"github.com/ayase-lab/traqtune/internal/models"
	"github.com/ayase-lab/traqtune/internal/player"
	"github.com/ayase-lab/traqtune/internal/shared"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SongListView ViewState = iota
	LoginView
)

// tickInterval drives the elapsed clock while a song is playing.
const tickInterval = time.Second

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	gateway  *gatewayclient.Client
	playback *player.State
	width    int
	height   int
	songList list.Model
	songs    []models.Song
	err      error
	help     help.Model
	keys     keyMap
}

type songsFetchedMsg struct {
	songs []models.Song
	err   error
}

type tickMsg time.Time

// NewModel creates a new TUI model around a gateway client.
//
// The song list is constructed up front so key messages arriving before the
// initial fetch completes land on a usable list, not a zero value.
func NewModel(ctx context.Context, gateway *gatewayclient.Client) *Model {
	songList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	songList.Title = "Songs"

	return &Model{
		ctx:      ctx,
		view:     SongListView,
		gateway:  gateway,
		playback: player.New(),
		songList: songList,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by fetching the song list from the gateway.
func (m *Model) Init() tea.Cmd {
	return m.fetchSongs()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.songList.Width() == 0 {
			m.songList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SongListView:
			return m.handleSongListKeys(msg)
		case LoginView:
			return m.handleLoginKeys(msg)
		}

	case songsFetchedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, shared.ErrUnauthorized) {
				m.view = LoginView
				return m, nil
			}
			m.err = msg.err
			return m, tea.Quit
		}
		m.view = SongListView
		m.songs = msg.songs
		items := make([]list.Item, len(msg.songs))
		for i, song := range msg.songs {
			items[i] = songItem{song: song}
		}
		m.songList.SetItems(items)
		m.songList.SetSize(m.width-4, m.height-8)
		return m, nil

	case tickMsg:
		if !m.playback.IsPlaying() {
			return m, nil
		}
		m.playback.SetProgress(m.playback.CurrentTime()+tickInterval.Seconds(), m.playback.Duration())
		return m, m.tick()
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case SongListView:
		return m.renderSongList()
	case LoginView:
		return m.renderLogin()
	default:
		return ""
	}
}

func (m *Model) handleSongListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if selected, ok := m.songList.SelectedItem().(songItem); ok {
			m.playback.HandlePlayRequest(selected.song)
			if m.playback.IsPlaying() {
				return m, m.tick()
			}
		}
		return m, nil
	case " ":
		m.playback.TogglePlay()
		if m.playback.IsPlaying() {
			return m, m.tick()
		}
		return m, nil
	case "o":
		if song := m.playback.CurrentSong(); song != nil {
			if err := shared.OpenBrowser(m.gateway.StreamURL(song.ID)); err != nil {
				m.err = err
			}
		}
		return m, nil
	case "r":
		return m, m.fetchSongs()
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

func (m *Model) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "l":
		if err := shared.OpenBrowser(m.gateway.LoginURL()); err != nil {
			m.err = err
		}
		return m, nil
	case "r":
		return m, m.fetchSongs()
	}
	return m, nil
}

func (m *Model) fetchSongs() tea.Cmd {
	return func() tea.Msg {
		songs, err := m.gateway.Songs(m.ctx)
		return songsFetchedMsg{songs: songs, err: err}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) renderSongList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.toggle, m.keys.open, m.keys.reload, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n\n%s", m.songList.View(), m.renderNowPlaying(), helpView)
}

func (m *Model) renderNowPlaying() string {
	song := m.playback.CurrentSong()
	if song == nil {
		return styles.help.Render("Nothing playing")
	}

	state := "⏸"
	if m.playback.IsPlaying() {
		state = "▶"
	}

	line := fmt.Sprintf("%s %s  %s", state, song.Name, clock(m.playback.CurrentTime()))
	if m.playback.Duration() > 0 {
		line = fmt.Sprintf("%s / %s (%.0f%%)", line, clock(m.playback.Duration()), m.playback.ProgressPercent())
	}

	return styles.ok.Render(line)
}

func (m *Model) renderLogin() string {
	title := styles.title.Render("Not signed in")
	info := "Sign in with traQ in your browser, then reload the song list.\n" +
		styles.warn.Render("The browser session's cookie is what the gateway checks; run the player on the same host.")

	helpKeys := []key.Binding{m.keys.login, m.keys.reload, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

// clock formats elapsed seconds as m:ss.
func clock(seconds float64) string {
	whole := int(seconds)
	return fmt.Sprintf("%d:%02d", whole/60, whole%60)
}
