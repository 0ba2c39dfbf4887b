// package models defines the data model for the media gateway
package models

import (
	"strings"
	"time"
)

// AudioMIMEPrefix marks upstream files that are exposed as songs.
//
// Filtering on it is the gateway's permission boundary: files with any other
// MIME type never leave the gateway.
const AudioMIMEPrefix = "audio/"

// File represents a file record returned by the upstream provider.
type File struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MIME       string    `json:"mime"`
	CreatedAt  time.Time `json:"createdAt"`
	UploaderID string    `json:"uploaderId,omitempty"`
}

// Song is the filtered, read-only projection of an audio [File].
//
// Songs are recomputed on every listing request and never stored.
type Song struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MIME       string    `json:"mime"`
	CreatedAt  time.Time `json:"createdAt"`
	UploaderID string    `json:"uploaderId,omitempty"`
}

// Profile represents the identity subset of the upstream "who am I" response.
type Profile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	IconFileID  string `json:"iconFileId,omitempty"`
}

// IsAudio reports whether a file's MIME type marks it as audio content.
func (f File) IsAudio() bool {
	return strings.HasPrefix(f.MIME, AudioMIMEPrefix)
}

// SongFromFile projects an upstream file into the Song shape.
func SongFromFile(f File) Song {
	return Song{
		ID:         f.ID,
		Name:       f.Name,
		MIME:       f.MIME,
		CreatedAt:  f.CreatedAt,
		UploaderID: f.UploaderID,
	}
}

// FilterSongs projects the audio members of an upstream file collection into
// songs, preserving upstream order.
func FilterSongs(files []File) []Song {
	songs := []Song{}
	for _, f := range files {
		if f.IsAudio() {
			songs = append(songs, SongFromFile(f))
		}
	}
	return songs
}
