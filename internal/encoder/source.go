package encoder

import "strings"

// SourceKind discriminates the supported input shapes.
type SourceKind string

const (
	KindFile      SourceKind = "file"      // single media file pushed as-is
	KindComposite SourceKind = "composite" // static background image + audio track
	KindPlaylist  SourceKind = "playlist"  // ordered file sequence via concat manifest
)

// Source describes the media input for a broadcast. Exactly the fields for
// its Kind are populated.
type Source struct {
	Kind      SourceKind `json:"kind"`
	Path      string     `json:"path,omitempty"`       // KindFile
	AudioPath string     `json:"audio_path,omitempty"` // KindComposite
	ImagePath string     `json:"image_path,omitempty"` // KindComposite
	Items     []string   `json:"items,omitempty"`      // KindPlaylist, in play order
}

// FileSource returns a single-file source.
func FileSource(path string) Source {
	return Source{Kind: KindFile, Path: path}
}

// CompositeSource returns an image+audio source.
func CompositeSource(audioPath, imagePath string) Source {
	return Source{Kind: KindComposite, AudioPath: audioPath, ImagePath: imagePath}
}

// PlaylistSource returns an ordered multi-file source.
func PlaylistSource(items []string) Source {
	return Source{Kind: KindPlaylist, Items: items}
}

// Destination is the streaming endpoint plus its secret publishing key.
type Destination struct {
	URL string `json:"url"`
	Key string `json:"-"` // never serialized; render via MaskedKey only
}

// Target returns the full push URL: the endpoint with trailing slashes
// trimmed, with the key appended as the final path segment.
func (d Destination) Target() string {
	base := strings.TrimRight(d.URL, "/")
	if d.Key == "" {
		return base
	}
	return base + "/" + d.Key
}

// MaskedKey returns the stream key with all but the last 4 characters
// replaced, for operator-facing surfaces.
func (d Destination) MaskedKey() string {
	return MaskSecret(d.Key)
}

// MaskSecret masks a secret to its last 4 characters. Short secrets are
// fully masked.
func MaskSecret(s string) string {
	const visible = 4
	if s == "" {
		return ""
	}
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-visible) + s[len(s)-visible:]
}
