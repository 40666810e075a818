// Package encoder constructs argument lists for the external ffmpeg process.
package encoder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/relaycast/broadcaster/internal/profile"
)

// ErrUnsupportedSource is returned for a Source variant the builder does not model.
var ErrUnsupportedSource = errors.New("encoder: unsupported source kind")

// Builder translates {source, destination, profile, loop} into ffmpeg
// arguments. Bitrate and resolution values pass through from the Profile
// verbatim; invalid values surface only when ffmpeg fails to start.
type Builder struct {
	ffmpegPath string
	workDir    string // holds generated concat manifests
}

// NewBuilder creates a command builder. workDir is where playlist concat
// manifests are written; empty means os.TempDir().
func NewBuilder(ffmpegPath, workDir string) *Builder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Builder{ffmpegPath: ffmpegPath, workDir: workDir}
}

// FFmpegPath returns the encoder binary path the builder was configured with.
func (b *Builder) FFmpegPath() string { return b.ffmpegPath }

// Build returns the ffmpeg argument list for the given source shape. id
// keys the concat manifest for playlist sources, so rebuilds for the same
// session overwrite the previous manifest instead of accumulating files.
func (b *Builder) Build(id string, src Source, dst Destination, p profile.Profile, loop bool) ([]string, error) {
	args := []string{"-hide_banner", "-loglevel", "warning"}

	switch src.Kind {
	case KindFile:
		if loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-re", "-i", src.Path)
		args = append(args, b.encodeArgs(p, true)...)

	case KindComposite:
		args = append(args, "-loop", "1", "-i", src.ImagePath)
		if loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-re", "-i", src.AudioPath)
		args = append(args, b.encodeArgs(p, false)...)
		args = append(args, "-tune", "stillimage", "-pix_fmt", "yuv420p", "-shortest")

	case KindPlaylist:
		manifest, err := b.WriteManifest(id, src.Items)
		if err != nil {
			return nil, err
		}
		if loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-re", "-f", "concat", "-safe", "0", "-i", manifest)
		args = append(args, b.encodeArgs(p, true)...)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Kind)
	}

	args = append(args, "-f", "flv", dst.Target())
	return args, nil
}

// encodeArgs returns the shared video/audio encode parameters for p.
func (b *Builder) encodeArgs(p profile.Profile, withFPS bool) []string {
	vf := "scale=" + p.Resolution
	if withFPS {
		vf = fmt.Sprintf("scale=%s,fps=%d", p.Resolution, p.FPS)
	}
	return []string{
		"-c:v", "libx264", "-preset", "veryfast",
		"-b:v", p.VideoBitrate,
		"-maxrate", p.VideoBitrate,
		"-bufsize", p.BufSize,
		"-vf", vf,
		"-c:a", "aac", "-b:a", p.AudioBitrate,
	}
}

// WriteManifest materializes the concat manifest for a playlist: one
// "file '<path>'" line per item, in order. The manifest for a given id is
// overwritten on every call.
func (b *Builder) WriteManifest(id string, items []string) (string, error) {
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "file '%s'\n", item)
	}
	path := b.ManifestPath(id)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat manifest: %w", err)
	}
	return path, nil
}

// ManifestPath returns the concat manifest location for id.
func (b *Builder) ManifestPath(id string) string {
	return filepath.Join(b.workDir, "playlist_"+id+".txt")
}

// RemoveManifest deletes the concat manifest for id, if present.
func (b *Builder) RemoveManifest(id string) {
	_ = os.Remove(b.ManifestPath(id))
}
