package encoder

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/relaycast/broadcaster/internal/profile"
)

func testProfile() profile.Profile {
	return profile.NewRegistry(720).Resolve(720)
}

func argsString(args []string) string { return strings.Join(args, " ") }

func TestBuild_single_file(t *testing.T) {
	b := NewBuilder("ffmpeg", t.TempDir())
	dst := Destination{URL: "rtmp://example.com/live", Key: "secret123"}

	args, err := b.Build("s1", FileSource("/media/clip.mp4"), dst, testProfile(), false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := argsString(args)
	if strings.Contains(s, "-stream_loop") {
		t.Error("loop flag present without loop")
	}
	for _, want := range []string{
		"-re -i /media/clip.mp4",
		"-c:v libx264",
		"-b:v 2500k",
		"-bufsize 5000k",
		"-vf scale=1280x720,fps=30",
		"-b:a 128k",
		"-f flv rtmp://example.com/live/secret123",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("args missing %q: %s", want, s)
		}
	}
}

func TestBuild_single_file_loop(t *testing.T) {
	b := NewBuilder("ffmpeg", t.TempDir())
	args, err := b.Build("s1", FileSource("clip.mp4"), Destination{URL: "rtmp://x/live", Key: "k"}, testProfile(), true)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(argsString(args), "-stream_loop -1 -re -i clip.mp4") {
		t.Errorf("expected infinite input loop before the input: %v", args)
	}
}

func TestBuild_composite(t *testing.T) {
	b := NewBuilder("ffmpeg", t.TempDir())
	args, err := b.Build("s1", CompositeSource("track.mp3", "bg.jpg"), Destination{URL: "rtmp://x/live", Key: "k"}, testProfile(), false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := argsString(args)
	for _, want := range []string{"-loop 1 -i bg.jpg", "-re -i track.mp3", "-tune stillimage", "-pix_fmt yuv420p", "-shortest"} {
		if !strings.Contains(s, want) {
			t.Errorf("args missing %q: %s", want, s)
		}
	}
	// A still image needs no frame-rate conversion.
	if strings.Contains(s, "fps=") {
		t.Errorf("composite filter should not force fps: %s", s)
	}
}

func TestBuild_playlist_writes_manifest(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder("ffmpeg", dir)
	src := PlaylistSource([]string{"/a.mp4", "/b.mp4", "/c.mp4"})

	args, err := b.Build("s1", src, Destination{URL: "rtmp://x/live", Key: "k"}, testProfile(), false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(argsString(args), "-f concat -safe 0 -i "+b.ManifestPath("s1")) {
		t.Errorf("expected concat input: %v", args)
	}
	raw, err := os.ReadFile(b.ManifestPath("s1"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if string(raw) != "file '/a.mp4'\nfile '/b.mp4'\nfile '/c.mp4'\n" {
		t.Errorf("unexpected manifest: %q", raw)
	}
}

func TestBuild_playlist_manifest_overwritten(t *testing.T) {
	b := NewBuilder("ffmpeg", t.TempDir())
	if _, err := b.Build("s1", PlaylistSource([]string{"/a.mp4", "/b.mp4"}), Destination{URL: "rtmp://x", Key: "k"}, testProfile(), false); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := b.Build("s1", PlaylistSource([]string{"/c.mp4"}), Destination{URL: "rtmp://x", Key: "k"}, testProfile(), false); err != nil {
		t.Fatalf("second build: %v", err)
	}
	raw, _ := os.ReadFile(b.ManifestPath("s1"))
	if string(raw) != "file '/c.mp4'\n" {
		t.Errorf("manifest not overwritten: %q", raw)
	}
}

func TestBuild_unsupported_kind(t *testing.T) {
	b := NewBuilder("ffmpeg", t.TempDir())
	_, err := b.Build("s1", Source{Kind: "torrent"}, Destination{URL: "rtmp://x", Key: "k"}, testProfile(), false)
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("expected ErrUnsupportedSource, got %v", err)
	}
}

func TestDestination_Target(t *testing.T) {
	d := Destination{URL: "rtmp://example.com/live///", Key: "abc"}
	if got := d.Target(); got != "rtmp://example.com/live/abc" {
		t.Errorf("Target() = %q", got)
	}
	d = Destination{URL: "rtmp://example.com/live"}
	if got := d.Target(); got != "rtmp://example.com/live" {
		t.Errorf("Target() without key = %q", got)
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("secret123"); got != "*****t123" {
		t.Errorf("MaskSecret = %q", got)
	}
	if got := MaskSecret("abc"); got != "***" {
		t.Errorf("short secret should be fully masked, got %q", got)
	}
	if got := MaskSecret(""); got != "" {
		t.Errorf("empty secret should stay empty, got %q", got)
	}
}
