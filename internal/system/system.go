package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
)

var (
	AudioExtensions = []string{".mp3", ".wav"}
	ImageExtensions = []string{".png", ".jpg", ".jpeg"}
	// PDF pages are accepted as images and expanded during staging.
	DocumentExtensions = []string{".pdf"}
)

// InitResourceLimits raises the open file limit; clip rendering keeps one
// descriptor per running ffmpeg plus its inputs.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("unable to read open file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("unable to raise open file limit")
		return
	}
	log.Debug().Uint64("limit", uint64(rLimit.Cur)).Msg("open file limit raised")
}

// HasExtension reports whether name ends in one of exts (case-insensitive).
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// IsImage reports whether name is an accepted image input (PDFs included).
func IsImage(name string) bool {
	return HasExtension(name, ImageExtensions) || HasExtension(name, DocumentExtensions)
}

// IsAudio reports whether name is an accepted audio input.
func IsAudio(name string) bool {
	return HasExtension(name, AudioExtensions)
}

// FindImages lists the image inputs directly inside dir, sorted by name.
func FindImages(dir string) ([]string, error) {
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, de := range dirents {
		if de.IsDir() || !IsImage(de.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, de.Name()))
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}

	sort.Strings(paths)
	return paths, nil
}

// FindLatestAudio returns the most recently modified audio file in dir.
func FindLatestAudio(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !IsAudio(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no audio files found in %s", dir)
	}

	return latestFile, nil
}

// GetBestH264Encoder picks a hardware H.264 encoder when ffmpeg offers one,
// falling back to libx264.
func GetBestH264Encoder(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}

	// Priority: macOS VideoToolbox, then NVIDIA NVENC.
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}

// DefaultQuality returns a sensible quality value for the encoder.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // bitrate = Q*100 kbit/s
	case "h264_nvenc":
		return 28
	default:
		return 23 // x264 CRF
	}
}
