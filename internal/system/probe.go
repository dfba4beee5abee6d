package system

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFProbe reads media durations with ffprobe.
type FFProbe struct{}

// Duration returns the container duration of path in seconds.
func (FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbeDuration([]byte(out))
}

// probeResult matches the parts of ffprobe's JSON output we use
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// ParseProbeDuration extracts the duration from ffprobe JSON. The format
// duration wins; the first audio stream duration is the fallback.
func ParseProbeDuration(data []byte) (float64, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	candidates := []string{probe.Format.Duration}
	for _, s := range probe.Streams {
		if s.CodecType == "audio" {
			candidates = append(candidates, s.Duration)
		}
	}

	for _, c := range candidates {
		if c == "" || c == "N/A" {
			continue
		}
		d, err := strconv.ParseFloat(c, 64)
		if err != nil {
			continue
		}
		if d > 0 {
			return d, nil
		}
	}
	return 0, fmt.Errorf("ffprobe reported no duration")
}
