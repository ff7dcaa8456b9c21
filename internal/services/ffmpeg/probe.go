package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"voiceforge/internal/services"
)

// StreamInfo describes the first audio stream of a media file.
type StreamInfo struct {
	DurationSeconds float64
	SampleRate      int
	Channels        int
	Codec           string
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects path with ffprobe and returns its audio stream parameters.
func (s *Service) Probe(ctx context.Context, path string) (StreamInfo, error) {
	args := []string{
		"-hide_banner",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "a:0",
		path,
	}

	cmd := commandContext(ctx, s.ffprobeBinary, args...)
	output, err := cmd.Output()
	if err != nil {
		return StreamInfo{}, services.Wrap(services.ErrExternalTool, "prepare", "probe", path, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return StreamInfo{}, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	if len(parsed.Streams) == 0 {
		return StreamInfo{}, services.Wrap(services.ErrValidation, "prepare", "probe",
			fmt.Sprintf("%s has no audio stream", path), nil)
	}

	stream := parsed.Streams[0]
	info := StreamInfo{
		Channels: stream.Channels,
		Codec:    stream.CodecName,
	}
	if stream.SampleRate != "" {
		if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
			info.SampleRate = rate
		}
	}
	if parsed.Format.Duration != "" {
		if duration, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.DurationSeconds = duration
		}
	}
	return info, nil
}
