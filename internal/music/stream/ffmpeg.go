package stream

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// FFmpeg returns an Opener running the ffmpeg binary at path.
func FFmpeg(path string) Opener {
	return func(ctx context.Context, url string, seek float64) (io.ReadCloser, error) {
		args := []string{
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		}
		if seek > 0 {
			args = append(args, "-ss", strconv.FormatFloat(seek, 'f', 2, 64))
		}
		args = append(args,
			"-i", url,
			"-f", "s16le",
			"-ar", strconv.Itoa(sampleRate),
			"-ac", strconv.Itoa(channels),
			"-loglevel", "warning",
			"pipe:1",
		)
		cmd := exec.CommandContext(ctx, path, args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe error: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("command start error: %w", err)
		}
		return &process{ReadCloser: stdout, cmd: cmd}, nil
	}
}

type process struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *process) Close() error {
	p.ReadCloser.Close()
	if p.cmd.ProcessState == nil {
		p.cmd.Process.Kill()
	}
	// Killed processes report an error from Wait; there is nothing to act on.
	_ = p.cmd.Wait()
	return nil
}
