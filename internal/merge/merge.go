package merge

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	errpkg "github.com/uupq/yutto-plus-sub000/internal/errors"
)

// Merger remuxes completed elementary stream files into one output
// container. Implementations return the final output path.
type Merger interface {
	Merge(ctx context.Context, inputs []string, output string) (string, error)
}

// FFmpeg merges streams by invoking an external ffmpeg binary with
// stream copy (no re-encode).
type FFmpeg struct {
	bin string
}

// NewFFmpeg creates an FFmpeg merger. An empty bin defaults to "ffmpeg"
// resolved from PATH.
func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin}
}

// Merge runs ffmpeg over the ordered input files. A non-zero exit
// yields a merge error carrying the tail of ffmpeg's stderr.
func (f *FFmpeg) Merge(ctx context.Context, inputs []string, output string) (string, error) {
	if len(inputs) == 0 {
		return "", errpkg.Wrapf(errpkg.KindMerge, "no input streams to merge")
	}

	cmd := exec.CommandContext(ctx, f.bin, buildArgs(inputs, output)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", errpkg.Wrapf(errpkg.KindMerge, "%s: %v: %s", f.bin, err, tail(stderr.String()))
	}
	return output, nil
}

func buildArgs(inputs []string, output string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	return append(args, "-c", "copy", output)
}

// tail returns the last portion of diagnostic output, enough for an
// error message without dumping the whole log.
func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
