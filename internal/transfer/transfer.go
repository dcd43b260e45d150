package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/uupq/yutto-plus-sub000/internal/domain"
	errpkg "github.com/uupq/yutto-plus-sub000/internal/errors"
	"github.com/uupq/yutto-plus-sub000/internal/progress"
	"github.com/uupq/yutto-plus-sub000/internal/retry"
)

// ProgressFunc is invoked after every written chunk with the cumulative
// on-disk byte count, the known total and the rolling throughput.
type ProgressFunc func(current, total, speed int64)

// Transfer fetches one remote byte stream to one local file, resuming
// via byte ranges. Transient failures are retried under the shared
// policy; each attempt resumes from the bytes already on disk.
type Transfer struct {
	client    *http.Client
	policy    retry.Policy
	chunkSize int
}

// New creates a Transfer. A non-positive chunkSize defaults to 32KiB.
func New(client *http.Client, policy retry.Policy, chunkSize int) *Transfer {
	if client == nil {
		client = http.DefaultClient
	}
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &Transfer{client: client, policy: policy, chunkSize: chunkSize}
}

// Run downloads the stream described by desc to desc.Path. On return
// without error the file holds exactly desc.TotalBytes bytes. On error
// the bytes already written remain on disk so a later attempt can
// resume.
func (t *Transfer) Run(ctx context.Context, desc *domain.StreamDescriptor, onProgress ProgressFunc) error {
	if desc.Complete {
		if onProgress != nil {
			onProgress(desc.TotalBytes, desc.TotalBytes, 0)
		}
		return nil
	}

	window := progress.NewSpeedWindow(0)

	err := t.policy.Do(ctx, "stream transfer", func(ctx context.Context) error {
		return t.attempt(ctx, desc, window, onProgress)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errpkg.Wrap(errpkg.KindNetwork, err)
	}

	desc.Complete = true
	if onProgress != nil {
		onProgress(desc.ExistingBytes, desc.TotalBytes, 0)
	}
	return nil
}

func (t *Transfer) attempt(ctx context.Context, desc *domain.StreamDescriptor, window *progress.SpeedWindow, onProgress ProgressFunc) error {
	offset, err := diskSize(desc.Path)
	if err != nil {
		return retry.Permanent(fmt.Errorf("stat local file: %w", err))
	}
	if !desc.RangeSupported {
		offset = 0
	}
	if desc.TotalBytes > 0 && offset >= desc.TotalBytes {
		desc.ExistingBytes = offset
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// Offset at or past the end: the file is already whole.
		desc.ExistingBytes = offset
		return nil
	case resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			// Range ignored mid-resume: restart the file from zero
			// rather than risk corrupt interleaving.
			slog.Warn("server ignored range request, restarting stream from zero",
				"stream", desc.ID,
				"url", desc.URL,
				"discarded_bytes", offset,
			)
			desc.RangeSupported = false
			offset = 0
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(fmt.Errorf("bad status: %s", resp.Status))
	default:
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	var file *os.File
	if offset > 0 {
		file, err = os.OpenFile(desc.Path, os.O_WRONLY|os.O_APPEND, 0o644)
	} else {
		file, err = os.Create(desc.Path)
	}
	if err != nil {
		return retry.Permanent(fmt.Errorf("open local file: %w", err))
	}
	defer file.Close()

	written, copyErr := t.copyChunks(ctx, file, resp.Body, offset, desc, window, onProgress)
	desc.ExistingBytes = offset + written

	if copyErr != nil {
		return fmt.Errorf("copy stream data: %w", copyErr)
	}
	if desc.TotalBytes > 0 && desc.ExistingBytes < desc.TotalBytes {
		return fmt.Errorf("stream ended early: have %d of %d bytes", desc.ExistingBytes, desc.TotalBytes)
	}
	return nil
}

// copyChunks streams body to dst, checking for cancellation between
// chunks. The returned count always reflects bytes actually written to
// disk, so a later resume attempt is correct.
func (t *Transfer) copyChunks(ctx context.Context, dst *os.File, src io.Reader, offset int64, desc *domain.StreamDescriptor, window *progress.SpeedWindow, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, t.chunkSize)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if nw > 0 {
				total += int64(nw)
				window.Add(int64(nw))
			}
			if werr != nil {
				return total, werr
			}
			if nr != nw {
				return total, io.ErrShortWrite
			}
			if onProgress != nil {
				onProgress(offset+total, desc.TotalBytes, window.Rate())
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

func diskSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}
