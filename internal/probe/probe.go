package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	errpkg "github.com/uupq/yutto-plus-sub000/internal/errors"
	"github.com/uupq/yutto-plus-sub000/internal/retry"
)

// Result is the outcome of probing one remote stream.
type Result struct {
	// Total is the authoritative remote size in bytes.
	Total int64
	// Complete reports that the local partial file already holds the
	// whole stream.
	Complete bool
	// RangeSupported is false when the server ignores Range requests;
	// the stream must then restart from zero instead of resuming.
	RangeSupported bool
}

// Prober determines a remote stream's total length and whether an
// existing local partial file is already complete. It tries a chain of
// HTTP techniques, each under the shared retry policy.
type Prober struct {
	client *http.Client
	policy retry.Policy
}

// New creates a Prober.
func New(client *http.Client, policy retry.Policy) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{client: client, policy: policy}
}

// Probe resolves the remote size for url given existingBytes already on
// disk. All strategies exhausted yields a size_probe error, fatal for
// the stream.
func (p *Prober) Probe(ctx context.Context, url string, existingBytes int64) (Result, error) {
	if existingBytes > 0 {
		res, err := p.probeAtOffset(ctx, url, existingBytes)
		if err == nil {
			return res, nil
		}
		slog.Debug("offset probe failed, falling back", "url", url, "error", err)
	}

	strategies := []struct {
		name string
		fn   func(ctx context.Context, url string) (Result, error)
	}{
		{"2-byte range", func(ctx context.Context, url string) (Result, error) {
			return p.rangeProbe(ctx, url, 0, 1)
		}},
		{"HEAD", p.headProbe},
		{"1KB range", func(ctx context.Context, url string) (Result, error) {
			return p.rangeProbe(ctx, url, 0, 1023)
		}},
	}

	var lastErr error
	for _, st := range strategies {
		var res Result
		err := p.policy.Do(ctx, "size probe ("+st.name+")", func(ctx context.Context) error {
			var err error
			res, err = st.fn(ctx, url)
			return err
		})
		if err == nil {
			if existingBytes > 0 {
				res.Complete = res.RangeSupported && res.Total > 0 && existingBytes >= res.Total
			}
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		slog.Debug("size probe strategy failed", "strategy", st.name, "url", url, "error", err)
	}

	return Result{}, errpkg.Wrapf(errpkg.KindSizeProbe, "all probe strategies exhausted for %s: %w", url, lastErr)
}

// probeAtOffset issues a single-byte range request at the resume
// offset. A 416 means the file is already complete; we then re-probe
// from offset 0 to learn the authoritative total.
func (p *Prober) probeAtOffset(ctx context.Context, url string, offset int64) (Result, error) {
	var res Result
	err := p.policy.Do(ctx, "size probe (resume offset)", func(ctx context.Context) error {
		resp, err := p.do(ctx, http.MethodGet, url, fmt.Sprintf("bytes=%d-%d", offset, offset))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusRequestedRangeNotSatisfiable:
			total, err := p.totalFromStart(ctx, url)
			if err != nil {
				return err
			}
			res = Result{Total: total, Complete: true, RangeSupported: true}
			return nil

		case http.StatusPartialContent:
			_, _, total, err := parseContentRange(resp.Header.Get("Content-Range"))
			if err != nil {
				return retry.Permanent(err)
			}
			res = Result{Total: total, Complete: offset >= total, RangeSupported: true}
			return nil

		case http.StatusOK:
			// Range ignored: the stream cannot resume.
			res = Result{Total: resp.ContentLength, Complete: false, RangeSupported: false}
			return nil

		default:
			return statusError(resp)
		}
	})
	return res, err
}

// totalFromStart learns the authoritative total via a 2-byte range from
// offset 0, used after a 416 told us the local file is complete.
func (p *Prober) totalFromStart(ctx context.Context, url string) (int64, error) {
	resp, err := p.do(ctx, http.MethodGet, url, "bytes=0-1")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return 0, statusError(resp)
	}
	_, _, total, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, retry.Permanent(err)
	}
	return total, nil
}

func (p *Prober) rangeProbe(ctx context.Context, url string, start, end int64) (Result, error) {
	resp, err := p.do(ctx, http.MethodGet, url, fmt.Sprintf("bytes=%d-%d", start, end))
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		_, _, total, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return Result{}, retry.Permanent(err)
		}
		return Result{Total: total, RangeSupported: true}, nil

	case http.StatusOK:
		if resp.ContentLength < 0 {
			return Result{}, fmt.Errorf("no content length in response")
		}
		return Result{Total: resp.ContentLength, RangeSupported: false}, nil

	default:
		return Result{}, statusError(resp)
	}
}

func (p *Prober) headProbe(ctx context.Context, url string) (Result, error) {
	resp, err := p.do(ctx, http.MethodHead, url, "")
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, statusError(resp)
	}
	if resp.ContentLength < 0 {
		return Result{}, fmt.Errorf("no content length in HEAD response")
	}
	return Result{
		Total:          resp.ContentLength,
		RangeSupported: resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

func (p *Prober) do(ctx context.Context, method, url, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	return p.client.Do(req)
}

func statusError(resp *http.Response) error {
	err := fmt.Errorf("unexpected status: %s", resp.Status)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Permanent(err)
	}
	return err
}

// parseContentRange parses a Content-Range header value of the form
// "bytes start-end/total". A total of "*" is rejected: the probe needs
// an authoritative size.
func parseContentRange(header string) (start, end, total int64, err error) {
	value := strings.TrimPrefix(header, "bytes ")
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %q", header)
	}

	rangeParts := strings.Split(parts[0], "-")
	if len(rangeParts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %q", header)
	}

	start, err = strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}
	end, err = strconv.ParseInt(rangeParts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}
	total, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
	}

	return start, end, total, nil
}
