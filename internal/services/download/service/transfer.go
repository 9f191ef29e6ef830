package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/metrics"

	"golang.org/x/time/rate"
)

// probe is what a HEAD request tells us about the remote file
type probe struct {
	size   int64 // 0 when unknown
	ranges bool
}

// transfer moves one URL into a .part file and renames it to dst when complete
type transfer struct {
	client  *http.Client
	chunk   int
	metrics *metrics.Metrics
}

// head asks whether the server supports byte ranges; failures mean "unknown, no ranges"
func (t *transfer) head(ctx context.Context, url string) probe {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return probe{}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		logger.C(ctx).Debug().Err(err).Str("url", url).Msg("download: head failed")
		return probe{}
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return probe{}
	}
	return probe{
		size:   max(resp.ContentLength, 0),
		ranges: strings.Contains(strings.ToLower(resp.Header.Get("Accept-Ranges")), "bytes"),
	}
}

// fetch downloads url into dst, resuming dst+".part" when the server allows it
// maxKbps <= 0 disables the throttle
func (t *transfer) fetch(ctx context.Context, url, dst string, maxKbps int) (int64, error) {
	part := dst + ".part"
	p := t.head(ctx, url)

	var offset int64
	if fi, err := os.Stat(part); err == nil && p.ranges {
		offset = fi.Size()
	}
	if p.size > 0 && offset >= p.size {
		// a previous attempt finished writing but never renamed
		if offset == p.size {
			return offset, os.Rename(part, dst)
		}
		offset = 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "build download request")
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "get %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		flags |= os.O_APPEND
	case resp.StatusCode == http.StatusOK:
		// server ignored the range, start over
		offset = 0
		flags |= os.O_TRUNC
	default:
		return 0, statusError(url, resp.StatusCode)
	}

	total := p.size
	if total == 0 && resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}

	f, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeUnknown, "open part file")
	}
	written, copyErr := t.copyThrottled(ctx, f, resp.Body, maxKbps)
	if cerr := f.Close(); copyErr == nil && cerr != nil {
		copyErr = cerr
	}
	done := offset + written
	if copyErr != nil {
		if errors.Is(copyErr, context.Canceled) || errors.Is(copyErr, context.DeadlineExceeded) {
			return done, copyErr
		}
		return done, perr.Wrapf(copyErr, perr.ErrorCodeUnavailable, "download interrupted at %d bytes", done)
	}
	if total > 0 && done < total {
		return done, perr.Unavailablef("incomplete download: %d/%d bytes", done, total)
	}
	if err := os.Rename(part, dst); err != nil {
		return done, perr.Wrap(err, perr.ErrorCodeUnknown, "finalize download")
	}
	return done, nil
}

// copyThrottled copies src to dst in chunks, waiting on a token bucket sized in bytes per second
// The bucket starts empty so the average rate never exceeds the cap, even for short transfers
func (t *transfer) copyThrottled(ctx context.Context, dst io.Writer, src io.Reader, maxKbps int) (int64, error) {
	chunk := t.chunk
	if chunk <= 0 {
		chunk = 256 << 10
	}
	var lim *rate.Limiter
	if maxKbps > 0 {
		bps := maxKbps * 1024
		chunk = min(chunk, bps)
		lim = rate.NewLimiter(rate.Limit(bps), chunk)
		lim.AllowN(time.Now(), chunk)
	}

	buf := make([]byte, chunk)
	var n int64
	for {
		r, rerr := src.Read(buf)
		if r > 0 {
			if lim != nil {
				if err := lim.WaitN(ctx, r); err != nil {
					return n, err
				}
			}
			w, werr := dst.Write(buf[:r])
			n += int64(w)
			t.metrics.Downloaded(w)
			if werr != nil {
				return n, werr
			}
		}
		if rerr == io.EOF {
			return n, nil
		}
		if rerr != nil {
			return n, rerr
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
	}
}

func statusError(url string, code int) error {
	msg := fmt.Sprintf("get %s: status %d", url, code)
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return perr.New(perr.ErrorCodeNotFound, msg)
	case code == http.StatusTooManyRequests || code >= 500:
		return perr.New(perr.ErrorCodeUnavailable, msg)
	default:
		return perr.New(perr.ErrorCodeInvalidArgument, msg)
	}
}
