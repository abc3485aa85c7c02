package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// TailOptions controls one Tail call. A negative Offset means "the last
// Limit lines"; otherwise reading starts at Offset. With Follow set and a
// positive Wait, an empty read polls until a line arrives or Wait runs
// out.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to pass to the next
// call.
type TailResult struct {
	Lines  []string
	Offset int64
}

const followPollInterval = 250 * time.Millisecond

// Tail reads from a log file without keeping it open between calls, so
// rotation and truncation never wedge a follower. A missing file is not
// an error: it returns no lines and offset zero.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	var res TailResult
	var err error
	if opts.Offset < 0 {
		res, err = tailEnd(path, opts.Limit)
	} else {
		res, err = tailFrom(path, opts.Offset)
	}
	if err != nil || len(res.Lines) > 0 {
		return res, err
	}
	if !opts.Follow || opts.Wait <= 0 {
		return res, nil
	}

	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()
	for {
		res, err = tailFrom(path, res.Offset)
		if err != nil || len(res.Lines) > 0 || time.Now().After(deadline) {
			return res, err
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}
	}
}

// tailEnd returns the last limit lines and the end-of-file offset.
func tailEnd(path string, limit int) (TailResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if limit <= 0 {
		end, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	}

	// One pass with a line ring; log files are small enough that seeking
	// backwards in blocks is not worth the complexity.
	ring := make([]string, limit)
	total := 0
	sc := newLineScanner(f)
	for sc.Scan() {
		ring[total%limit] = sc.Text()
		total++
	}
	if err := sc.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	n := total
	if n > limit {
		n = limit
	}
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		lines[i] = ring[(total-n+i)%limit]
	}
	return TailResult{Lines: lines, Offset: end}, nil
}

// tailFrom returns all complete lines at or after offset.
func tailFrom(path string, offset int64) (TailResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		// Truncated or rotated underneath us; restart from the top.
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	sc := newLineScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("read log file: %w", err)
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("determine log offset: %w", err)
	}
	return TailResult{Lines: lines, Offset: pos}, nil
}

func newLineScanner(f *os.File) *bufio.Scanner {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return sc
}
