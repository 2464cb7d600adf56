//go:build linux

package memsample

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// NewSampler returns the OS-appropriate Sampler implementation.
func NewSampler() Sampler {
	return linuxSampler{}
}

// linuxSampler reads VmRSS out of /proc/<pid>/status.
type linuxSampler struct{}

func (linuxSampler) Sample(_ context.Context, pid int) (Sample, error) {
	path := fmt.Sprintf("/proc/%d/status", pid)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Sample{}, fmt.Errorf("sample pid %d: %w", pid, ErrProcessGone)
		}

		return Sample{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rss, err := parseVmRSS(f)
	if err != nil {
		return Sample{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return Sample{
		Timestamp: time.Now(),
		PID:       pid,
		RSSBytes:  rss,
	}, nil
}

func parseVmRSS(f *os.File) (int64, error) {
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed VmRSS line %q", line)
		}

		kib, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse VmRSS value: %w", err)
		}

		return kib * 1024, nil
	}

	return 0, scanner.Err()
}
