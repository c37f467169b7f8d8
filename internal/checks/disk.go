package checks

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/stackwatchd/stackwatch/internal/notify"
	"github.com/stackwatchd/stackwatch/internal/state"
)

const bytesPerGB = 1 << 30

// DiskChecker watches free space on the media mount. A missing mount is
// its own failure condition, distinct from (and mutually exclusive with)
// the low-space warning.
type DiskChecker struct {
	logger      zerolog.Logger
	mount       string
	thresholdGB float64
	statFn      func(string) (os.FileInfo, error)
	usageFn     func(string) (*disk.UsageStat, error)
}

// DiskOption customizes DiskChecker behavior.
type DiskOption func(*DiskChecker)

// WithDiskProbes overrides filesystem probes (for tests).
func WithDiskProbes(statFn func(string) (os.FileInfo, error), usageFn func(string) (*disk.UsageStat, error)) DiskOption {
	return func(c *DiskChecker) {
		c.statFn = statFn
		c.usageFn = usageFn
	}
}

// NewDiskChecker builds a disk checker for the given mount point.
func NewDiskChecker(logger zerolog.Logger, mount string, thresholdGB float64, opts ...DiskOption) *DiskChecker {
	c := &DiskChecker{
		logger:      logger,
		mount:       mount,
		thresholdGB: thresholdGB,
		statFn:      os.Stat,
		usageFn:     disk.Usage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check verifies the mount exists and has free space above the threshold.
func (c *DiskChecker) Check(ctx context.Context, dispatcher *notify.Dispatcher, doc *state.Document) {
	if _, err := c.statFn(c.mount); err != nil {
		c.logger.Error().Err(err).Str("mount", c.mount).Msg("media mount missing")
		dispatcher.Dispatch(ctx, doc, notify.CategoryDisk,
			"Media mount missing",
			fmt.Sprintf("mount point %s is not accessible: %v", c.mount, err),
			notify.SeverityCritical)
		return
	}

	usage, err := c.usageFn(c.mount)
	if err != nil {
		c.logger.Warn().Err(err).Str("mount", c.mount).Msg("disk usage query failed")
		return
	}

	freeGB := float64(usage.Free) / bytesPerGB
	c.logger.Debug().
		Str("mount", c.mount).
		Float64("free_gb", freeGB).
		Float64("threshold_gb", c.thresholdGB).
		Msg("disk space sampled")

	if freeGB < c.thresholdGB {
		dispatcher.Dispatch(ctx, doc, notify.CategoryDisk,
			"Disk space low",
			fmt.Sprintf("%s has %.1fGB free, below the %.0fGB threshold", c.mount, freeGB, c.thresholdGB),
			notify.SeverityWarning)
	}
}
