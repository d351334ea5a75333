package ui

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressConfig determines whether and where a bar renders. Progress
// is suppressed whenever stderr isn't a TTY (piped output, cron, an
// agent capturing stdout/stderr) so scripted callers never see bar
// escape sequences mixed into their output.
type ProgressConfig struct {
	Enabled bool
	Writer  io.Writer
	NoColor bool
}

// NewProgressConfig builds a ProgressConfig from the --quiet/--no-color
// globals plus a live TTY check.
func NewProgressConfig(quiet, noColor bool) ProgressConfig {
	return ProgressConfig{
		Enabled: !quiet && isatty.IsTerminal(os.Stderr.Fd()),
		Writer:  os.Stderr,
		NoColor: noColor,
	}
}

// NewBar builds a determinate progress bar for an operation with a
// known item count (rescan/scan-once over a discovered file list).
// Returns nil when progress is disabled; callers must check for nil.
func NewBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer: "=", SaucerHead: ">", SaucerPadding: " ", BarStart: "[", BarEnd: "]",
		}),
	)
}

// NewSpinner builds an indeterminate spinner for an operation whose
// length isn't known ahead of time (draining the ingest queue, waiting
// on a blue/green health probe).
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
	)
}
