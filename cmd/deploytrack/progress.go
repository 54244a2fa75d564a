package main

import (
	"context"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/deploytrack/deploytrack/pkg/window"
)

const progressRefreshInterval = 500 * time.Millisecond

// trackProgress renders a terminal progress bar for a bounded scan, driven by
// the window's lowest watermark. Returns when the range is fully committed or
// the context is cancelled.
func trackProgress(ctx context.Context, s *window.State, start, end uint64) {
	if end < start {
		return
	}

	bar := progressbar.NewOptions64(
		int64(end-start+1),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetDescription("Scanning blocks..."),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	_ = bar.RenderBlank()

	t := time.NewTicker(progressRefreshInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			lowest := s.GetLowest()
			_ = bar.Set64(int64(lowest - start))
			if lowest > end {
				_ = bar.Finish()
				return
			}
		}
	}
}
