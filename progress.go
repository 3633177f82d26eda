package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progressBar wraps progressbar so the engine can update progress without
// caring whether verbose output is enabled. A nil receiver is a no-op.
type progressBar struct {
	bar *progressbar.ProgressBar
}

// newProgressBar returns a spinner-style bar (max < 0) or a counted bar.
// When verbose output is off it returns nil and every method no-ops.
func newProgressBar(enabled bool, max int64, description string) *progressBar {
	if !enabled {
		return nil
	}
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
	return &progressBar{bar: bar}
}

func (p *progressBar) Add(n int) {
	if p == nil {
		return
	}
	p.bar.Add(n)
}

func (p *progressBar) Finish() {
	if p == nil {
		return
	}
	p.bar.Finish()
}
