package main

import (
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
)

const progressTemplate pb.ProgressBarTemplate = `{{ string . "prefix" }} {{ counters . }} {{ bar . }} {{ percent . }} {{ rtime . "ETA %s" }}`

// barProgress drives a terminal progress bar from fetch completions.
type barProgress struct {
	w   io.Writer
	bar *pb.ProgressBar
}

func newBarProgress(w io.Writer) *barProgress {
	return &barProgress{w: w}
}

func (p *barProgress) Start(total int) {
	p.bar = pb.New(total)
	p.bar.SetTemplate(progressTemplate)
	p.bar.Set("prefix", "Fetching")
	p.bar.SetWriter(p.w)
	p.bar.SetMaxWidth(100)
	p.bar.SetRefreshRate(500 * time.Millisecond)
	p.bar.Start()
}

func (p *barProgress) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
