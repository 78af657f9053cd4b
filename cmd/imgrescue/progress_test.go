package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestBarProgress(t *testing.T) {
	t.Parallel()

	t.Run("counts to total", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		p := newBarProgress(&buf)
		p.Start(3)
		for range 3 {
			p.Increment()
		}
		p.Finish()

		if !strings.Contains(buf.String(), "Fetching") {
			t.Errorf("output = %q, want the Fetching prefix", buf.String())
		}
		if got := p.bar.Current(); got != 3 {
			t.Errorf("Current() = %d, want 3", got)
		}
	})

	t.Run("calls before Start are ignored", func(t *testing.T) {
		t.Parallel()

		p := newBarProgress(&bytes.Buffer{})
		p.Increment()
		p.Finish()
		if p.bar != nil {
			t.Error("bar created without Start")
		}
	})
}
