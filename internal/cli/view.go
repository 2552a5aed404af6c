package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SpinnerView renders callback resolution progress on a terminal. It
// implements callback.View.
type SpinnerView struct {
	out   io.Writer
	quiet bool

	mu sync.Mutex
	s  *spinner.Spinner
}

// NewSpinnerView creates a view writing to out. In quiet mode only the
// failure reason is printed.
func NewSpinnerView(out io.Writer, quiet bool) *SpinnerView {
	return &SpinnerView{out: out, quiet: quiet}
}

// Pending shows msg next to a spinner.
func (v *SpinnerView) Pending(msg string) {
	if v.quiet {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.s == nil {
		v.s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(v.out))
		v.s.Suffix = " " + msg
		v.s.Start()
		return
	}
	v.s.Lock()
	v.s.Suffix = " " + msg
	v.s.Unlock()
}

// Failed stops the spinner and prints reason.
func (v *SpinnerView) Failed(reason string) {
	v.stop()
	fmt.Fprintf(v.out, "%s %s\n", text.FgRed.Sprint("✗ Sign-in failed:"), reason)
	if !v.quiet {
		fmt.Fprintln(v.out, "  Returning to the sign-in page shortly...")
	}
}

// Succeeded stops the spinner and confirms the sign-in.
func (v *SpinnerView) Succeeded() {
	v.stop()
	if v.quiet {
		return
	}
	fmt.Fprintln(v.out, text.FgGreen.Sprint("✓ Signed in. Redirecting to your dashboard..."))
}

func (v *SpinnerView) stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.s != nil {
		v.s.Stop()
		v.s = nil
	}
}
