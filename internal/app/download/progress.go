package download

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/agenciai/agx/internal/printer"
)

// progressWriter wraps the destination of a download and reports its progress.
type progressWriter struct {
	dst     io.Writer
	status  io.Writer
	total   int64
	written int64
	mu      sync.Mutex
}

// newProgressWriter returns a progress writer. When total is unknown (<= 0)
// only the written bytes are reported.
func newProgressWriter(dst, status io.Writer, total int64) *progressWriter {
	return &progressWriter{
		dst:    dst,
		status: status,
		total:  total,
	}
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.dst.Write(p)

	pw.mu.Lock()
	pw.written += int64(n)
	pw.printProgress()
	pw.mu.Unlock()

	return n, err
}

// finish ends the progress line.
func (pw *progressWriter) finish() {
	fmt.Fprintln(pw.status)
}

func (pw *progressWriter) printProgress() {
	if pw.total <= 0 {
		fmt.Fprintf(pw.status, "\r  %s downloaded", printer.FormatBytes(pw.written))
		return
	}

	const barWidth = 30
	pct := float64(pw.written) / float64(pw.total) * 100
	filled := min(int(pct/100*barWidth), barWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	fmt.Fprintf(pw.status, "\r  [%s] %3.0f%% %s / %s", bar, pct, printer.FormatBytes(pw.written), printer.FormatBytes(pw.total))
}
