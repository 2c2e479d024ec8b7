package common

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// UploadStage is the step a pump upload is in.
type UploadStage int

const (
	StageIdle UploadStage = iota
	StageErase
	StageWrite
	StageAuthorize
	StageDone
)

func (s UploadStage) String() string {
	switch s {
	case StageErase:
		return "erase"
	case StageWrite:
		return "write"
	case StageAuthorize:
		return "authorize"
	case StageDone:
		return "done"
	}
	return "idle"
}

// UploadProgress follows one library upload against its flash plan. All
// methods are safe on a nil receiver so callers can leave progress off.
type UploadProgress struct {
	mu          sync.Mutex
	started     time.Time
	finished    time.Time
	stage       UploadStage
	pages       int
	totalPages  int
	blocks      int
	totalBlocks int
	bytes       int64
	commands    int
	rejected    int
}

func NewUploadProgress() *UploadProgress {
	return &UploadProgress{}
}

// Begin starts the clock for a plan of totalPages erases and totalBlocks
// block writes.
func (p *UploadProgress) Begin(totalPages, totalBlocks int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started, p.finished = time.Now(), time.Time{}
	p.stage = StageErase
	p.pages, p.totalPages = 0, totalPages
	p.blocks, p.totalBlocks = 0, totalBlocks
	p.bytes, p.commands, p.rejected = 0, 0, 0
}

func (p *UploadProgress) PageErased() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.pages++
	p.mu.Unlock()
}

// BlockWritten records one acknowledged block write of size bytes.
func (p *UploadProgress) BlockWritten(size int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.stage = StageWrite
	p.blocks++
	p.bytes += int64(size)
	p.mu.Unlock()
}

func (p *UploadProgress) Authorizing() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.stage = StageAuthorize
	p.mu.Unlock()
}

// Command counts one exchanged command; ok is false when the pump rejected it.
func (p *UploadProgress) Command(ok bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.commands++
	if !ok {
		p.rejected++
	}
	p.mu.Unlock()
}

// Finish stops the clock. The stage only becomes done when every planned
// page and block went through.
func (p *UploadProgress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.IsZero() || !p.finished.IsZero() {
		return
	}
	p.finished = time.Now()
	if p.rejected == 0 && p.pages == p.totalPages && p.blocks == p.totalBlocks {
		p.stage = StageDone
	}
}

func (p *UploadProgress) Snapshot() UploadSnapshot {
	if p == nil {
		return UploadSnapshot{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var elapsed time.Duration
	switch {
	case p.started.IsZero():
	case p.finished.IsZero():
		elapsed = time.Since(p.started)
	default:
		elapsed = p.finished.Sub(p.started)
	}
	return UploadSnapshot{
		Stage:       p.stage,
		Elapsed:     elapsed,
		Pages:       p.pages,
		TotalPages:  p.totalPages,
		Blocks:      p.blocks,
		TotalBlocks: p.totalBlocks,
		Bytes:       p.bytes,
		Commands:    p.commands,
		Rejected:    p.rejected,
	}
}

type UploadSnapshot struct {
	Stage       UploadStage
	Elapsed     time.Duration
	Pages       int
	TotalPages  int
	Blocks      int
	TotalBlocks int
	Bytes       int64
	Commands    int
	Rejected    int
}

// Completion is the share of planned erases and writes acknowledged so far.
func (s UploadSnapshot) Completion() float64 {
	total := s.TotalPages + s.TotalBlocks
	if total == 0 {
		return 0
	}
	return float64(s.Pages+s.Blocks) / float64(total)
}

// Rate is the block payload throughput in bytes per second.
func (s UploadSnapshot) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Elapsed.Seconds()
}

func (s UploadSnapshot) String() string {
	line := fmt.Sprintf("Upload [%s] pages %d/%d, blocks %d/%d (%5.1f%%) %s/s",
		s.Stage, s.Pages, s.TotalPages, s.Blocks, s.TotalBlocks, s.Completion()*100, FormatBytes(int64(s.Rate())))
	if s.Rejected > 0 {
		line += fmt.Sprintf(", %d rejected", s.Rejected)
	}
	return line
}

// FormatBytes renders b with a binary unit suffix.
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	v := float64(b)
	unit := ""
	for _, u := range []string{"KiB", "MiB", "GiB"} {
		v /= 1024
		unit = u
		if v < 1024 {
			break
		}
	}
	return fmt.Sprintf("%.2f %s", v, unit)
}

// StartProgressPrinter redraws the progress line of p on w every interval
// until the returned stop function is called.
func StartProgressPrinter(w io.Writer, p *UploadProgress, interval time.Duration) func() {
	if p == nil || w == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		width := 0
		for {
			select {
			case <-ticker.C:
				line := p.Snapshot().String()
				if n := width - len(line); n > 0 {
					line += strings.Repeat(" ", n)
				}
				width = len(line)
				fmt.Fprintf(w, "\r%s", line)
			case <-done:
				if width > 0 {
					fmt.Fprintln(w)
				}
				return
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
