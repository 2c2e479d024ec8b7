package pumplink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Link exchanges framed commands with a pump. Commands are serialised; each
// one waits for its reply before the next is sent.
type Link struct {
	mu   sync.Mutex
	w    io.Writer
	r    *bufio.Reader
	mode ChecksumMode
}

func NewLink(rw io.ReadWriter, mode ChecksumMode) *Link {
	return &Link{w: rw, r: bufio.NewReader(rw), mode: mode}
}

// Query sends cmd and returns the reply payload.
func (l *Link) Query(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(Frame(cmd, l.mode)); err != nil {
		return "", fmt.Errorf("send %s: %w", commandName(cmd), err)
	}
	raw, err := l.r.ReadBytes(etx)
	if err != nil {
		return "", fmt.Errorf("read %s reply: %w", commandName(cmd), err)
	}
	return ParseReply(raw), nil
}

func commandName(cmd string) string {
	if len(cmd) > 2 {
		return cmd[:2]
	}
	return cmd
}
