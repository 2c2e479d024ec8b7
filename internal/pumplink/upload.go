package pumplink

import (
	"context"
	"crypto/aes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"example.com/druglib/internal/common"
	"example.com/druglib/internal/flash"
)

var (
	ErrRejected     = errors.New("pump rejected command")
	ErrNoSerial     = errors.New("pump did not report a serial number")
	ErrAuthKeySize  = errors.New("authorization key must be 16, 24 or 32 bytes")
	serialNumberPat = regexp.MustCompile(`RN([A-Z0-9]{8})`)
)

// ReplyError is a reply that did not echo the command as expected.
type ReplyError struct {
	Command string
	Reply   string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: reply %q", e.Command, e.Reply)
}

func (e *ReplyError) Is(target error) bool { return target == ErrRejected }

// Querier sends one command and returns the reply payload.
type Querier interface {
	Query(ctx context.Context, cmd string) (string, error)
}

// Uploader writes a library image into pump flash: begin, erase every
// library page, write each non-erased block, authorize, reset.
type Uploader struct {
	link     Querier
	key      []byte
	progress *common.UploadProgress
}

// NewUploader checks the authorization key. progress may be nil.
func NewUploader(link Querier, key []byte, progress *common.UploadProgress) (*Uploader, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: got %d", ErrAuthKeySize, len(key))
	}
	return &Uploader{link: link, key: key, progress: progress}, nil
}

// Summary describes a finished upload.
type Summary struct {
	Serial   string
	Pages    int
	Blocks   int
	Skipped  int
	Checksum uint32
	Duration time.Duration
}

// SerialNumber reads the pump's eight character serial number.
func (u *Uploader) SerialNumber(ctx context.Context) (string, error) {
	reply, err := u.link.Query(ctx, "RN")
	if err != nil {
		return "", err
	}
	m := serialNumberPat.FindStringSubmatch(reply)
	if m == nil {
		return "", fmt.Errorf("%w: reply %q", ErrNoSerial, reply)
	}
	return m[1], nil
}

// AuthorizationToken encrypts serial, the big-endian transfer checksum and
// "0000" as one AES block and returns it as upper-case hex.
func AuthorizationToken(key []byte, serial string, checksum uint32) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthKeySize, err)
	}
	if len(serial) < 8 {
		serial = strings.Repeat("0", 8-len(serial)) + serial
	}
	msg := make([]byte, 0, aes.BlockSize)
	msg = append(msg, serial[:8]...)
	msg = binary.BigEndian.AppendUint32(msg, checksum)
	msg = append(msg, "0000"...)
	out := make([]byte, aes.BlockSize)
	block.Encrypt(out, msg)
	return strings.ToUpper(hex.EncodeToString(out)), nil
}

func (u *Uploader) expect(ctx context.Context, cmd, prefix string, length int) error {
	reply, err := u.link.Query(ctx, cmd)
	if err != nil {
		return err
	}
	ok := len(reply) == length && strings.HasPrefix(reply, prefix)
	u.progress.Command(ok)
	if !ok {
		return &ReplyError{Command: prefix, Reply: reply}
	}
	return nil
}

// Upload sends image to the pump. It stops at the first rejected command.
func (u *Uploader) Upload(ctx context.Context, image []byte) (*Summary, error) {
	plan, err := flash.NewPlan(image)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	u.progress.Begin(len(plan.Pages), len(plan.Blocks))
	defer u.progress.Finish()
	serial, err := u.SerialNumber(ctx)
	if err != nil {
		return nil, err
	}
	common.Logf("upload to pump %s: %d pages, %d blocks, checksum %08X", serial, len(plan.Pages), len(plan.Blocks), plan.Checksum)

	if err := u.expect(ctx, "LB", "LB", 2); err != nil {
		return nil, err
	}
	for _, page := range plan.Pages {
		if err := u.expect(ctx, fmt.Sprintf("LE%08X", page), "LE", 10); err != nil {
			return nil, err
		}
		u.progress.PageErased()
	}
	for _, b := range plan.Blocks {
		cmd := fmt.Sprintf("LW%08X%s", b.Index, strings.ToUpper(hex.EncodeToString(b.Data)))
		if err := u.expect(ctx, cmd, "LW", 10); err != nil {
			return nil, fmt.Errorf("block %d: %w", b.Index, err)
		}
		u.progress.BlockWritten(len(b.Data))
	}
	u.progress.Authorizing()
	token, err := AuthorizationToken(u.key, serial, plan.Checksum)
	if err != nil {
		return nil, err
	}
	if err := u.expect(ctx, "LA"+token, "LA", 2); err != nil {
		return nil, err
	}
	if err := u.expect(ctx, "LR", "LR", 2); err != nil {
		return nil, err
	}
	sum := &Summary{
		Serial:   serial,
		Pages:    len(plan.Pages),
		Blocks:   len(plan.Blocks),
		Skipped:  plan.Skipped,
		Checksum: plan.Checksum,
		Duration: time.Since(start),
	}
	common.Logf("upload to pump %s done in %s", serial, sum.Duration)
	return sum, nil
}
