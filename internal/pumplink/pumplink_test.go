package pumplink

import (
	"bytes"
	"context"
	"crypto/aes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/common"
	"example.com/druglib/internal/encoder"
	"example.com/druglib/internal/flash"
)

func init() {
	common.SetLogOutput(io.Discard)
}

// fakePump answers framed commands the way the pump firmware does.
type fakePump struct {
	t        *testing.T
	mode     ChecksumMode
	serial   string
	reject   string
	commands []string
	out      bytes.Buffer
}

func (p *fakePump) Write(b []byte) (int, error) {
	if len(b) < 4 || b[0] != stx || b[len(b)-1] != etx {
		p.t.Fatalf("bad frame % x", b)
	}
	body := string(b[1 : len(b)-1])
	cmd, sum := body[:len(body)-2], body[len(body)-2:]
	if want := Checksum(cmd, p.mode); sum != want {
		p.t.Fatalf("frame checksum = %s, want %s", sum, want)
	}
	p.commands = append(p.commands, cmd)

	var reply string
	switch {
	case strings.HasPrefix(cmd, p.reject) && p.reject != "":
		reply = "NG"
	case cmd == "RN":
		reply = "RN" + p.serial
	case strings.HasPrefix(cmd, "LE"), strings.HasPrefix(cmd, "LW"):
		reply = cmd[:10]
	default:
		reply = cmd[:2]
	}
	p.out.WriteByte(stx)
	p.out.WriteString(reply)
	p.out.WriteString(Checksum(reply, p.mode))
	p.out.WriteByte(etx)
	p.out.WriteString("\r\n")
	return len(b), nil
}

func (p *fakePump) Read(b []byte) (int, error) {
	return p.out.Read(b)
}

var testKey = bytes.Repeat([]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}, 4)

func TestChecksumModes(t *testing.T) {
	if got := Checksum("RN", ChecksumSum); got != "A0" {
		t.Fatalf("sum = %s, want A0", got)
	}
	if got := Checksum("RN", ChecksumXor); got != "1C" {
		t.Fatalf("xor = %s, want 1C", got)
	}
	frame := Frame("LB", ChecksumSum)
	if !bytes.Equal(frame, []byte{0x02, 'L', 'B', '8', 'E', 0x03}) {
		t.Fatalf("frame = % x", frame)
	}
	if got := ParseReply([]byte("\x02LE00000001C5\x03\r\n")); got != "LE00000001" {
		t.Fatalf("ParseReply = %q", got)
	}
	if got := ParseReply([]byte("\x02")); got != "" {
		t.Fatalf("ParseReply(empty) = %q", got)
	}
}

func TestParseChecksumMode(t *testing.T) {
	for in, want := range map[string]ChecksumMode{"": ChecksumSum, "+": ChecksumSum, "xor": ChecksumXor, "^": ChecksumXor} {
		got, err := ParseChecksumMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseChecksumMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseChecksumMode("*"); err == nil {
		t.Fatalf("expected error for unknown symbol")
	}
}

func testImage() []byte {
	image := blockfmt.Filled(encoder.ImageSize)
	copy(image[0:], []byte("library"))
	image[64*10] = 0x42
	return image
}

func TestUploadSequence(t *testing.T) {
	pump := &fakePump{t: t, mode: ChecksumXor, serial: "AB12CD34"}
	progress := common.NewUploadProgress()
	up, err := NewUploader(NewLink(pump, ChecksumXor), testKey, progress)
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}
	image := testImage()
	sum, err := up.Upload(context.Background(), image)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if sum.Serial != "AB12CD34" || sum.Pages != 17 || sum.Blocks != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	want, _ := flash.TransferChecksum(image)
	if sum.Checksum != want {
		t.Fatalf("checksum = %08x, want %08x", sum.Checksum, want)
	}

	cmds := pump.commands
	if len(cmds) != 1+1+17+2+1+1 {
		t.Fatalf("commands = %d", len(cmds))
	}
	if cmds[0] != "RN" || cmds[1] != "LB" || cmds[2] != "LE00000001" || cmds[18] != "LE00000011" {
		t.Fatalf("command order = %v", cmds[:3])
	}
	if !strings.HasPrefix(cmds[19], "LW00000040") || !strings.HasPrefix(cmds[20], "LW0000004A") {
		t.Fatalf("write commands = %.12s %.12s", cmds[19], cmds[20])
	}
	if len(cmds[19]) != 2+8+128 {
		t.Fatalf("LW length = %d", len(cmds[19]))
	}
	if !strings.HasPrefix(cmds[21], "LA") || cmds[22] != "LR" {
		t.Fatalf("tail = %v", cmds[21:])
	}
	token, _ := AuthorizationToken(testKey, "AB12CD34", want)
	if cmds[21] != "LA"+token {
		t.Fatalf("LA = %s, want LA%s", cmds[21], token)
	}

	snap := progress.Snapshot()
	if snap.Stage != common.StageDone || snap.Pages != 17 || snap.Blocks != 2 || snap.Bytes != 128 {
		t.Fatalf("progress = %+v", snap)
	}
	if snap.Commands != 22 || snap.Rejected != 0 || snap.Completion() != 1 {
		t.Fatalf("progress = %+v", snap)
	}
}

func TestUploadStopsOnRejectedCommand(t *testing.T) {
	pump := &fakePump{t: t, mode: ChecksumSum, serial: "00000001", reject: "LE"}
	progress := common.NewUploadProgress()
	up, _ := NewUploader(NewLink(pump, ChecksumSum), testKey, progress)
	_, err := up.Upload(context.Background(), testImage())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("error = %v, want ErrRejected", err)
	}
	var rerr *ReplyError
	if !errors.As(err, &rerr) || rerr.Command != "LE" {
		t.Fatalf("reply error = %+v", rerr)
	}
	if last := pump.commands[len(pump.commands)-1]; last != "LE00000001" {
		t.Fatalf("last command = %s", last)
	}
	if snap := progress.Snapshot(); snap.Stage != common.StageErase || snap.Rejected != 1 || snap.Pages != 0 {
		t.Fatalf("progress = %+v", snap)
	}
}

func TestUploadHonoursContext(t *testing.T) {
	pump := &fakePump{t: t, mode: ChecksumSum, serial: "00000001"}
	up, _ := NewUploader(NewLink(pump, ChecksumSum), testKey, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := up.Upload(ctx, testImage()); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(pump.commands) != 0 {
		t.Fatalf("commands sent after cancel: %v", pump.commands)
	}
}

func TestAuthorizationToken(t *testing.T) {
	token, err := AuthorizationToken(testKey, "1234", 0xDEADBEEF)
	if err != nil {
		t.Fatalf("AuthorizationToken: %v", err)
	}
	if len(token) != 32 || token != strings.ToUpper(token) {
		t.Fatalf("token = %q", token)
	}
	raw, _ := hex.DecodeString(token)
	block, _ := aes.NewCipher(testKey)
	plain := make([]byte, aes.BlockSize)
	block.Decrypt(plain, raw)
	if string(plain[:8]) != "00001234" {
		t.Fatalf("serial = %q", plain[:8])
	}
	if binary.BigEndian.Uint32(plain[8:12]) != 0xDEADBEEF || string(plain[12:]) != "0000" {
		t.Fatalf("plain = % x", plain)
	}
	if _, err := NewUploader(nil, []byte("short"), nil); !errors.Is(err, ErrAuthKeySize) {
		t.Fatalf("error = %v, want ErrAuthKeySize", err)
	}
}
