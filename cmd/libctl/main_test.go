package main

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"example.com/druglib/internal/common"
	"example.com/druglib/internal/config"
	"example.com/druglib/internal/manifest"
	"example.com/druglib/internal/pumplink"
)

func init() {
	common.SetLogOutput(io.Discard)
}

const descriptorJSON = `{
  "id": 5,
  "name": "ICU",
  "version": "1",
  "crc": "6B6B8B66",
  "protocols": [
    {"id": 1, "content": {
      "name": "Saline",
      "deliveryMode": "continuousInfusion",
      "program": {
        "switches": {"rate": true},
        "rate": {"value": 50, "unit": "mL/hr"}
      }
    }}
  ],
  "tree": {
    "infusion": {"type": "menu", "label": "Infusion", "children": [
      {"type": "protocol", "label": "Saline", "protocol": "Saline"}
    ]}
  }
}`

func writeDescriptor(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(descriptorJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	return cfg
}

// echoPump acknowledges every framed command the way the pump does.
type echoPump struct {
	mode     pumplink.ChecksumMode
	commands []string
	out      bytes.Buffer
	closed   bool
}

func (p *echoPump) Write(b []byte) (int, error) {
	body := string(b[1 : len(b)-1])
	cmd := body[:len(body)-2]
	p.commands = append(p.commands, cmd)
	reply := cmd[:2]
	switch {
	case cmd == "RN":
		reply = "RN0000ABCD"
	case strings.HasPrefix(cmd, "LE"), strings.HasPrefix(cmd, "LW"):
		reply = cmd[:10]
	}
	p.out.Write(pumplink.Frame(reply, p.mode))
	return len(b), nil
}

func (p *echoPump) Read(b []byte) (int, error) { return p.out.Read(b) }
func (p *echoPump) Close() error               { p.closed = true; return nil }

func TestEncodeFileWritesArtifacts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.PDF = true
	in := writeDescriptor(t, t.TempDir(), "icu.json")
	out, err := encodeFile(cfg, in, true)
	if err != nil {
		t.Fatalf("encodeFile: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(out.HexPath), "Library-ICU-1@") {
		t.Fatalf("hex path = %s", out.HexPath)
	}
	for _, p := range []string{out.HexPath, out.BinPath, out.PDFPath, out.ManifestPath} {
		if !common.PathExists(p) {
			t.Fatalf("%s not written", p)
		}
	}
	m, err := manifest.Load(out.ManifestPath)
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	if len(m.Items) != 3 || m.Library.TransferCRC != out.Report.TransferCRC {
		t.Fatalf("manifest = %+v", m)
	}
	var b strings.Builder
	printEncoded(&b, out)
	if !strings.Contains(b.String(), "Encoded ICU 1") {
		t.Fatalf("output = %q", b.String())
	}

	image, err := readImage(cfg, out.HexPath)
	if err != nil {
		t.Fatalf("readImage: %v", err)
	}
	raw, _ := os.ReadFile(out.BinPath)
	if !bytes.Equal(image, raw) {
		t.Fatalf("hex and bin images differ")
	}
}

func TestInspectAndManifest(t *testing.T) {
	cfg := testConfig(t)
	out, err := encodeFile(cfg, writeDescriptor(t, t.TempDir(), "icu.json"), false)
	if err != nil {
		t.Fatalf("encodeFile: %v", err)
	}
	var b strings.Builder
	rep, err := inspectFile(&b, out.HexPath)
	if err != nil {
		t.Fatalf("inspectFile: %v", err)
	}
	if !rep.OK || !strings.Contains(b.String(), "ICU 1") {
		t.Fatalf("report ok=%v output=%q", rep.OK, b.String())
	}

	mpath := filepath.Join(t.TempDir(), "m.json")
	if err := writeManifest([]string{out.HexPath}, "ICU", "1", mpath, ""); err != nil {
		t.Fatalf("writeManifest: %v", err)
	}
	m, _ := manifest.Load(mpath)
	if m.Library.TransferCRC != rep.TransferCRC {
		t.Fatalf("manifest crc = %q, want %q", m.Library.TransferCRC, rep.TransferCRC)
	}
}

func TestSendFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pump.Port = "fake"
	pump := &echoPump{mode: pumplink.ChecksumSum}
	var gotPort string
	dial := func(sc pumplink.SerialConfig) (io.ReadWriteCloser, error) {
		gotPort = sc.Port
		return pump, nil
	}
	in := writeDescriptor(t, t.TempDir(), "icu.json")
	var b strings.Builder
	if err := sendFile(&b, cfg, in, dial); err != nil {
		t.Fatalf("sendFile: %v", err)
	}
	if gotPort != "fake" || !pump.closed {
		t.Fatalf("port = %q closed = %v", gotPort, pump.closed)
	}
	if pump.commands[0] != "RN" || pump.commands[len(pump.commands)-1] != "LR" {
		t.Fatalf("commands = %v", pump.commands)
	}
	if !strings.Contains(b.String(), "Sent library to pump 0000ABCD") {
		t.Fatalf("output = %q", b.String())
	}
	entries, err := common.ReadUploadLog(filepath.Join(cfg.OutputDir, uploadLogName))
	if err != nil {
		t.Fatalf("ReadUploadLog: %v", err)
	}
	if len(entries) != 1 || !entries[0].OK() || entries[0].Serial != "0000ABCD" {
		t.Fatalf("upload log = %+v", entries)
	}
}

func TestEncodeDir(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	writeDescriptor(t, dir, "a.json")
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	results, err := encodeDir(cfg, dir)
	if err != nil {
		t.Fatalf("encodeDir: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	var b strings.Builder
	if failed := printBatch(&b, results); failed != 1 {
		t.Fatalf("failed = %d\n%s", failed, b.String())
	}
}

func runShell(t *testing.T, input string, cfg config.Config) string {
	t.Helper()
	var out strings.Builder
	sh := &shell{
		in:  bufio.NewScanner(strings.NewReader(input)),
		out: &out,
		cfg: cfg,
		dial: func(pumplink.SerialConfig) (io.ReadWriteCloser, error) {
			return &echoPump{mode: pumplink.ChecksumSum}, nil
		},
	}
	if err := sh.run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out.String()
}

func TestShellCommands(t *testing.T) {
	cfg := testConfig(t)
	in := writeDescriptor(t, t.TempDir(), "icu.json")
	missing := filepath.Join(t.TempDir(), "nope.json")

	out := runShell(t, strings.Join([]string{
		"",
		"?",
		"EL",
		in,
		"encrypt library",
		"",
		"parse library",
		missing,
		"sl",
		in,
		"bogus",
		"quit",
		"help",
	}, "\n")+"\n", cfg)

	for _, want := range []string{
		"encrypt library",
		"Encoded ICU 1",
		"Abort: path NOT exist",
		"Sent library to pump",
		`Unknown command "bogus"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("shell output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Commands:") != 1 {
		t.Fatalf("commands after quit were run:\n%s", out)
	}
}

func TestShellEndsAtEOF(t *testing.T) {
	out := runShell(t, "pl\n", testConfig(t))
	if !strings.Contains(out, "Library path: ") {
		t.Fatalf("output = %q", out)
	}
}
