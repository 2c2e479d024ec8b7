package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"example.com/druglib/internal/common"
	"example.com/druglib/internal/config"
	"example.com/druglib/internal/encoder"
	"example.com/druglib/internal/inspect"
	"example.com/druglib/internal/library"
	"example.com/druglib/internal/manifest"
	"example.com/druglib/internal/pumplink"
	"example.com/druglib/internal/report"
)

// dialFunc opens the link to the pump.
type dialFunc func(pumplink.SerialConfig) (io.ReadWriteCloser, error)

func openPump(cfg pumplink.SerialConfig) (io.ReadWriteCloser, error) {
	return pumplink.OpenSerial(cfg)
}

type encodeOutput struct {
	Library      *library.Descriptor
	Result       *encoder.Result
	Report       *inspect.Report
	HexPath      string
	BinPath      string
	PDFPath      string
	ManifestPath string
}

// encodeFile compiles the descriptor at in and writes the hex file, the
// optional binary and PDF, and a manifest into cfg.OutputDir.
func encodeFile(cfg config.Config, in string, bin bool) (*encodeOutput, error) {
	d, err := library.EnsureLoaded(in)
	if err != nil {
		return nil, err
	}
	res, err := encoder.Encode(d, encoder.Options{StrictReferences: cfg.Strict})
	if err != nil {
		return nil, err
	}
	rep, err := inspect.Inspect(res.Image)
	if err != nil {
		return nil, err
	}
	out := &encodeOutput{Library: d, Result: res, Report: rep}
	name := encoder.FileName(d.Name, d.Version, time.Now())
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if out.HexPath, err = common.WriteFile(cfg.OutputDir, name, []byte(res.Hex())); err != nil {
		return nil, err
	}
	paths := []string{out.HexPath}
	if bin {
		if out.BinPath, err = common.WriteFile(cfg.OutputDir, base+".bin", res.Image); err != nil {
			return nil, err
		}
		paths = append(paths, out.BinPath)
	}
	if cfg.Report.PDF {
		out.PDFPath = filepath.Join(cfg.OutputDir, base+".pdf")
		opts := report.PDFOptions{QRSize: cfg.Report.QRSize, GeneratedAt: time.Now()}
		if err := report.SaveInspectionPDF(rep, out.PDFPath, opts); err != nil {
			return nil, err
		}
		paths = append(paths, out.PDFPath)
	}
	out.ManifestPath = filepath.Join(cfg.OutputDir, base+".manifest.json")
	lib := manifest.Library{Name: d.Name, Version: d.Version, TransferCRC: rep.TransferCRC}
	m, err := manifest.Build(lib, paths)
	if err != nil {
		return nil, err
	}
	if err := manifest.Save(m, out.ManifestPath); err != nil {
		return nil, err
	}
	return out, nil
}

func printEncoded(w io.Writer, out *encodeOutput) {
	for _, wn := range out.Result.Warnings {
		fmt.Fprintln(w, "Warning:", wn)
	}
	for _, i := range out.Result.SkippedDefaults {
		fmt.Fprintf(w, "Warning: default view %d skipped (mode %q)\n", i, out.Library.DefaultViews[i].ModeName)
	}
	fmt.Fprintf(w, "Encoded %s: %d protocols, layers %v, %d map entries\n",
		out.Library.NameVersion(), len(out.Library.Protocols), out.Result.LayerCounts, out.Result.MapEntries)
	fmt.Fprintln(w, "Transfer CRC:", out.Report.TransferCRC)
	for _, p := range []string{out.HexPath, out.BinPath, out.PDFPath, out.ManifestPath} {
		if p != "" {
			fmt.Fprintln(w, "Wrote", p)
		}
	}
}

// readImage loads a library image from a hex file, or encodes it when path
// names a descriptor JSON file.
func readImage(cfg config.Config, path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		d, err := library.EnsureLoaded(path)
		if err != nil {
			return nil, err
		}
		res, err := encoder.Encode(d, encoder.Options{StrictReferences: cfg.Strict})
		if err != nil {
			return nil, err
		}
		return res.Image, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sections, err := inspect.Split(string(data))
	if err != nil {
		return nil, err
	}
	image := make([]byte, 0, encoder.ImageSize)
	for _, s := range sections {
		image = append(image, s...)
	}
	return image, nil
}

func inspectFile(w io.Writer, path string) (*inspect.Report, error) {
	image, err := readImage(config.Default(), path)
	if err != nil {
		return nil, err
	}
	rep, err := inspect.Inspect(image)
	if err != nil {
		return nil, err
	}
	if err := inspect.Print(w, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func saveReports(cfg config.Config, rep *inspect.Report, jsonOut, pdfOut string) error {
	if jsonOut != "" {
		if err := report.SaveInspectionJSON(rep, jsonOut); err != nil {
			return err
		}
		fmt.Println("Wrote", jsonOut)
	}
	if pdfOut != "" {
		opts := report.PDFOptions{QRSize: cfg.Report.QRSize, GeneratedAt: time.Now()}
		if err := report.SaveInspectionPDF(rep, pdfOut, opts); err != nil {
			return err
		}
		fmt.Println("Wrote", pdfOut)
	}
	return nil
}

// writeManifest builds a manifest over paths and, when signKey names an RSA
// key, writes a detached signature next to it as <out>.jws.
func writeManifest(paths []string, name, ver, out, signKey string) error {
	lib := manifest.Library{Name: name, Version: ver}
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), ".hex") {
			continue
		}
		image, err := readImage(config.Default(), p)
		if err != nil {
			return err
		}
		rep, err := inspect.Inspect(image)
		if err != nil {
			return err
		}
		lib.TransferCRC = rep.TransferCRC
		break
	}
	m, err := manifest.Build(lib, paths)
	if err != nil {
		return err
	}
	if err := manifest.Save(m, out); err != nil {
		return err
	}
	if signKey == "" {
		return nil
	}
	return manifest.SignFile(m, signKey, out+".jws")
}

// sendFile uploads the image at path to the pump reached through dial.
func sendFile(w io.Writer, cfg config.Config, path string, dial dialFunc) error {
	image, err := readImage(cfg, path)
	if err != nil {
		return err
	}
	key, err := cfg.Pump.Key()
	if err != nil {
		return err
	}
	mode, err := pumplink.ParseChecksumMode(cfg.Pump.Checksum)
	if err != nil {
		return err
	}
	port, err := dial(cfg.Pump.Serial())
	if err != nil {
		return err
	}
	defer port.Close()

	progress := common.NewUploadProgress()
	up, err := pumplink.NewUploader(pumplink.NewLink(port, mode), key, progress)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopProgress := common.StartProgressPrinter(w, progress, 500*time.Millisecond)
	sum, err := up.Upload(ctx, image)
	stopProgress()
	recordUpload(cfg, path, image, sum, err)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Sent library to pump %s: %d pages erased, %d blocks written, %d skipped, CRC %08X in %s\n",
		sum.Serial, sum.Pages, sum.Blocks, sum.Skipped, sum.Checksum, sum.Duration.Round(time.Millisecond))
	return nil
}

// uploadLogName is the upload history kept in the output directory.
const uploadLogName = "uploads.jsonl"

func recordUpload(cfg config.Config, path string, image []byte, sum *pumplink.Summary, upErr error) {
	entry := common.UploadEntry{Source: path, Sha256: common.Sha256Hex(image)}
	if sum != nil {
		entry.Serial = sum.Serial
		entry.Blocks = sum.Blocks
		entry.Skipped = sum.Skipped
		entry.DurationMS = sum.Duration.Milliseconds()
		entry.TransferCRC = fmt.Sprintf("%08X", sum.Checksum)
	}
	if upErr != nil {
		entry.Error = upErr.Error()
	}
	log := common.NewUploadLog(filepath.Join(cfg.OutputDir, uploadLogName))
	if err := log.Append(entry); err != nil {
		common.Logf("upload log %s: %v", log.Path(), err)
	}
}

type batchResult struct {
	Input string
	Out   *encodeOutput
	Err   error
}

// encodeDir encodes every descriptor JSON file under dir.
func encodeDir(cfg config.Config, dir string) ([]batchResult, error) {
	var inputs []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") && !strings.HasSuffix(path, ".manifest.json") {
			inputs = append(inputs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(inputs)
	results := make([]batchResult, 0, len(inputs))
	for _, in := range inputs {
		out, err := encodeFile(cfg, in, false)
		results = append(results, batchResult{Input: in, Out: out, Err: err})
	}
	return results, nil
}

func printBatch(w io.Writer, results []batchResult) int {
	failed := 0
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tSTATUS\tTRANSFER CRC\tOUTPUT")
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(tw, "%s\tFAIL\t-\t%v\n", r.Input, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\tOK\t%s\t%s\n", r.Input, r.Out.Report.TransferCRC, r.Out.HexPath)
	}
	tw.Flush()
	return failed
}
