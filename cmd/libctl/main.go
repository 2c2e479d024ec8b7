package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"example.com/druglib/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	if len(os.Args) < 2 {
		shellCmd(nil)
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "encode":
		encodeCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "send":
		sendCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	case "shell":
		shellCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`libctl %s (built %s) <command> [options]

Commands:
  encode    --in <descriptor.json> [--out-dir <dir>] [--bin] [--strict] [--config <config.yaml>]
  inspect   --in <library.hex> [--json <report.json>] [--pdf <report.pdf>] [--config <config.yaml>]
  manifest  --inputs <comma-separated> --out <manifest.json> [--name <name> --version <version>] [--sign-key <key.pem>]
  send      --in <library.hex|descriptor.json> [--port <device>] [--config <config.yaml>]
  batch     --in <dir> [--out-dir <dir>] [--config <config.yaml>]
  shell     [--config <config.yaml>]   (default with no command)
`, version, buildDate)
}

func loadConfig(path string) config.Config {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		fmt.Println("load config:", err)
		os.Exit(1)
	}
	return cfg
}

func encodeCmd(args []string) {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	in := fs.String("in", "", "descriptor JSON")
	outDir := fs.String("out-dir", "", "output directory (defaults to config outputDir)")
	bin := fs.Bool("bin", false, "also write the raw binary image")
	strict := fs.Bool("strict", false, "fail on unresolved node references")
	cfgPath := fs.String("config", defaultConfigPath, "configuration file")
	fs.Parse(args)
	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	cfg := loadConfig(*cfgPath)
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	cfg.Strict = cfg.Strict || *strict
	out, err := encodeFile(cfg, *in, *bin)
	if err != nil {
		fmt.Println("encode:", err)
		os.Exit(1)
	}
	printEncoded(os.Stdout, out)
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "library hex file")
	jsonOut := fs.String("json", "", "write the inspection report as JSON")
	pdfOut := fs.String("pdf", "", "write the inspection report as PDF")
	cfgPath := fs.String("config", defaultConfigPath, "configuration file")
	fs.Parse(args)
	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	cfg := loadConfig(*cfgPath)
	rep, err := inspectFile(os.Stdout, *in)
	if err != nil {
		fmt.Println("inspect:", err)
		os.Exit(1)
	}
	if err := saveReports(cfg, rep, *jsonOut, *pdfOut); err != nil {
		fmt.Println("report:", err)
		os.Exit(1)
	}
	if !rep.OK {
		os.Exit(1)
	}
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated paths")
	out := fs.String("out", "manifest.json", "output json")
	name := fs.String("name", "", "library name")
	ver := fs.String("version", "", "library version")
	signKey := fs.String("sign-key", "", "PEM RSA private key; writes <out>.jws")
	fs.Parse(args)

	var paths []string
	for _, p := range strings.Split(*inputs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		fmt.Println("required: --inputs")
		os.Exit(1)
	}
	if err := writeManifest(paths, *name, *ver, *out, *signKey); err != nil {
		fmt.Println("manifest:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote", *out)
}

func sendCmd(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	in := fs.String("in", "", "library hex file or descriptor JSON")
	port := fs.String("port", "", "serial device (overrides config)")
	cfgPath := fs.String("config", defaultConfigPath, "configuration file")
	fs.Parse(args)
	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	cfg := loadConfig(*cfgPath)
	if *port != "" {
		cfg.Pump.Port = *port
	}
	if err := sendFile(os.Stdout, cfg, *in, openPump); err != nil {
		fmt.Println("send:", err)
		os.Exit(1)
	}
}

func batchCmd(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	inDir := fs.String("in", ".", "directory of descriptor JSON files")
	outDir := fs.String("out-dir", "out", "results directory")
	cfgPath := fs.String("config", defaultConfigPath, "configuration file")
	fs.Parse(args)
	cfg := loadConfig(*cfgPath)
	cfg.OutputDir = *outDir
	results, err := encodeDir(cfg, *inDir)
	if err != nil {
		fmt.Println("batch:", err)
		os.Exit(1)
	}
	failed := printBatch(os.Stdout, results)
	if failed > 0 {
		os.Exit(1)
	}
}

func shellCmd(args []string) {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "configuration file")
	fs.Parse(args)
	sh := &shell{
		in:   bufio.NewScanner(os.Stdin),
		out:  os.Stdout,
		cfg:  loadConfig(*cfgPath),
		dial: openPump,
	}
	if err := sh.run(); err != nil && !errors.Is(err, errExit) {
		fmt.Println(err)
	}
}
