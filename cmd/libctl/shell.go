package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"example.com/druglib/internal/common"
	"example.com/druglib/internal/config"
)

var errExit = errors.New("exit")

const shellHelp = `Commands:
  help, ?                 show this help
  el, encrypt library     encode a descriptor JSON into a library hex file
  pl, parse library       verify and summarise a library hex file
  sl, send library        upload a library (hex or descriptor JSON) to the pump
  exit, quit              leave the shell
`

// shell is the interactive prompt. Command failures are printed and the
// prompt continues.
type shell struct {
	in   *bufio.Scanner
	out  io.Writer
	cfg  config.Config
	dial dialFunc
}

func (s *shell) run() error {
	fmt.Fprintf(s.out, "libctl %s. Type \"help\" for commands.\n", version)
	for {
		line, ok := s.prompt("> ")
		if !ok {
			return nil
		}
		if err := s.dispatch(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintln(s.out, "Error:", err)
		}
	}
}

func (s *shell) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *shell) dispatch(line string) error {
	switch strings.Join(strings.Fields(strings.ToLower(line)), " ") {
	case "":
		return nil
	case "help", "?":
		fmt.Fprint(s.out, shellHelp)
	case "el", "encrypt library":
		return s.withPath("Descriptor path: ", func(path string) error {
			out, err := encodeFile(s.cfg, path, false)
			if err != nil {
				return err
			}
			printEncoded(s.out, out)
			return nil
		})
	case "pl", "parse library":
		return s.withPath("Library path: ", func(path string) error {
			_, err := inspectFile(s.out, path)
			return err
		})
	case "sl", "send library":
		return s.withPath("Library path: ", func(path string) error {
			return sendFile(s.out, s.cfg, path, s.dial)
		})
	case "exit", "quit":
		return errExit
	default:
		fmt.Fprintf(s.out, "Unknown command %q. Type \"help\" for commands.\n", line)
	}
	return nil
}

// withPath asks for a path and runs fn on it. An empty answer does nothing.
func (s *shell) withPath(label string, fn func(string) error) error {
	path, ok := s.prompt(label)
	if !ok || path == "" {
		return nil
	}
	path = strings.Trim(path, `"'`)
	if !common.PathExists(path) {
		fmt.Fprintln(s.out, "Abort: path NOT exist")
		return nil
	}
	return fn(path)
}
