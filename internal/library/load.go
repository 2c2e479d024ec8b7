package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Load reads and converts a descriptor JSON file.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse converts descriptor JSON bytes.
func Parse(data []byte) (*Descriptor, error) {
	var file JSONFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	return FromJSON(file)
}

// EnsureLoaded is Load with path checks that give clearer messages at the
// command line.
func EnsureLoaded(path string) (*Descriptor, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty descriptor path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("descriptor path %s is a directory", path)
	}
	return Load(path)
}
