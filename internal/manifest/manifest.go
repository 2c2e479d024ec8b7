package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/druglib/internal/common"
)

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

// Library identifies the drug library the artifacts were produced from.
type Library struct {
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	TransferCRC string `json:"transferCrc,omitempty"`
}

type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	ShaAlgo   string    `json:"shaAlgo"`
	Library   Library   `json:"library"`
	Items     []Item    `json:"items"`
}

func Build(lib Library, paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256", Library: lib}
	for _, p := range paths {
		sum, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, err
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Sha256: sum, Type: itemType(p)})
	}
	return m, nil
}

func itemType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex":
		return "image"
	case ".bin":
		return "binary"
	case ".json":
		return "json"
	case ".pdf":
		return "pdf"
	default:
		return "other"
	}
}

// Find returns the item whose base name is name.
func (m Manifest) Find(name string) (Item, bool) {
	for _, it := range m.Items {
		if filepath.Base(it.Path) == name {
			return it, true
		}
	}
	return Item{}, false
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}
