package report

import (
	"encoding/json"
	"os"

	"example.com/druglib/internal/inspect"
)

func SaveInspectionJSON(rep *inspect.Report, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadInspectionJSON(path string) (*inspect.Report, error) {
	var rep inspect.Report
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}
