package encoder

import (
	"fmt"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/codec"
	"example.com/druglib/internal/library"
)

const (
	viewTextSize    = 8
	viewEntriesSize = 1 + MaxViewEntries*(1+viewTextSize)
	viewSubsetSize  = 1 + MaxSubsetEntries
)

// encodeView builds a 256-byte view record. Views and default views share
// the layout; default views carry their static text in Entry.Text.
func encodeView(path string, mode library.DeliveryMode, entries []library.ViewEntry) ([]byte, error) {
	sc, err := schemaFor(mode)
	if err != nil {
		return nil, configErr(path+".deliveryMode", err)
	}
	if len(entries) > MaxViewEntries {
		return nil, &SizeError{Section: path + ".parameters", Got: len(entries), Want: MaxViewEntries}
	}
	w := codec.NewWriter(RecordSize)
	w.Uint8(uint8(len(entries)))
	var patient, titration []uint8
	for k, e := range entries {
		id, ok := sc.viewID(e.Parameter)
		if !ok {
			return nil, configErr(fmt.Sprintf("%s.parameters[%d].name", path, k),
				fmt.Errorf("%w: %s parameter %q", library.ErrInvalidValue, mode, e.Parameter))
		}
		w.Uint8(id)
		w.String(e.Text, viewTextSize)
		if e.Patient {
			patient = append(patient, uint8(k))
		}
		if e.Titration {
			titration = append(titration, uint8(k))
		}
	}
	w.PadTo(viewEntriesSize, blockfmt.FillByte)
	writeSubset(w, patient)
	writeSubset(w, titration)
	return blockfmt.PadAndChecksum(0, w.Bytes(), RecordSize), nil
}

func writeSubset(w *codec.Writer, positions []uint8) {
	start := w.Len()
	w.Uint8(uint8(len(positions)))
	w.Raw(positions)
	w.PadTo(start+viewSubsetSize, blockfmt.FillByte)
}

// encodeViews fills the views section; unused slots stay erased.
func encodeViews(views []*library.View) ([]byte, error) {
	if len(views) > MaxViews {
		return nil, &SizeError{Section: "views", Got: len(views), Want: MaxViews}
	}
	out := make([]byte, 0, ViewsSize)
	for i, v := range views {
		rec, err := encodeView(fmt.Sprintf("views[%d]", i), v.Mode, v.Entries)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return blockfmt.PadToSize(out, ViewsSize, blockfmt.FillByte), nil
}

// encodeDefaultViews fills the default views section. Views whose mode is
// not one of the three known modes are skipped.
func encodeDefaultViews(views []*library.DefaultView) ([]byte, []int, error) {
	known := 0
	for _, v := range views {
		if v.Mode.Valid() {
			known++
		}
	}
	if known > MaxDefaultViews {
		return nil, nil, &SizeError{Section: "defaultViews", Got: known, Want: MaxDefaultViews}
	}
	out := make([]byte, 0, DefaultViewsSize)
	var skipped []int
	for i, v := range views {
		if !v.Mode.Valid() {
			skipped = append(skipped, i)
			continue
		}
		rec, err := encodeView(fmt.Sprintf("defaultViews[%d]", i), v.Mode, v.Entries)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, rec...)
	}
	return blockfmt.PadToSize(out, DefaultViewsSize, blockfmt.FillByte), skipped, nil
}
