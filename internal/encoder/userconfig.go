package encoder

import (
	"fmt"
	"strconv"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/codec"
	"example.com/druglib/internal/library"
)

const (
	pinSize       = 3
	mapEntrySize  = 8
	labelTextSize = 10
)

func globalSeconds(path string, p library.Param) (int32, error) {
	if !p.Enabled {
		return 0, nil
	}
	sec, err := codec.Seconds(p.Value, p.Unit)
	if err != nil {
		return 0, configErr(path, err)
	}
	return sec, nil
}

// encodeGlobals builds the 512-byte device settings record.
func encodeGlobals(d *library.Descriptor) ([]byte, error) {
	g := d.Globals
	if len(d.AccessCodes) > MaxAccessCodes {
		return nil, &SizeError{Section: "accessCodes", Got: len(d.AccessCodes), Want: MaxAccessCodes}
	}
	w := codec.NewWriter(GlobalsSize)
	timers := []struct {
		path string
		p    library.Param
	}{
		{"globals.maintenanceInterval", g.MaintenanceInterval},
		{"globals.callbackTimer", g.CallbackTimer},
		{"globals.standbyTimeout", g.StandbyTimeout},
	}
	for _, t := range timers {
		sec, err := globalSeconds(t.path, t.p)
		if err != nil {
			return nil, err
		}
		w.Int32(sec)
	}
	w.Uint32(d.Legacy.Value)
	w.Uint32(d.ID)

	pins := make([]uint32, len(d.AccessCodes))
	for k := 0; k < MaxAccessCodes; k++ {
		if k >= len(d.AccessCodes) {
			w.Uint16(allRoles)
			continue
		}
		ac := d.AccessCodes[k]
		path := fmt.Sprintf("accessCodes[%d]", k)
		mask, err := roleMask(d, path, ac.Roles, 0)
		if err != nil {
			return nil, err
		}
		w.Uint16(mask)
		pin, err := strconv.ParseUint(ac.Code, 10, 24)
		if err != nil {
			return nil, configErr(path+".code", fmt.Errorf("%w: pin %q", library.ErrInvalidValue, ac.Code))
		}
		pins[k] = uint32(pin)
	}

	session, err := globalSeconds("globals.sessionTimeout", g.SessionTimeout)
	if err != nil {
		return nil, err
	}
	w.Int32(session)
	w.Uint8(uint8(g.ScreenBrightness))
	w.Uint8(uint8(g.KeypadBrightness))
	w.Uint8(uint8(len(d.AccessCodes)))
	w.Uint8(blockfmt.FillByte)
	for k := 0; k < MaxAccessCodes; k++ {
		if k < len(pins) {
			w.Uint24(pins[k])
		} else {
			w.Fill(blockfmt.FillByte, pinSize)
		}
	}
	w.String(d.NameVersion(), nameVersionSize)
	w.String(g.Model, modelSize)
	w.String(g.DeviceName, modelSize)
	return blockfmt.PadAndChecksum(0, w.Bytes(), GlobalsSize), nil
}

// encodeLabelSets builds the eight 64-byte label set records.
func encodeLabelSets(sets []*library.LabelSet) ([]byte, error) {
	if len(sets) > MaxLabelSets {
		return nil, &SizeError{Section: "labelSets", Got: len(sets), Want: MaxLabelSets}
	}
	out := make([]byte, 0, MaxLabelSets*LabelSetSize)
	for i, ls := range sets {
		if len(ls.Labels) > MaxLabels {
			return nil, &SizeError{Section: fmt.Sprintf("labelSets[%d].labels", i), Got: len(ls.Labels), Want: MaxLabels}
		}
		w := codec.NewWriter(LabelSetSize)
		w.Uint8(uint8(len(ls.Labels)))
		for k := 0; k < MaxLabels; k++ {
			if k < len(ls.Labels) {
				w.String(ls.Labels[k], labelTextSize)
			} else {
				w.Fill(blockfmt.FillByte, labelTextSize)
			}
		}
		out = append(out, blockfmt.PadAndChecksum(0, w.Bytes(), LabelSetSize)...)
	}
	return blockfmt.PadToSize(out, MaxLabelSets*LabelSetSize, blockfmt.FillByte), nil
}

// mapEntry is one protocol leaf reachable from the navigation tree.
type mapEntry struct {
	node     *library.Node
	path     string
	mask     uint16
	protocol OptionalIndex
	view     OptionalIndex
	label    OptionalIndex
}

// collectProtocolMap walks the infusion, standby and config layers depth
// first with an explicit stack and returns the protocol leaves in visit
// order. Leaves whose protocol cannot be resolved are left out of the map.
func collectProtocolMap(d *library.Descriptor, r *refs) ([]mapEntry, error) {
	type frame struct {
		node *library.Node
		path string
		mask uint16
	}
	layers := []struct {
		name string
		root *library.Node
	}{
		{"infusion", d.Tree.Infusion},
		{"standby", d.Tree.Standby},
		{"config", d.Tree.Config},
	}
	var entries []mapEntry
	for _, l := range layers {
		if l.root == nil {
			continue
		}
		stack := []frame{{node: l.root, path: "tree." + l.name, mask: allRoles}}
		for len(stack) > 0 {
			fr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			mask, err := roleMask(d, fr.path, fr.node.Roles, fr.mask)
			if err != nil {
				return nil, err
			}
			if fr.node.Type == library.NodeProtocol {
				e, ok, err := resolveLeaf(r, fr.path, fr.node)
				if err != nil {
					return nil, err
				}
				if ok {
					e.mask = mask
					entries = append(entries, e)
				}
			}
			for k := len(fr.node.Children) - 1; k >= 0; k-- {
				stack = append(stack, frame{
					node: fr.node.Children[k],
					path: fmt.Sprintf("%s.children[%d]", fr.path, k),
					mask: mask,
				})
			}
		}
	}
	if len(entries) > MaxMapEntries {
		return nil, &SizeError{Section: "protocolMap", Got: len(entries), Want: MaxMapEntries}
	}
	return entries, nil
}

func resolveLeaf(r *refs, path string, n *library.Node) (mapEntry, bool, error) {
	proto, err := r.protocol(path+".protocol", n.Protocol)
	if err != nil {
		return mapEntry{}, false, err
	}
	if !proto.Valid {
		return mapEntry{}, false, nil
	}
	view, err := r.view(path+".view", n.View)
	if err != nil {
		return mapEntry{}, false, err
	}
	label, err := r.labelSet(path+".labelSet", n.LabelSet)
	if err != nil {
		return mapEntry{}, false, err
	}
	return mapEntry{node: n, path: path, protocol: proto, view: view, label: label}, true, nil
}

func encodeProtocolMap(entries []mapEntry) []byte {
	w := codec.NewWriter(ProtocolMapSize)
	for k := 0; k < MaxMapEntries; k++ {
		if k >= len(entries) {
			w.Fill(blockfmt.FillByte, mapEntrySize)
			continue
		}
		e := entries[k]
		w.Uint16(e.mask)
		w.Uint8(e.protocol.Byte())
		w.Uint8(e.view.Byte())
		w.Uint8(e.label.Byte())
		w.Fill(blockfmt.FillByte, 3)
	}
	for k := 0; k < MaxMapEntries; k++ {
		if k < len(entries) {
			w.Uint8(uint8(k))
		} else {
			w.Uint8(blockfmt.FillByte)
		}
	}
	return blockfmt.PadAndChecksum(0, w.Bytes(), ProtocolMapSize)
}

// encodeUserConfig builds the user config page: globals, label sets and the
// protocol map, erased up to the page size.
func encodeUserConfig(d *library.Descriptor, entries []mapEntry) ([]byte, error) {
	globals, err := encodeGlobals(d)
	if err != nil {
		return nil, err
	}
	labels, err := encodeLabelSets(d.LabelSets)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, UserConfigSize)
	out = append(out, globals...)
	out = append(out, labels...)
	out = append(out, encodeProtocolMap(entries)...)
	return blockfmt.PadToSize(out, UserConfigSize, blockfmt.FillByte), nil
}
