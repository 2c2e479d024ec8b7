package encoder

import (
	"fmt"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/codec"
	"example.com/druglib/internal/library"
)

const allRoles = 0xFFFF

// roleMask ORs the bits of roles. A node without roles inherits the mask
// of its parent.
func roleMask(d *library.Descriptor, path string, roles []string, inherited uint16) (uint16, error) {
	if len(roles) == 0 {
		return inherited, nil
	}
	var mask uint16
	for _, r := range roles {
		bit, ok := d.RoleBit(r)
		if !ok {
			return 0, configErr(path+".roles", fmt.Errorf("%w: %q", library.ErrUnknownRole, r))
		}
		mask |= 1 << uint(bit)
	}
	return mask, nil
}

// flatNode is one node placed in a layer arena.
type flatNode struct {
	node     *library.Node
	path     string
	mask     uint16
	children []int
}

// flattenLayer numbers a layer breadth first. Each dequeued node reserves
// the next contiguous block of indices for its children, so a node's
// children always sit in consecutive slots.
func flattenLayer(d *library.Descriptor, name string, root *library.Node, capacity int) ([]flatNode, error) {
	if root == nil {
		return nil, nil
	}
	path := "tree." + name
	mask, err := roleMask(d, path, root.Roles, allRoles)
	if err != nil {
		return nil, err
	}
	arena := []flatNode{{node: root, path: path, mask: mask}}
	for head := 0; head < len(arena); head++ {
		parent := arena[head]
		kids := parent.node.Children
		if len(kids) > MaxChildren {
			return nil, &SizeError{Section: parent.path + ".children", Got: len(kids), Want: MaxChildren}
		}
		for k, child := range kids {
			cpath := fmt.Sprintf("%s.children[%d]", parent.path, k)
			cmask, err := roleMask(d, cpath, child.Roles, parent.mask)
			if err != nil {
				return nil, err
			}
			arena[head].children = append(arena[head].children, len(arena))
			arena = append(arena, flatNode{node: child, path: cpath, mask: cmask})
		}
		if len(arena) > capacity {
			return nil, &SizeError{Section: "navigation." + name, Got: len(arena), Want: capacity}
		}
	}
	return arena, nil
}

func encodeNode(fn flatNode, mapPos map[*library.Node]int) []byte {
	w := codec.NewWriter(NodeSize)
	w.Uint16(fn.mask)
	for k := 0; k < MaxChildren; k++ {
		if k < len(fn.children) {
			w.Uint8(uint8(fn.children[k]))
		} else {
			w.Uint8(blockfmt.FillByte)
		}
	}
	w.Uint8(uint8(len(fn.children)))
	w.String(fn.node.Label, nodeTextSize)
	w.String(fn.node.Content, nodeTextSize)
	w.Uint8(uint8(fn.node.Type))
	ref := None
	if pos, ok := mapPos[fn.node]; ok {
		ref = Some(pos)
	}
	w.Uint8(ref.Byte())
	if fn.node.Visible {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
	return blockfmt.PadAndChecksum(0, w.Bytes(), NodeSize)
}

// encodeNavigation builds the navigation section: the three layers padded
// to capacity with erased records, then the layer count block.
func encodeNavigation(d *library.Descriptor, mapPos map[*library.Node]int) ([]byte, []int, error) {
	roots := []*library.Node{d.Tree.Standby, d.Tree.Config, d.Tree.Infusion}
	out := make([]byte, 0, NavigationSize)
	counts := make([]int, len(Layers))
	for li, layer := range Layers {
		arena, err := flattenLayer(d, layer.Name, roots[li], layer.Capacity)
		if err != nil {
			return nil, nil, err
		}
		start := len(out)
		for _, fn := range arena {
			out = append(out, encodeNode(fn, mapPos)...)
		}
		out = blockfmt.PadToSize(out, start+layer.Capacity*NodeSize, blockfmt.FillByte)
		counts[li] = len(arena)
	}
	meta := codec.NewWriter(NodeSize)
	for _, n := range counts {
		meta.Uint8(uint8(n))
		meta.Fill(blockfmt.FillByte, 7)
	}
	out = append(out, blockfmt.PadAndChecksum(0, meta.Bytes(), NodeSize)...)
	return out, counts, nil
}
