package encoder

import "example.com/druglib/internal/library"

// Switches is the per-mode parameter presence mask stored after the mode
// struct.
type Switches uint32

func (s Switches) Has(bit int) bool { return s&(1<<uint(bit)) != 0 }

// Bits lists the set bit positions in ascending order.
func (s Switches) Bits() []int {
	var out []int
	for i := 0; i < 32; i++ {
		if s.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

// switchMask sets a bit for every parameter the author enabled, whatever its
// value. Drug-owned fields are on exactly when a drug is attached.
func switchMask(sc *modeSchema, p *library.Protocol) Switches {
	var mask Switches
	for _, fd := range sc.Fields {
		if fd.Bit == noBit {
			continue
		}
		on := p.Enabled(fd.Name)
		if fd.Name == fieldDrugAmount || fd.Name == fieldDiluteVolume {
			on = p.Drug != nil
		}
		if on {
			mask |= 1 << uint(fd.Bit)
		}
	}
	return mask
}
