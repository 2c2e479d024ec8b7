package encoder

import (
	"fmt"
	"strings"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/codec"
	"example.com/druglib/internal/library"
)

// fieldValue holds one struct slot; Kind selects which member is written.
type fieldValue struct {
	Float   float64
	Seconds int32
}

// program is the value record of one protocol: everything the 256-byte
// record needs, already converted.
type program struct {
	schema        *modeSchema
	values        []fieldValue
	switches      Switches
	rateUnit      uint8
	concUnit      uint8
	concentration float64
}

func protocolPath(i int) string {
	return fmt.Sprintf("protocols[%d].content", i)
}

// buildProgram converts one protocol into its mode's value record. It has no
// side effects; every derived field is computed once here.
func buildProgram(i int, p *library.Protocol) (program, error) {
	path := protocolPath(i)
	sc, err := schemaFor(p.Mode)
	if err != nil {
		return program{}, configErr(path+".deliveryMode", err)
	}
	prog := program{
		schema:   sc,
		values:   make([]fieldValue, len(sc.Fields)),
		switches: switchMask(sc, p),
	}

	if p.Drug != nil {
		conc, err := concentration(p.Drug)
		if err != nil {
			return program{}, configErr(path+".drug.content.drugAmount.unit", err)
		}
		prog.concentration = conc
		if prog.concUnit, err = amountUnitCode(p.Drug.Amount.Unit); err != nil {
			return program{}, configErr(path+".drug.content.drugAmount.unit", err)
		}
	}
	if prog.rateUnit, err = rateUnitCode(p.Param(sc.RateField).Unit); err != nil {
		return program{}, configErr(path+".program."+sc.RateField+".unit", err)
	}

	for k, fd := range sc.Fields {
		switch fd.Name {
		case fieldConcentration:
			prog.values[k].Float = prog.concentration
			continue
		case fieldDrugAmount:
			if p.Drug != nil {
				prog.values[k].Float = p.Drug.Amount.Value
			}
			continue
		case fieldDiluteVolume:
			if p.Drug != nil {
				prog.values[k].Float = p.Drug.DiluteVolume.Value
			}
			continue
		}
		param := p.Param(fd.Name)
		if !param.Enabled {
			continue
		}
		if fd.Kind == kindSeconds {
			sec, err := codec.Seconds(param.Value, param.Unit)
			if err != nil {
				return program{}, configErr(path+".program."+fd.Name, err)
			}
			prog.values[k].Seconds = sec
			continue
		}
		prog.values[k].Float = param.Value
	}
	return prog, nil
}

// concentration returns the drug concentration in µg/mL, or per mL of the
// amount unit for non-mass units.
func concentration(d *library.Drug) (float64, error) {
	amount, err := drugMicrograms(d.Amount)
	if err != nil {
		return 0, err
	}
	if d.DiluteVolume.Value == 0 {
		return 0, nil
	}
	return amount / d.DiluteVolume.Value, nil
}

func drugMicrograms(p library.Param) (float64, error) {
	if strings.TrimSpace(p.Unit) == "" {
		return p.Value, nil
	}
	return codec.Micrograms(p.Value, p.Unit)
}

func rateUnitCode(unit string) (uint8, error) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return 0, nil
	}
	code, ok := rateUnitCodes[u]
	if !ok {
		return 0, fmt.Errorf("%w: rate %q", library.ErrUnknownUnit, unit)
	}
	return code, nil
}

func amountUnitCode(unit string) (uint8, error) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return 0, nil
	}
	code, ok := amountUnitCodes[u]
	if !ok {
		return 0, fmt.Errorf("%w: amount %q", library.ErrUnknownUnit, unit)
	}
	return code, nil
}

func (prog program) writeStruct(w *codec.Writer) {
	start := w.Len()
	for k, fd := range prog.schema.Fields {
		if fd.Kind == kindSeconds {
			w.Int32(prog.values[k].Seconds)
		} else {
			w.Float32(prog.values[k].Float)
		}
	}
	w.PadTo(start+structSize, 0)
}

// encodeProtocol builds the 256-byte protocol record.
func encodeProtocol(i int, p *library.Protocol, legacy library.LegacyToken) ([]byte, error) {
	prog, err := buildProgram(i, p)
	if err != nil {
		return nil, err
	}
	w := codec.NewWriter(RecordSize)
	prog.writeStruct(w)
	w.Uint32(uint32(prog.switches))
	w.Uint32(legacy.Value)
	w.Uint16(0xFFFF)
	w.Uint16(p.RateFactor)
	if p.Drug != nil && !p.Drug.ConcentrationImmutable {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
	w.Uint8(prog.schema.Code)
	w.Uint8(0xFF)
	w.Uint8(0xFF)
	w.Uint8(p.LabelID)
	w.Uint8(prog.rateUnit)
	w.Uint8(prog.concUnit)
	w.String(p.Name, nameSize)

	var drugName string
	var components []library.Component
	if p.Drug != nil {
		drugName = p.Drug.Name
		components = p.Drug.Components
	}
	w.String(drugName, nameSize)
	if len(components) > MaxComponents {
		return nil, &SizeError{Section: protocolPath(i) + ".drug.content.components", Got: len(components), Want: MaxComponents}
	}
	for k := 0; k < MaxComponents; k++ {
		if k >= len(components) {
			w.Fill(blockfmt.FillByte, nameSize+5)
			continue
		}
		c := components[k]
		code, err := amountUnitCode(c.Amount.Unit)
		if err != nil {
			return nil, configErr(fmt.Sprintf("%s.drug.content.components[%d].amount.unit", protocolPath(i), k), err)
		}
		w.String(c.Name, nameSize)
		w.Float32(c.Amount.Value)
		w.Uint8(code)
	}
	return blockfmt.PadAndChecksum(0, w.Bytes(), RecordSize), nil
}
