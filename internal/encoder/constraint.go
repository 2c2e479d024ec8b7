package encoder

import (
	"fmt"
	"math"
	"strings"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/codec"
	"example.com/druglib/internal/library"
)

// MaxPumpRate is the highest rate the pump delivers, in mL/hr.
const MaxPumpRate = 135.0

// Patient weight limits in kg accepted by the pump.
const (
	MinWeight = 1.0
	MaxWeight = 999.9
)

var guardDefaults = map[string]library.Guard{
	fieldDrugAmount:   {Max: 99.9},
	fieldDiluteVolume: {Max: 999},
	fieldWeight:       {Max: MaxWeight},
}

// WeightRange returns the patient weight range in kg implied by the pump's
// maximum rate for a weight-based rate unit, clamped to [MinWeight,
// MaxWeight]. ok is false when the protocol has no weight-based rate, no
// drug, or a zero rate or dilute volume.
func WeightRange(p *library.Protocol) (lower, upper float64, ok bool) {
	sc, err := schemaFor(p.Mode)
	if err != nil || p.Drug == nil {
		return 0, 0, false
	}
	rate := p.Param(sc.RateField)
	if !rate.Enabled || rate.Value <= 0 || p.Drug.DiluteVolume.Value <= 0 {
		return 0, 0, false
	}
	var perHour float64
	switch strings.ToLower(strings.TrimSpace(rate.Unit)) {
	case "mg/kg/min":
		perHour = 60 * 1000
	case "mcg/kg/min":
		perHour = 60
	default:
		return 0, 0, false
	}
	amount, err := drugMicrograms(p.Drug.Amount)
	if err != nil {
		return 0, 0, false
	}
	upper = MaxPumpRate * amount / (rate.Value * perHour * p.Drug.DiluteVolume.Value)
	return MinWeight, math.Min(upper, MaxWeight), true
}

// encodeConstraints builds the 256-byte guard record: one (min, max) pair per
// struct field in struct order, then the mode's secondary ranges.
func encodeConstraints(i int, p *library.Protocol) ([]byte, error) {
	path := protocolPath(i)
	sc, err := schemaFor(p.Mode)
	if err != nil {
		return nil, configErr(path+".deliveryMode", err)
	}
	w := codec.NewWriter(RecordSize)
	for _, fd := range sc.Fields {
		g, explicit := primaryGuard(p, fd.Name)
		if !explicit && fd.Name == fieldWeight {
			if lower, upper, ok := WeightRange(p); ok {
				g.Min = math.Max(g.Min, lower)
				g.Max = math.Min(g.Max, upper)
			}
		}
		if fd.Kind == kindSeconds {
			unit := g.Unit
			if unit == "" {
				unit = p.Param(fd.Name).Unit
			}
			lo, err := codec.Seconds(g.Min, unit)
			if err != nil {
				return nil, configErr(fmt.Sprintf("%s.constraints.%s", path, fd.Name), err)
			}
			hi, err := codec.Seconds(g.Max, unit)
			if err != nil {
				return nil, configErr(fmt.Sprintf("%s.constraints.%s", path, fd.Name), err)
			}
			w.Int32(lo)
			w.Int32(hi)
			continue
		}
		w.Float32(g.Min)
		w.Float32(g.Max)
	}
	for _, name := range sc.Secondary {
		var g library.Guard
		if gs := p.Guards[name]; len(gs) > 1 {
			g = gs[1]
		}
		w.Float32(g.Min)
		w.Float32(g.Max)
	}
	return blockfmt.PadAndChecksum(0, w.Bytes(), RecordSize), nil
}

func primaryGuard(p *library.Protocol, name string) (library.Guard, bool) {
	if gs := p.Guards[name]; len(gs) > 0 {
		return gs[0], true
	}
	return guardDefaults[name], false
}
