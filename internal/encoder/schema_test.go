package encoder

import (
	"fmt"
	"reflect"
	"testing"

	"example.com/druglib/internal/codec"
	"example.com/druglib/internal/library"
)

type slot struct {
	name    string
	offset  int
	bit     int
	seconds bool
}

// unionLayouts is the firmware protocol union per mode.
var unionLayouts = map[library.DeliveryMode][]slot{
	library.ModeContinuous: {
		{"rate", 0, 0, false},
		{"vtbi", 4, 1, false},
		{"loadingDoseAmount", 8, 2, false},
		{"time", 12, 3, true},
		{"delayStart", 16, 4, true},
		{"kvoRate", 20, 5, false},
		{"delayKvoRate", 24, 6, false},
		{"concentration", 28, 7, false},
		{"drugAmount", 32, 22, false},
		{"diluteVolume", 36, noBit, false},
		{"weight", 40, 10, false},
	},
	library.ModeBolus: {
		{"basalRate", 0, 0, false},
		{"vtbi", 4, 1, false},
		{"loadingDoseAmount", 8, 2, false},
		{"time", 12, 3, true},
		{"delayStart", 16, 4, true},
		{"autoBolusAmount", 20, 5, false},
		{"bolusInterval", 24, 6, true},
		{"demandBolusAmount", 28, 7, false},
		{"lockoutTime", 32, 8, true},
		{"kvoRate", 36, 9, false},
		{"delayKvoRate", 40, 10, false},
		{"maxAmountPerHour", 44, 11, false},
		{"maxAmountPerInterval", 48, 12, false},
		{"clinicianDose", 52, 13, false},
		{"concentration", 56, 14, false},
		{"drugAmount", 60, 15, false},
		{"diluteVolume", 64, 16, false},
		{"weight", 68, 17, false},
	},
	library.ModeIntermittent: {
		{"doseRate", 0, 0, false},
		{"doseVtbi", 4, 1, false},
		{"loadingDoseAmount", 8, 2, false},
		{"totalTime", 12, 3, true},
		{"intervalTime", 16, 4, true},
		{"delayStart", 20, 5, true},
		{"intermittentKvoRate", 24, 6, false},
		{"kvoRate", 28, 7, false},
		{"delayKvoRate", 32, 8, false},
		{"maxAmountPerHour", 36, 9, false},
		{"maxAmountPerInterval", 40, 10, false},
		{"concentration", 44, 11, false},
		{"drugAmount", 48, 12, false},
		{"diluteVolume", 52, 13, false},
		{"weight", 56, 14, false},
	},
}

func isDrugOwned(name string) bool {
	return name == fieldConcentration || name == fieldDrugAmount || name == fieldDiluteVolume
}

func TestSchemaMatchesUnionLayout(t *testing.T) {
	for mode, layout := range unionLayouts {
		sc, err := schemaFor(mode)
		if err != nil {
			t.Fatalf("schemaFor(%v): %v", mode, err)
		}
		if len(sc.Fields) != len(layout) {
			t.Fatalf("%v fields = %d, want %d", mode, len(sc.Fields), len(layout))
		}
		for k, want := range layout {
			fd := sc.Fields[k]
			if fd.Name != want.name || fd.Bit != want.bit || (fd.Kind == kindSeconds) != want.seconds {
				t.Fatalf("%v field %d = %+v, want %+v", mode, k, fd, want)
			}
		}
	}
}

func TestSingleParameterPlacement(t *testing.T) {
	for mode, layout := range unionLayouts {
		for _, s := range layout {
			if isDrugOwned(s.name) {
				continue
			}
			t.Run(fmt.Sprintf("%v/%s", mode, s.name), func(t *testing.T) {
				unit := ""
				if s.seconds {
					unit = "min"
				}
				p := &library.Protocol{
					Name:   "P",
					Mode:   mode,
					Params: map[string]library.Param{s.name: on(7, unit)},
				}
				rec, err := encodeProtocol(0, p, library.LegacyToken{})
				if err != nil {
					t.Fatalf("encodeProtocol: %v", err)
				}
				bits := Switches(codec.Uint32At(rec, ProtocolSwitchesOffset)).Bits()
				if !reflect.DeepEqual(bits, []int{s.bit}) {
					t.Fatalf("switch bits = %v, want [%d]", bits, s.bit)
				}
				for off := 0; off < structSize; off += 4 {
					got := codec.Uint32At(rec, off)
					switch {
					case off != s.offset && got != 0:
						t.Fatalf("word at %d = %#x, want 0", off, got)
					case off == s.offset && s.seconds && codec.Int32At(rec, off) != 420:
						t.Fatalf("seconds at %d = %d, want 420", off, codec.Int32At(rec, off))
					case off == s.offset && !s.seconds && codec.Float32At(rec, off) != 7:
						t.Fatalf("value at %d = %v, want 7", off, codec.Float32At(rec, off))
					}
				}
			})
		}
	}
}

func TestDrugFieldPlacement(t *testing.T) {
	for mode, layout := range unionLayouts {
		t.Run(mode.String(), func(t *testing.T) {
			p := &library.Protocol{
				Name:   "P",
				Mode:   mode,
				Params: map[string]library.Param{fieldConcentration: {Enabled: true}},
				Drug: &library.Drug{
					Name:         "Drug",
					Amount:       library.Param{Value: 400, Unit: "mg", Enabled: true},
					DiluteVolume: library.Param{Value: 250, Unit: "mL", Enabled: true},
				},
			}
			rec, err := encodeProtocol(0, p, library.LegacyToken{})
			if err != nil {
				t.Fatalf("encodeProtocol: %v", err)
			}
			var wantBits []int
			want := map[string]float64{fieldConcentration: 1600, fieldDrugAmount: 400, fieldDiluteVolume: 250}
			for _, s := range layout {
				if !isDrugOwned(s.name) {
					continue
				}
				if s.bit != noBit {
					wantBits = append(wantBits, s.bit)
				}
				if got := codec.Float32At(rec, s.offset); got != want[s.name] {
					t.Fatalf("%s at %d = %v, want %v", s.name, s.offset, got, want[s.name])
				}
			}
			bits := Switches(codec.Uint32At(rec, ProtocolSwitchesOffset)).Bits()
			if !reflect.DeepEqual(bits, wantBits) {
				t.Fatalf("switch bits = %v, want %v", bits, wantBits)
			}
		})
	}
}

func TestContinuousRateTimeWeight(t *testing.T) {
	p := &library.Protocol{
		Name: "Dopamine",
		Mode: library.ModeContinuous,
		Params: map[string]library.Param{
			"rate":      on(5, "mcg/min"),
			"time":      on(30, "min"),
			fieldWeight: {Enabled: true},
		},
	}
	rec, err := encodeProtocol(0, p, library.LegacyToken{})
	if err != nil {
		t.Fatalf("encodeProtocol: %v", err)
	}
	if bits := Switches(codec.Uint32At(rec, ProtocolSwitchesOffset)).Bits(); !reflect.DeepEqual(bits, []int{0, 3, 10}) {
		t.Fatalf("switch bits = %v, want [0 3 10]", bits)
	}
	if codec.Int32At(rec, 8) != 0 || codec.Int32At(rec, 12) != 1800 {
		t.Fatalf("time words = %d, %d; want 0, 1800", codec.Int32At(rec, 8), codec.Int32At(rec, 12))
	}
	if rec[ProtocolRateUnitOffset] != 3 {
		t.Fatalf("rate unit code = %d, want 3", rec[ProtocolRateUnitOffset])
	}
}

func TestRateUnitCodes(t *testing.T) {
	tests := map[string]uint8{
		"mL/hr":      0,
		"mg/min":     1,
		"mg/kg/min":  2,
		"mcg/min":    3,
		"mcg/kg/min": 4,
		"":           0,
	}
	for unit, want := range tests {
		got, err := rateUnitCode(unit)
		if err != nil || got != want {
			t.Fatalf("rateUnitCode(%q) = %d, %v; want %d", unit, got, err, want)
		}
	}
	if _, err := rateUnitCode("mg/hr"); err == nil {
		t.Fatalf("expected error for a rate unit the pump cannot display")
	}
}
