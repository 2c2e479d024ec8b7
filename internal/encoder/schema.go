package encoder

import (
	"fmt"

	"example.com/druglib/internal/library"
)

type fieldKind uint8

const (
	kindFloat fieldKind = iota
	kindSeconds
)

const noBit = -1

// bitDrug marks an attached drug in continuous mode. Bolus and intermittent
// protocols flag the drug through their drugAmount and diluteVolume bits.
const bitDrug = 22

// Derived and drug-owned fields of the mode structs.
const (
	fieldConcentration = "concentration"
	fieldDrugAmount    = "drugAmount"
	fieldDiluteVolume  = "diluteVolume"
	fieldWeight        = "weight"
)

// View parameter ids outside the struct positions.
const (
	viewIDDrugName = 0x20
	viewIDRateUnit = 0x21
)

const structSize = 80

type field struct {
	Name string
	Kind fieldKind
	Bit  int
}

// modeSchema is the single source for one delivery mode's struct layout,
// switch bits, guard order and view parameter ids.
type modeSchema struct {
	Mode      library.DeliveryMode
	Code      uint8
	RateField string
	Fields    []field
	// Secondary lists the fields whose second guard entry is encoded as a
	// patient-adjustable range after the primary pairs.
	Secondary []string
}

func num(name string, bit int) field { return field{Name: name, Kind: kindFloat, Bit: bit} }
func dur(name string, bit int) field { return field{Name: name, Kind: kindSeconds, Bit: bit} }

// Struct order and switch bits follow the pump firmware's protocol union.
var schemas = map[library.DeliveryMode]*modeSchema{
	library.ModeContinuous: {
		Mode:      library.ModeContinuous,
		Code:      0,
		RateField: "rate",
		Fields: []field{
			num("rate", 0),
			num("vtbi", 1),
			num("loadingDoseAmount", 2),
			dur("time", 3),
			dur("delayStart", 4),
			num("kvoRate", 5),
			num("delayKvoRate", 6),
			num(fieldConcentration, 7),
			num(fieldDrugAmount, bitDrug),
			num(fieldDiluteVolume, noBit),
			num(fieldWeight, 10),
		},
	},
	library.ModeBolus: {
		Mode:      library.ModeBolus,
		Code:      1,
		RateField: "basalRate",
		Fields: []field{
			num("basalRate", 0),
			num("vtbi", 1),
			num("loadingDoseAmount", 2),
			dur("time", 3),
			dur("delayStart", 4),
			num("autoBolusAmount", 5),
			dur("bolusInterval", 6),
			num("demandBolusAmount", 7),
			dur("lockoutTime", 8),
			num("kvoRate", 9),
			num("delayKvoRate", 10),
			num("maxAmountPerHour", 11),
			num("maxAmountPerInterval", 12),
			num("clinicianDose", 13),
			num(fieldConcentration, 14),
			num(fieldDrugAmount, 15),
			num(fieldDiluteVolume, 16),
			num(fieldWeight, 17),
		},
		Secondary: []string{"basalRate", "autoBolusAmount"},
	},
	library.ModeIntermittent: {
		Mode:      library.ModeIntermittent,
		Code:      2,
		RateField: "doseRate",
		Fields: []field{
			num("doseRate", 0),
			num("doseVtbi", 1),
			num("loadingDoseAmount", 2),
			dur("totalTime", 3),
			dur("intervalTime", 4),
			dur("delayStart", 5),
			num("intermittentKvoRate", 6),
			num("kvoRate", 7),
			num("delayKvoRate", 8),
			num("maxAmountPerHour", 9),
			num("maxAmountPerInterval", 10),
			num(fieldConcentration, 11),
			num(fieldDrugAmount, 12),
			num(fieldDiluteVolume, 13),
			num(fieldWeight, 14),
		},
	},
}

func schemaFor(mode library.DeliveryMode) (*modeSchema, error) {
	sc, ok := schemas[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %v", library.ErrUnknownMode, mode)
	}
	return sc, nil
}

// position returns the struct position of name, which doubles as its view
// parameter id.
func (sc *modeSchema) position(name string) (int, bool) {
	for i, fd := range sc.Fields {
		if fd.Name == name {
			return i, true
		}
	}
	return 0, false
}

// viewID maps a view parameter name to its id for this mode.
func (sc *modeSchema) viewID(name string) (uint8, bool) {
	switch name {
	case "drugName", "drug":
		return viewIDDrugName, true
	case "rateUnit":
		return viewIDRateUnit, true
	}
	if i, ok := sc.position(name); ok {
		return uint8(i), true
	}
	return 0, false
}

var rateUnitCodes = map[string]uint8{
	"ml/hr":      0,
	"mg/min":     1,
	"mg/kg/min":  2,
	"mcg/min":    3,
	"mcg/kg/min": 4,
}

var amountUnitCodes = map[string]uint8{
	"mg":    0,
	"mcg":   1,
	"µg":    1,
	"ug":    1,
	"g":     2,
	"units": 3,
	"meq":   4,
}
