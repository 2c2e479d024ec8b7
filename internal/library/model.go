package library

import (
	"fmt"
	"strings"
)

// DeliveryMode selects the protocol family and with it the record layout.
type DeliveryMode int

const (
	ModeContinuous DeliveryMode = iota
	ModeBolus
	ModeIntermittent
)

// Modes lists the delivery modes in code order.
var Modes = []DeliveryMode{ModeContinuous, ModeBolus, ModeIntermittent}

func (m DeliveryMode) String() string {
	switch m {
	case ModeContinuous:
		return "continuousInfusion"
	case ModeBolus:
		return "bolusInfusion"
	case ModeIntermittent:
		return "intermittentInfusion"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the three known modes.
func (m DeliveryMode) Valid() bool {
	return m >= ModeContinuous && m <= ModeIntermittent
}

// ParseDeliveryMode accepts the descriptor spellings ("continuousInfusion")
// and their short forms ("continuous").
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continuousinfusion", "continuous", "cont":
		return ModeContinuous, nil
	case "bolusinfusion", "bolus", "pca":
		return ModeBolus, nil
	case "intermittentinfusion", "intermittent", "int":
		return ModeIntermittent, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Param is one authored program value. Enabled mirrors the descriptor's
// switch for the parameter and is independent of Value.
type Param struct {
	Value   float64
	Unit    string
	Enabled bool
}

// Guard is a min/max range for one parameter.
type Guard struct {
	Min  float64
	Max  float64
	Unit string
}

type Component struct {
	Name   string
	Amount Param
}

type Drug struct {
	Name                   string
	Amount                 Param
	DiluteVolume           Param
	Components             []Component
	ConcentrationImmutable bool
}

type Protocol struct {
	ID         int
	Name       string
	Mode       DeliveryMode
	Params     map[string]Param
	Drug       *Drug
	RateFactor uint16
	LabelID    uint8
	Guards     map[string][]Guard
}

// Param returns the named parameter, or a disabled zero value.
func (p *Protocol) Param(name string) Param {
	if p == nil || p.Params == nil {
		return Param{}
	}
	return p.Params[name]
}

// Enabled reports whether the author switched the parameter on.
func (p *Protocol) Enabled(name string) bool {
	return p.Param(name).Enabled
}

// ViewEntry is one row of an on-device parameter view.
type ViewEntry struct {
	Parameter string
	Text      string
	Patient   bool
	Titration bool
}

type View struct {
	ID      int
	Name    string
	Mode    DeliveryMode
	Entries []ViewEntry
}

// DefaultView carries static default texts instead of live values. Mode may
// be outside the known set; such views are not emitted.
type DefaultView struct {
	Mode     DeliveryMode
	ModeName string
	Entries  []ViewEntry
}

type NodeType uint8

const (
	NodeMenu NodeType = iota
	NodeProtocol
	NodeAction
	NodeText
)

func ParseNodeType(s string) (NodeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "menu", "folder":
		return NodeMenu, nil
	case "protocol":
		return NodeProtocol, nil
	case "action":
		return NodeAction, nil
	case "text", "info":
		return NodeText, nil
	default:
		return 0, fmt.Errorf("%w: node type %q", ErrInvalidValue, s)
	}
}

func (t NodeType) String() string {
	switch t {
	case NodeMenu:
		return "menu"
	case NodeProtocol:
		return "protocol"
	case NodeAction:
		return "action"
	case NodeText:
		return "text"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

type Node struct {
	Type     NodeType
	Label    string
	Content  string
	Roles    []string
	Visible  bool
	Protocol string
	View     string
	LabelSet string
	Children []*Node
}

// Tree holds the three independently flattened navigation layers.
type Tree struct {
	Standby  *Node
	Config   *Node
	Infusion *Node
}

type LabelSet struct {
	Name   string
	Labels []string
}

type AccessCode struct {
	Roles []string
	Code  string
}

type Brightness uint8

const (
	BrightnessLow Brightness = iota
	BrightnessMedium
	BrightnessHigh
)

func ParseBrightness(s string) (Brightness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return BrightnessMedium, nil
	case "low":
		return BrightnessLow, nil
	case "medium", "mid":
		return BrightnessMedium, nil
	case "high":
		return BrightnessHigh, nil
	default:
		return 0, fmt.Errorf("%w: brightness %q", ErrInvalidValue, s)
	}
}

type Globals struct {
	MaintenanceInterval Param
	CallbackTimer       Param
	StandbyTimeout      Param
	SessionTimeout      Param
	ScreenBrightness    Brightness
	KeypadBrightness    Brightness
	Model               string
	DeviceName          string
}

// Descriptor is the whole authored library. An encode treats it as an
// immutable snapshot.
type Descriptor struct {
	ID           uint32
	Name         string
	Version      string
	Legacy       LegacyToken
	Protocols    []*Protocol
	Views        []*View
	DefaultViews []*DefaultView
	Tree         Tree
	LabelSets    []*LabelSet
	Roles        []string
	AccessCodes  []AccessCode
	Globals      Globals
}

// RoleBit returns the role's bit position.
func (d *Descriptor) RoleBit(name string) (int, bool) {
	for i, r := range d.Roles {
		if strings.EqualFold(r, name) {
			return i, true
		}
	}
	return 0, false
}

// ProtocolIndex returns the protocol's position in the protocol table.
func (d *Descriptor) ProtocolIndex(name string) (int, bool) {
	for i, p := range d.Protocols {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (d *Descriptor) ViewIndex(name string) (int, bool) {
	for i, v := range d.Views {
		if v.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (d *Descriptor) LabelSetIndex(name string) (int, bool) {
	for i, l := range d.LabelSets {
		if l.Name == name {
			return i, true
		}
	}
	return 0, false
}

// NameVersion is the "name version" string the pump reports back.
func (d *Descriptor) NameVersion() string {
	return strings.TrimSpace(d.Name + " " + d.Version)
}
