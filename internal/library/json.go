package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number accepts both JSON numbers and numeric strings ("50").
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: number %q", ErrInvalidValue, s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Text accepts a JSON string or any scalar literal and keeps its text.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

type JSONValue struct {
	Value *Number `json:"value"`
	Unit  string  `json:"unit"`
}

type JSONGuard struct {
	Min  Number `json:"min"`
	Max  Number `json:"max"`
	Unit string `json:"unit,omitempty"`
}

type JSONComponent struct {
	Name   string     `json:"name"`
	Amount *JSONValue `json:"amount"`
}

type JSONDrugContent struct {
	Name                   string          `json:"name"`
	DrugAmount             *JSONValue      `json:"drugAmount"`
	DiluteVolume           *JSONValue      `json:"diluteVolume"`
	Components             []JSONComponent `json:"components,omitempty"`
	ConcentrationImmutable bool            `json:"concentrationImmutable"`
}

type JSONDrug struct {
	Content *JSONDrugContent `json:"content"`
}

type JSONProtocolContent struct {
	Name         string                     `json:"name"`
	DeliveryMode string                     `json:"deliveryMode"`
	Program      map[string]json.RawMessage `json:"program"`
	Drug         *JSONDrug                  `json:"drug"`
	RateFactor   *Number                    `json:"rateFactor,omitempty"`
	LabelID      *int                       `json:"labelId,omitempty"`
	Constraints  map[string][]JSONGuard     `json:"constraints,omitempty"`
}

type JSONProtocol struct {
	ID      int                  `json:"id"`
	Content *JSONProtocolContent `json:"content"`
}

type JSONViewParameter struct {
	Name        string `json:"name"`
	Value       Text   `json:"value,omitempty"`
	DefaultText Text   `json:"defaultText,omitempty"`
	Patient     bool   `json:"patient"`
	Titration   bool   `json:"titration"`
}

type JSONView struct {
	ID           int                 `json:"id"`
	Name         string              `json:"name"`
	DeliveryMode string              `json:"deliveryMode"`
	Parameters   []JSONViewParameter `json:"parameters"`
}

type JSONNode struct {
	Type     string      `json:"type"`
	Label    string      `json:"label"`
	Content  string      `json:"content,omitempty"`
	Roles    []string    `json:"roles,omitempty"`
	Visible  *bool       `json:"visible,omitempty"`
	Protocol string      `json:"protocol,omitempty"`
	View     string      `json:"view,omitempty"`
	LabelSet string      `json:"labelSet,omitempty"`
	Children []*JSONNode `json:"children,omitempty"`
}

type JSONTree struct {
	Standby  *JSONNode `json:"standby"`
	Config   *JSONNode `json:"config"`
	Infusion *JSONNode `json:"infusion"`
}

type JSONLabelSet struct {
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

type JSONAccessCode struct {
	Roles []string `json:"roles"`
	Code  string   `json:"code"`
}

type JSONGlobals struct {
	MaintenanceInterval *JSONValue `json:"maintenanceInterval,omitempty"`
	CallbackTimer       *JSONValue `json:"callbackTimer,omitempty"`
	StandbyTimeout      *JSONValue `json:"standbyTimeout,omitempty"`
	SessionTimeout      *JSONValue `json:"sessionTimeout,omitempty"`
	ScreenBrightness    string     `json:"screenBrightness,omitempty"`
	KeypadBrightness    string     `json:"keypadBrightness,omitempty"`
	Model               string     `json:"model,omitempty"`
	DeviceName          string     `json:"deviceName,omitempty"`
}

// JSONFile mirrors the descriptor document exported by the library editor.
type JSONFile struct {
	ID           uint32           `json:"id"`
	Name         string           `json:"name"`
	Version      Text             `json:"version"`
	CRC          string           `json:"crc,omitempty"`
	Protocols    []JSONProtocol   `json:"protocols"`
	Views        []JSONView       `json:"views,omitempty"`
	DefaultViews []JSONView       `json:"defaultViews,omitempty"`
	Tree         JSONTree         `json:"tree"`
	LabelSets    []JSONLabelSet   `json:"labelSets,omitempty"`
	Roles        []string         `json:"roles,omitempty"`
	AccessCodes  []JSONAccessCode `json:"accessCodes,omitempty"`
	Globals      JSONGlobals      `json:"globals"`
}

// FromJSON converts a decoded document into a Descriptor, resolving the
// legacy token and checking every required field.
func FromJSON(file JSONFile) (*Descriptor, error) {
	d := &Descriptor{
		ID:      file.ID,
		Name:    strings.TrimSpace(file.Name),
		Version: strings.TrimSpace(string(file.Version)),
		Legacy:  ResolveLegacyToken(file.CRC),
		Roles:   file.Roles,
	}
	if d.Name == "" {
		return nil, missing("name")
	}
	if d.Version == "" {
		return nil, missing("version")
	}
	for i, jp := range file.Protocols {
		p, err := protocolFromJSON(fmt.Sprintf("protocols[%d]", i), jp)
		if err != nil {
			return nil, err
		}
		d.Protocols = append(d.Protocols, p)
	}
	for i, jv := range file.Views {
		v, err := viewFromJSON(fmt.Sprintf("views[%d]", i), jv)
		if err != nil {
			return nil, err
		}
		d.Views = append(d.Views, v)
	}
	for _, jv := range file.DefaultViews {
		d.DefaultViews = append(d.DefaultViews, defaultViewFromJSON(jv))
	}
	for i, jl := range file.LabelSets {
		if strings.TrimSpace(jl.Name) == "" {
			return nil, missing(fmt.Sprintf("labelSets[%d].name", i))
		}
		d.LabelSets = append(d.LabelSets, &LabelSet{Name: jl.Name, Labels: jl.Labels})
	}
	for i, ja := range file.AccessCodes {
		path := fmt.Sprintf("accessCodes[%d]", i)
		if strings.TrimSpace(ja.Code) == "" {
			return nil, missing(path + ".code")
		}
		for _, r := range ja.Roles {
			if _, ok := d.RoleBit(r); !ok {
				return nil, configErr(path+".roles", fmt.Errorf("%w: %q", ErrUnknownRole, r))
			}
		}
		d.AccessCodes = append(d.AccessCodes, AccessCode{Roles: ja.Roles, Code: strings.TrimSpace(ja.Code)})
	}
	g, err := globalsFromJSON(file.Globals)
	if err != nil {
		return nil, err
	}
	d.Globals = g

	layers := []struct {
		name string
		src  *JSONNode
		dst  **Node
	}{
		{"tree.standby", file.Tree.Standby, &d.Tree.Standby},
		{"tree.config", file.Tree.Config, &d.Tree.Config},
		{"tree.infusion", file.Tree.Infusion, &d.Tree.Infusion},
	}
	for _, l := range layers {
		if l.src == nil {
			continue
		}
		n, err := nodeFromJSON(d, l.name, l.src)
		if err != nil {
			return nil, err
		}
		*l.dst = n
	}
	return d, nil
}

func protocolFromJSON(path string, jp JSONProtocol) (*Protocol, error) {
	c := jp.Content
	if c == nil {
		return nil, missing(path + ".content")
	}
	path += ".content"
	if strings.TrimSpace(c.Name) == "" {
		return nil, missing(path + ".name")
	}
	if strings.TrimSpace(c.DeliveryMode) == "" {
		return nil, missing(path + ".deliveryMode")
	}
	mode, err := ParseDeliveryMode(c.DeliveryMode)
	if err != nil {
		return nil, configErr(path+".deliveryMode", err)
	}
	p := &Protocol{
		ID:         jp.ID,
		Name:       c.Name,
		Mode:       mode,
		Params:     map[string]Param{},
		RateFactor: 100,
	}
	if c.RateFactor != nil {
		f := float64(*c.RateFactor)
		if f < 0 || f > 0xFFFF || f != math.Trunc(f) {
			return nil, configErr(path+".rateFactor", fmt.Errorf("%w: %v", ErrInvalidValue, f))
		}
		p.RateFactor = uint16(f)
	}
	if c.LabelID != nil {
		if *c.LabelID < 0 || *c.LabelID > 0xFF {
			return nil, configErr(path+".labelId", fmt.Errorf("%w: %d", ErrInvalidValue, *c.LabelID))
		}
		p.LabelID = uint8(*c.LabelID)
	}

	switches := map[string]bool{}
	if raw, ok := c.Program["switches"]; ok {
		if err := json.Unmarshal(raw, &switches); err != nil {
			return nil, configErr(path+".program.switches", err)
		}
	}
	for name, raw := range c.Program {
		if name == "switches" {
			continue
		}
		var v JSONValue
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, configErr(path+".program."+name, err)
		}
		param := Param{Unit: v.Unit, Enabled: switches[name]}
		if v.Value != nil {
			param.Value = float64(*v.Value)
		} else if param.Enabled {
			return nil, missing(path + ".program." + name + ".value")
		}
		p.Params[name] = param
	}
	for name, on := range switches {
		if _, ok := p.Params[name]; ok {
			continue
		}
		if on && name != "concentration" {
			return nil, missing(path + ".program." + name)
		}
		p.Params[name] = Param{Enabled: on}
	}

	if c.Drug != nil {
		if c.Drug.Content == nil {
			return nil, missing(path + ".drug.content")
		}
		drug, err := drugFromJSON(path+".drug.content", c.Drug.Content)
		if err != nil {
			return nil, err
		}
		p.Drug = drug
	}

	if len(c.Constraints) > 0 {
		p.Guards = make(map[string][]Guard, len(c.Constraints))
		for name, gs := range c.Constraints {
			for _, g := range gs {
				p.Guards[name] = append(p.Guards[name], Guard{Min: float64(g.Min), Max: float64(g.Max), Unit: g.Unit})
			}
		}
	}
	return p, nil
}

func drugFromJSON(path string, c *JSONDrugContent) (*Drug, error) {
	amount, err := requiredValue(path+".drugAmount", c.DrugAmount)
	if err != nil {
		return nil, err
	}
	dilute, err := requiredValue(path+".diluteVolume", c.DiluteVolume)
	if err != nil {
		return nil, err
	}
	d := &Drug{
		Name:                   c.Name,
		Amount:                 amount,
		DiluteVolume:           dilute,
		ConcentrationImmutable: c.ConcentrationImmutable,
	}
	for i, jc := range c.Components {
		comp := Component{Name: jc.Name}
		if jc.Amount != nil {
			comp.Amount = valueParam(jc.Amount)
		} else {
			return nil, missing(fmt.Sprintf("%s.components[%d].amount", path, i))
		}
		d.Components = append(d.Components, comp)
	}
	return d, nil
}

func requiredValue(path string, v *JSONValue) (Param, error) {
	if v == nil || v.Value == nil {
		return Param{}, missing(path)
	}
	return valueParam(v), nil
}

func valueParam(v *JSONValue) Param {
	if v == nil {
		return Param{}
	}
	p := Param{Unit: v.Unit}
	if v.Value != nil {
		p.Value = float64(*v.Value)
		p.Enabled = true
	}
	return p
}

func viewFromJSON(path string, jv JSONView) (*View, error) {
	if strings.TrimSpace(jv.DeliveryMode) == "" {
		return nil, missing(path + ".deliveryMode")
	}
	mode, err := ParseDeliveryMode(jv.DeliveryMode)
	if err != nil {
		return nil, configErr(path+".deliveryMode", err)
	}
	v := &View{ID: jv.ID, Name: jv.Name, Mode: mode}
	for i, e := range jv.Parameters {
		if strings.TrimSpace(e.Name) == "" {
			return nil, missing(fmt.Sprintf("%s.parameters[%d].name", path, i))
		}
		v.Entries = append(v.Entries, ViewEntry{
			Parameter: e.Name,
			Text:      string(e.Value),
			Patient:   e.Patient,
			Titration: e.Titration,
		})
	}
	return v, nil
}

func defaultViewFromJSON(jv JSONView) *DefaultView {
	v := &DefaultView{ModeName: jv.DeliveryMode, Mode: -1}
	if mode, err := ParseDeliveryMode(jv.DeliveryMode); err == nil {
		v.Mode = mode
	}
	for _, e := range jv.Parameters {
		v.Entries = append(v.Entries, ViewEntry{
			Parameter: e.Name,
			Text:      string(e.DefaultText),
			Patient:   e.Patient,
			Titration: e.Titration,
		})
	}
	return v
}

func globalsFromJSON(jg JSONGlobals) (Globals, error) {
	g := Globals{
		MaintenanceInterval: valueParam(jg.MaintenanceInterval),
		CallbackTimer:       valueParam(jg.CallbackTimer),
		StandbyTimeout:      valueParam(jg.StandbyTimeout),
		SessionTimeout:      valueParam(jg.SessionTimeout),
		Model:               jg.Model,
		DeviceName:          jg.DeviceName,
	}
	var err error
	if g.ScreenBrightness, err = ParseBrightness(jg.ScreenBrightness); err != nil {
		return g, configErr("globals.screenBrightness", err)
	}
	if g.KeypadBrightness, err = ParseBrightness(jg.KeypadBrightness); err != nil {
		return g, configErr("globals.keypadBrightness", err)
	}
	return g, nil
}

// nodeFromJSON converts a subtree with an explicit stack so deep menus do
// not recurse.
func nodeFromJSON(d *Descriptor, path string, root *JSONNode) (*Node, error) {
	type item struct {
		path string
		src  *JSONNode
		dst  *Node
	}
	out := &Node{}
	stack := []item{{path: path, src: root, dst: out}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		typ := NodeMenu
		if strings.TrimSpace(it.src.Type) != "" {
			t, err := ParseNodeType(it.src.Type)
			if err != nil {
				return nil, configErr(it.path+".type", err)
			}
			typ = t
		}
		for _, r := range it.src.Roles {
			if _, ok := d.RoleBit(r); !ok {
				return nil, configErr(it.path+".roles", fmt.Errorf("%w: %q", ErrUnknownRole, r))
			}
		}
		if typ == NodeProtocol && strings.TrimSpace(it.src.Protocol) == "" {
			return nil, missing(it.path + ".protocol")
		}
		visible := true
		if it.src.Visible != nil {
			visible = *it.src.Visible
		}
		*it.dst = Node{
			Type:     typ,
			Label:    it.src.Label,
			Content:  it.src.Content,
			Roles:    it.src.Roles,
			Visible:  visible,
			Protocol: it.src.Protocol,
			View:     it.src.View,
			LabelSet: it.src.LabelSet,
		}
		it.dst.Children = make([]*Node, len(it.src.Children))
		for i := len(it.src.Children) - 1; i >= 0; i-- {
			child := it.src.Children[i]
			if child == nil {
				return nil, missing(fmt.Sprintf("%s.children[%d]", it.path, i))
			}
			it.dst.Children[i] = &Node{}
			stack = append(stack, item{
				path: fmt.Sprintf("%s.children[%d]", it.path, i),
				src:  child,
				dst:  it.dst.Children[i],
			})
		}
	}
	return out, nil
}
