package encoder

// Record sizes.
const (
	RecordSize      = 256
	NodeSize        = 64
	LabelSetSize    = 64
	GlobalsSize     = 512
	ProtocolMapSize = 1024
	PageSize        = 4096
)

// Table capacities.
const (
	MaxProtocols     = 64
	MaxViews         = 64
	MaxDefaultViews  = 16
	MaxLabelSets     = 8
	MaxLabels        = 5
	MaxAccessCodes   = 32
	MaxRoles         = 16
	MaxChildren      = 10
	MaxViewEntries   = 20
	MaxSubsetEntries = 23
	MaxComponents    = 7
	MaxMapEntries    = 64
)

// Layer capacities of the navigation section, in records.
const (
	StandbyNodes  = 100
	ConfigNodes   = 30
	InfusionNodes = 61
)

// Layer describes one navigation layer.
type Layer struct {
	Name     string
	Capacity int
}

// Layers lists the navigation layers in section order.
var Layers = []Layer{
	{Name: "standby", Capacity: StandbyNodes},
	{Name: "config", Capacity: ConfigNodes},
	{Name: "infusion", Capacity: InfusionNodes},
}

// Section is one top-level region of the image.
type Section struct {
	Name string
	Size int
}

const (
	NavigationSize   = (StandbyNodes+ConfigNodes+InfusionNodes)*NodeSize + NodeSize
	ProtocolsSize    = MaxProtocols * RecordSize
	ConstraintsSize  = MaxProtocols * RecordSize
	ViewsSize        = MaxViews * RecordSize
	DefaultViewsSize = MaxDefaultViews * RecordSize
	UserConfigSize   = PageSize

	ImageSize = NavigationSize + ProtocolsSize + ConstraintsSize + ViewsSize + DefaultViewsSize + UserConfigSize
)

// Sections lists the image regions in order.
var Sections = []Section{
	{Name: "navigation", Size: NavigationSize},
	{Name: "protocols", Size: ProtocolsSize},
	{Name: "constraints", Size: ConstraintsSize},
	{Name: "views", Size: ViewsSize},
	{Name: "defaultViews", Size: DefaultViewsSize},
	{Name: "userConfig", Size: UserConfigSize},
}

// Protocol record offsets.
const (
	ProtocolSwitchesOffset   = 80
	ProtocolLegacyOffset     = 84
	ProtocolRateFactorOffset = 90
	ProtocolModeOffset       = 93
	ProtocolLabelOffset      = 96
	ProtocolRateUnitOffset   = 97
	ProtocolNameOffset       = 99
	ProtocolDrugNameOffset   = 109
	nameSize                 = 10
)

// Navigation node offsets.
const (
	NodeChildrenOffset   = 2
	NodeCountOffset      = 12
	NodeLabelOffset      = 13
	NodeContentOffset    = 29
	NodeTypeOffset       = 45
	NodeProtocolOffset   = 46
	NodeVisibilityOffset = 47
	nodeTextSize         = 16
)

// User config page offsets.
const (
	LabelSetsOffset   = GlobalsSize
	ProtocolMapOffset = GlobalsSize + MaxLabelSets*LabelSetSize
)

// Globals offsets.
const (
	GlobalsLegacyOffset      = 12
	GlobalsLibraryIDOffset   = 16
	GlobalsAccessCountOffset = 90
	GlobalsNameVersionOffset = 188
	GlobalsModelOffset       = 208
	nameVersionSize          = 20
	modelSize                = 16
)
