package model

// RiskColor is the three-level risk category shown on the map.
type RiskColor string

const (
	RiskRed    RiskColor = "red"
	RiskYellow RiskColor = "yellow"
	RiskGreen  RiskColor = "green"
)

// Layout identifies which cell arrangement a listing row used.
type Layout string

const (
	// LayoutSplit has name, address, date and status in separate cells.
	LayoutSplit Layout = "split"
	// LayoutPacked has name and address in the first cell separated by a line break.
	LayoutPacked Layout = "packed"
)

// RawRow holds the trimmed fields of one listing row before any interpretation.
// Counts are nil when the row has no usable cell for them.
type RawRow struct {
	Name             string
	AddressFragment  string
	Date             string
	StatusText       string
	CriticalCount    *int
	NonCriticalCount *int
	Layout           Layout
}

// Coordinates is a resolved map position.
type Coordinates struct {
	Latitude    float64
	Longitude   float64
	Source      string // provider that answered, or "fallback"
	Approximate bool
}

// InspectionRecord is one establishment entry in the snapshot.
type InspectionRecord struct {
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Date      string    `json:"date"`
	Details   string    `json:"details"`
	Color     RiskColor `json:"color"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
}

// Snapshot is the complete output document of a run.
type Snapshot struct {
	LastRun        string             `json:"last_run"`
	Establishments []InspectionRecord `json:"establishments"`
}
