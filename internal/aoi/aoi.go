package aoi

import (
	"fmt"
	"strings"
	"time"

	"aoi-go/internal/geometry"
)

// ChangeType is the kind of land change an AOI is monitored for.
type ChangeType string

const (
	ChangeDeforestation ChangeType = "deforestation"
	ChangeConstruction  ChangeType = "construction"
	ChangeWaterbody     ChangeType = "waterbody"
	ChangeAgricultural  ChangeType = "agricultural"
	ChangeOther         ChangeType = "other"
)

// ChangeTypes lists every valid ChangeType.
var ChangeTypes = []ChangeType{ChangeDeforestation, ChangeConstruction, ChangeWaterbody, ChangeAgricultural, ChangeOther}

// Valid reports whether c is one of ChangeTypes.
func (c ChangeType) Valid() bool {
	for _, v := range ChangeTypes {
		if c == v {
			return true
		}
	}
	return false
}

// Frequency is how often the backend re-analyses an AOI.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Frequencies lists every valid Frequency.
var Frequencies = []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly}

// Valid reports whether f is one of Frequencies.
func (f Frequency) Valid() bool {
	for _, v := range Frequencies {
		if f == v {
			return true
		}
	}
	return false
}

// Status is the monitoring state of an AOI. The backend changes it out of band.
type Status string

const (
	StatusActive   Status = "active"
	StatusPending  Status = "pending"
	StatusInactive Status = "inactive"
)

// Statuses lists every valid Status.
var Statuses = []Status{StatusActive, StatusPending, StatusInactive}

// Valid reports whether s is one of Statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Confidence threshold bounds, in percent.
const (
	MinConfidenceThreshold  = 30
	MaxConfidenceThreshold  = 90
	ConfidenceThresholdStep = 10
)

// ValidThreshold reports whether v is a multiple of 10 in [30, 90].
func ValidThreshold(v int) bool {
	return v >= MinConfidenceThreshold && v <= MaxConfidenceThreshold && v%ConfidenceThresholdStep == 0
}

// AOI is a user-defined monitored region.
type AOI struct {
	ID                  string
	Name                string
	Geometry            *geometry.Shape
	ChangeType          ChangeType
	MonitoringFrequency Frequency
	ConfidenceThreshold int
	EmailAlerts         bool
	InAppNotifications  bool
	Status              Status
	CreatedAt           time.Time
	LastMonitored       *time.Time // nil means never monitored
	Description         string
}

// Draft is the user input for a new AOI.
type Draft struct {
	Name                string
	Geometry            *geometry.Shape
	ChangeType          ChangeType
	MonitoringFrequency Frequency
	ConfidenceThreshold int
	EmailAlerts         bool
	InAppNotifications  bool
	Description         string
}

// NewDraft returns a draft with the creation form defaults.
func NewDraft(name string, shape *geometry.Shape) Draft {
	return Draft{
		Name:                name,
		Geometry:            shape,
		ChangeType:          ChangeDeforestation,
		MonitoringFrequency: FrequencyWeekly,
		ConfidenceThreshold: 60,
		EmailAlerts:         true,
		InAppNotifications:  true,
	}
}

// Validate checks the draft without touching the network.
// Name is compared after trimming whitespace.
func (d Draft) Validate() error {
	var p problems
	if strings.TrimSpace(d.Name) == "" {
		p.add("name", "must not be empty")
	}
	if d.Geometry.Empty() {
		p.add("geometry", "is required")
	}
	if !d.ChangeType.Valid() {
		p.add("changeType", fmt.Sprintf("must be one of %v", ChangeTypes))
	}
	if !d.MonitoringFrequency.Valid() {
		p.add("monitoringFrequency", fmt.Sprintf("must be one of %v", Frequencies))
	}
	if !ValidThreshold(d.ConfidenceThreshold) {
		p.add("confidenceThreshold", "must be a multiple of 10 between 30 and 90")
	}
	return p.err("create aoi")
}

// Patch is a partial update. Nil fields are left unchanged.
// Geometry is not patchable.
type Patch struct {
	Name                *string
	ChangeType          *ChangeType
	MonitoringFrequency *Frequency
	ConfidenceThreshold *int
	EmailAlerts         *bool
	InAppNotifications  *bool
	Description         *string
	Status              *Status
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.ChangeType == nil && p.MonitoringFrequency == nil &&
		p.ConfidenceThreshold == nil && p.EmailAlerts == nil && p.InAppNotifications == nil &&
		p.Description == nil && p.Status == nil
}

// Validate applies the same field rules as Draft.Validate to the fields that are set.
func (p Patch) Validate() error {
	var errs problems
	if p.IsEmpty() {
		errs.add("patch", "changes nothing")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		errs.add("name", "must not be empty")
	}
	if p.ChangeType != nil && !p.ChangeType.Valid() {
		errs.add("changeType", fmt.Sprintf("must be one of %v", ChangeTypes))
	}
	if p.MonitoringFrequency != nil && !p.MonitoringFrequency.Valid() {
		errs.add("monitoringFrequency", fmt.Sprintf("must be one of %v", Frequencies))
	}
	if p.ConfidenceThreshold != nil && !ValidThreshold(*p.ConfidenceThreshold) {
		errs.add("confidenceThreshold", "must be a multiple of 10 between 30 and 90")
	}
	if p.Status != nil && !p.Status.Valid() {
		errs.add("status", fmt.Sprintf("must be one of %v", Statuses))
	}
	return errs.err("update aoi")
}
