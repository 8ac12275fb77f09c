package vehicle

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ConnectorRail describes one charging rail (AC or DC) of a vehicle.
type ConnectorRail struct {
	Supported      bool     `json:"supported"`
	MaxPower       float64  `json:"max_power"` // kW
	ConnectorTypes []string `json:"connector_types"`
}

// ConnectorProfile is the immutable input to the compatibility matcher.
type ConnectorProfile struct {
	AC ConnectorRail `json:"chargingAC"`
	DC ConnectorRail `json:"chargingDC"`
}

// ConnectorSet returns the union of connector types across supported rails.
func (p ConnectorProfile) ConnectorSet() map[string]bool {
	set := make(map[string]bool)
	if p.AC.Supported {
		for _, t := range p.AC.ConnectorTypes {
			set[t] = true
		}
	}
	if p.DC.Supported {
		for _, t := range p.DC.ConnectorTypes {
			set[t] = true
		}
	}
	return set
}

// HasConnectorData reports whether the vehicle has any usable connector
// configuration. Vehicles without data must never be auto-booked.
func (p ConnectorProfile) HasConnectorData() bool {
	return len(p.ConnectorSet()) > 0
}

type Vehicle struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	Make           string `gorm:"size:100;not null" json:"make"`
	Model          string `gorm:"size:100;not null" json:"model"`
	RegistrationNo string `gorm:"size:20;uniqueIndex" json:"registration_no"`
	BatteryKWh     float64 `json:"battery_kwh"`

	ChargingAC datatypes.JSON `gorm:"type:jsonb" json:"charging_ac"`
	ChargingDC datatypes.JSON `gorm:"type:jsonb" json:"charging_dc"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile decodes the stored rails into a ConnectorProfile. Missing or
// malformed rails decode to unsupported, which the matcher treats as no data.
func (v *Vehicle) Profile() ConnectorProfile {
	var p ConnectorProfile
	if len(v.ChargingAC) > 0 {
		_ = json.Unmarshal(v.ChargingAC, &p.AC)
	}
	if len(v.ChargingDC) > 0 {
		_ = json.Unmarshal(v.ChargingDC, &p.DC)
	}
	return p
}
