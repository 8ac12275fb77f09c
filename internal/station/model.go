package station

import (
	"encoding/json"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// ChargerType is an enumerated connector standard a station offers
// independently-countable capacity for.
type ChargerType string

const (
	ChargerType1       ChargerType = "type1"
	ChargerType2       ChargerType = "type2"
	ChargerBharatAC001 ChargerType = "bharat_ac_001"
	ChargerBharatDC001 ChargerType = "bharat_dc_001"
	ChargerCCS2        ChargerType = "ccs2"
	ChargerCHAdeMO     ChargerType = "chademo"
	ChargerGBTType6    ChargerType = "gbt_type6"
	ChargerType7LECCS  ChargerType = "type7_leccs"
	ChargerMCS         ChargerType = "mcs"
	ChargerChaoJi      ChargerType = "chaoji"
)

// AllChargerTypes lists every supported standard, in catalog order.
var AllChargerTypes = []ChargerType{
	ChargerType1,
	ChargerType2,
	ChargerBharatAC001,
	ChargerBharatDC001,
	ChargerCCS2,
	ChargerCHAdeMO,
	ChargerGBTType6,
	ChargerType7LECCS,
	ChargerMCS,
	ChargerChaoJi,
}

// IsValidChargerType reports whether t is a known standard.
func IsValidChargerType(t ChargerType) bool {
	for _, known := range AllChargerTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultConnectorAssociations maps each charger type to the vehicle connector
// types it can serve. Kept as data so new standards can be added without
// touching the matching algorithm.
var DefaultConnectorAssociations = map[ChargerType][]string{
	ChargerType1:       {"type1"},
	ChargerType2:       {"type2"},
	ChargerBharatAC001: {"bharat_ac_001", "type2"},
	ChargerBharatDC001: {"bharat_dc_001"},
	ChargerCCS2:        {"ccs2"},
	ChargerCHAdeMO:     {"chademo"},
	ChargerGBTType6:    {"gbt_type6"},
	ChargerType7LECCS:  {"type7_leccs"},
	ChargerMCS:         {"mcs", "ccs2"},
	ChargerChaoJi:      {"chaoji", "chademo"},
}

// Station is a charging station. CRUD and ownership live with the franchise
// module; the booking engine only reads capacity and tariffs from here.
type Station struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	FranchiseOwnerID uint   `gorm:"not null;index" json:"franchise_owner_id"`
	Name             string `gorm:"size:150;not null" json:"name"`
	Email            string `gorm:"size:150" json:"email"`
	Phone            string `gorm:"size:20" json:"phone"`

	StreetAddress string  `json:"street_address"`
	City          string  `gorm:"size:100;index" json:"city"`
	State         string  `gorm:"size:100" json:"state"`
	Pincode       string  `gorm:"size:10" json:"pincode"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`

	// ChargerCapacity maps charger type -> installed charger count.
	ChargerCapacity datatypes.JSONMap `gorm:"type:jsonb" json:"charger_capacity"`
	// ChargerOrder is the station's declared charger-type order, used as the
	// tie-breaker when ranking compatible types.
	ChargerOrder datatypes.JSON `gorm:"type:jsonb" json:"charger_order"`
	// TariffPerHour maps charger type -> INR per hour.
	TariffPerHour datatypes.JSONMap `gorm:"type:jsonb" json:"tariff_per_hour"`

	Status    string    `gorm:"size:20;default:'active'" json:"status"` // active / maintenance / closed
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Station) TableName() string {
	return "charging_stations"
}

// CapacityFor returns the installed charger count for a type, 0 when the type
// is not offered.
func (s *Station) CapacityFor(t ChargerType) int {
	return jsonMapInt(s.ChargerCapacity, string(t))
}

// CapacityMap returns the full per-type capacity as typed values.
func (s *Station) CapacityMap() map[ChargerType]int {
	out := make(map[ChargerType]int, len(s.ChargerCapacity))
	for k := range s.ChargerCapacity {
		if n := jsonMapInt(s.ChargerCapacity, k); n > 0 {
			out[ChargerType(k)] = n
		}
	}
	return out
}

// OfferedTypes returns the types with installed capacity, in the station's
// declared order; types missing from the declared order follow alphabetically.
func (s *Station) OfferedTypes() []ChargerType {
	capacity := s.CapacityMap()

	var declared []string
	if len(s.ChargerOrder) > 0 {
		_ = json.Unmarshal(s.ChargerOrder, &declared)
	}

	seen := make(map[ChargerType]bool, len(capacity))
	out := make([]ChargerType, 0, len(capacity))
	for _, name := range declared {
		t := ChargerType(name)
		if capacity[t] > 0 && !seen[t] {
			out = append(out, t)
			seen[t] = true
		}
	}

	var rest []ChargerType
	for t := range capacity {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })

	return append(out, rest...)
}

// RateFor returns the hourly tariff for a charger type, falling back to the
// "default" key when the type has no explicit rate.
func (s *Station) RateFor(t ChargerType) float64 {
	if rate := jsonMapFloat(s.TariffPerHour, string(t)); rate > 0 {
		return rate
	}
	return jsonMapFloat(s.TariffPerHour, "default")
}

// TotalChargers is the advertised aggregate, used only for coarse UI badges.
func (s *Station) TotalChargers() int {
	total := 0
	for _, n := range s.CapacityMap() {
		total += n
	}
	return total
}

// jsonb numbers unmarshal as float64; seeds may also store ints or strings.
func jsonMapInt(m datatypes.JSONMap, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

func jsonMapFloat(m datatypes.JSONMap, key string) float64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
