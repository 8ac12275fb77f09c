package vehicle

import (
	"errors"
	"sort"

	"github.com/sharath018/ev-charging-backend/internal/station"
)

// ErrNoConnectorData is returned when a vehicle has no connector configuration.
// Callers surface this as a validation error instead of silently picking a type.
var ErrNoConnectorData = errors.New("vehicle has no connector data configured")

// Matcher maps vehicle connector profiles to a station's offered charger types.
// The charger-type -> connector-set association table is injected data, not code.
type Matcher struct {
	associations map[station.ChargerType][]string
}

func NewMatcher(associations map[station.ChargerType][]string) *Matcher {
	if associations == nil {
		associations = station.DefaultConnectorAssociations
	}
	return &Matcher{associations: associations}
}

// CompatibleTypes filters the station's offered types down to those whose
// associated connector set intersects the vehicle's AC or DC connectors.
// Order of the input is preserved.
func (m *Matcher) CompatibleTypes(profile ConnectorProfile, offered []station.ChargerType) ([]station.ChargerType, error) {
	connectors := profile.ConnectorSet()
	if len(connectors) == 0 {
		return nil, ErrNoConnectorData
	}

	var compatible []station.ChargerType
	for _, t := range offered {
		for _, assoc := range m.associations[t] {
			if connectors[assoc] {
				compatible = append(compatible, t)
				break
			}
		}
	}
	return compatible, nil
}

// RankByAvailability orders the compatible types descending by currently
// available count, ties broken by the station's declared order (the order of
// the offered slice). Ranking exists to auto-select the type most likely to
// be immediately bookable.
func (m *Matcher) RankByAvailability(profile ConnectorProfile, offered []station.ChargerType, available map[station.ChargerType]int) ([]station.ChargerType, error) {
	compatible, err := m.CompatibleTypes(profile, offered)
	if err != nil {
		return nil, err
	}

	ranked := make([]station.ChargerType, len(compatible))
	copy(ranked, compatible)

	// compatible is already in declared order; stable sort keeps it for ties
	sort.SliceStable(ranked, func(i, j int) bool {
		return available[ranked[i]] > available[ranked[j]]
	})

	return ranked, nil
}
