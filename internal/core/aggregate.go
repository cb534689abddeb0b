package core

import "errors"

// ErrNoRecords is returned when aggregation is requested for an empty
// record sequence. Callers are expected to reject empty uploads before
// reaching this point.
var ErrNoRecords = errors.New("cannot aggregate an empty record sequence")

// Aggregate computes summary statistics over a record sequence.
// The result is deterministic: the same records in the same order
// always produce an identical Summary.
func Aggregate(records []EquipmentRecord) (*Summary, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	s := &Summary{
		TotalCount:       len(records),
		MinFlowrate:      records[0].Flowrate,
		MaxFlowrate:      records[0].Flowrate,
		MinPressure:      records[0].Pressure,
		MaxPressure:      records[0].Pressure,
		MinTemperature:   records[0].Temperature,
		MaxTemperature:   records[0].Temperature,
		TypeDistribution: make(map[string]int),
	}

	var sumFlow, sumPress, sumTemp float64
	for _, r := range records {
		sumFlow += r.Flowrate
		sumPress += r.Pressure
		sumTemp += r.Temperature

		if r.Flowrate < s.MinFlowrate {
			s.MinFlowrate = r.Flowrate
		}
		if r.Flowrate > s.MaxFlowrate {
			s.MaxFlowrate = r.Flowrate
		}
		if r.Pressure < s.MinPressure {
			s.MinPressure = r.Pressure
		}
		if r.Pressure > s.MaxPressure {
			s.MaxPressure = r.Pressure
		}
		if r.Temperature < s.MinTemperature {
			s.MinTemperature = r.Temperature
		}
		if r.Temperature > s.MaxTemperature {
			s.MaxTemperature = r.Temperature
		}

		s.TypeDistribution[r.Type]++
	}

	n := float64(len(records))
	s.AvgFlowrate = sumFlow / n
	s.AvgPressure = sumPress / n
	s.AvgTemperature = sumTemp / n

	return s, nil
}
