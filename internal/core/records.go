package core

// EquipmentRecord is one row of an uploaded equipment CSV.
type EquipmentRecord struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Flowrate    float64 `json:"flowrate"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
}

// Summary holds the aggregate statistics derived from a record sequence.
// It is a pure function of the records: recomputing from the same sequence
// yields an identical Summary.
type Summary struct {
	TotalCount       int            `json:"total_count"`
	AvgFlowrate      float64        `json:"avg_flowrate"`
	MinFlowrate      float64        `json:"min_flowrate"`
	MaxFlowrate      float64        `json:"max_flowrate"`
	AvgPressure      float64        `json:"avg_pressure"`
	MinPressure      float64        `json:"min_pressure"`
	MaxPressure      float64        `json:"max_pressure"`
	AvgTemperature   float64        `json:"avg_temperature"`
	MinTemperature   float64        `json:"min_temperature"`
	MaxTemperature   float64        `json:"max_temperature"`
	TypeDistribution map[string]int `json:"type_distribution"`
}
