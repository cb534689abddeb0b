package main

import (
	"fmt"
	"os"
	"sort"

	"chemflow/internal/core"
)

// chemflow validates and summarizes an equipment CSV locally, letting
// an operator check a file before uploading it to the server.
func main() {
	path, err := core.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	records, err := core.ParseCSV(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid CSV: %v\n", err)
		os.Exit(1)
	}

	summary, err := core.Aggregate(records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ %s: %d records OK\n\n", path, summary.TotalCount)
	fmt.Printf("%-14s %10s %10s %10s\n", "Parameter", "Min", "Avg", "Max")
	fmt.Printf("%-14s %10.2f %10.2f %10.2f\n", "Flowrate", summary.MinFlowrate, summary.AvgFlowrate, summary.MaxFlowrate)
	fmt.Printf("%-14s %10.2f %10.2f %10.2f\n", "Pressure", summary.MinPressure, summary.AvgPressure, summary.MaxPressure)
	fmt.Printf("%-14s %10.2f %10.2f %10.2f\n", "Temperature", summary.MinTemperature, summary.AvgTemperature, summary.MaxTemperature)

	fmt.Println("\nEquipment types:")
	types := make([]string, 0, len(summary.TypeDistribution))
	for t := range summary.TypeDistribution {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %s: %d\n", t, summary.TypeDistribution[t])
	}
}
