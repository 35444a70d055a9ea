package trace

import (
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
)

// WriteEstimatesCSV writes the recorded estimate history with a header row.
func WriteEstimatesCSV(w io.Writer, st *SimulationTrace) error {
	if st == nil || len(st.Estimates) == 0 {
		return nil
	}
	data, err := csvutil.Marshal(st.Estimates)
	if err != nil {
		return fmt.Errorf("encoding estimates: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing estimates: %w", err)
	}
	return nil
}

// ReadEstimatesCSV parses a history written by WriteEstimatesCSV.
func ReadEstimatesCSV(data []byte) ([]EstimateRecord, error) {
	var records []EstimateRecord
	if err := csvutil.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding estimates: %w", err)
	}
	return records, nil
}
