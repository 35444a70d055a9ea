// Package driver replays a recorded scheduling-event trace through the
// engine, staging each sensing window on the side channel before the engine
// reads it.
package driver

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/samber/lo"

	"github.com/sidelink-sim/ore-engine/sim"
)

// EventRecord is one row of an event trace CSV. Report blocks are kept as
// strings so leading zeros survive.
type EventRecord struct {
	IMSI              int     `csv:"imsi,omitempty"` // 0 on a decision targets the last sensed device
	Sensing           bool    `csv:"sensing"`
	OccupiedResources int     `csv:"occupied_resources,omitempty"`
	RSRPThreshold     int     `csv:"rsrp_threshold,omitempty"`
	Time              float64 `csv:"time"`
	ModeSelection     bool    `csv:"mode_selection,omitempty"`
	Senders           string  `csv:"senders,omitempty"`
	Ages              string  `csv:"ages,omitempty"`
	Slots             string  `csv:"slots,omitempty"`
	Subchannels       string  `csv:"subchannels,omitempty"`
}

// Event converts the record to an engine event.
func (r EventRecord) Event() sim.Event {
	id := sim.NoDevice
	if r.IMSI > 0 {
		id = sim.DeviceIndexFromRNTI(r.IMSI)
	}
	return sim.Event{
		DeviceID:          id,
		Sensing:           r.Sensing,
		OccupiedResources: r.OccupiedResources,
		RSRPThreshold:     r.RSRPThreshold,
		Time:              r.Time,
		ModeSelection:     r.ModeSelection,
	}
}

// Blocks returns the report window carried by the record.
func (r EventRecord) Blocks() sim.ReportBlocks {
	return sim.ReportBlocks{Senders: r.Senders, Ages: r.Ages, Slots: r.Slots, Subchannels: r.Subchannels}
}

// HasReports reports whether any report block is present.
func (r EventRecord) HasReports() bool {
	return r.Senders != "" || r.Ages != "" || r.Slots != "" || r.Subchannels != ""
}

// ReadTrace decodes an event trace with a header row. Unknown columns are
// rejected so a misspelled header does not silently drop a field.
func ReadTrace(r io.Reader) ([]EventRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading trace header: %w", err)
	}
	known, err := csvutil.Header(EventRecord{}, "csv")
	if err != nil {
		return nil, err
	}
	allowed := lo.SliceToMap(known, func(h string) (string, bool) { return h, true })
	for _, h := range dec.Header() {
		if !allowed[h] {
			return nil, fmt.Errorf("trace: unknown column %q", h)
		}
	}

	var records []EventRecord
	for {
		var rec EventRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("trace row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteTrace encodes records with a header row in the layout ReadTrace reads.
func WriteTrace(w io.Writer, records []EventRecord) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(EventRecord{}); err != nil {
		return err
	}
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
