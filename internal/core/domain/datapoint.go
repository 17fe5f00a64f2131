package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DataPoint is one normalised health measurement.
// Times are unix milliseconds.
type DataPoint struct {
	Provider     ProviderType
	DataType     string
	StartTime    int64
	EndTime      int64
	Value        float64
	ManualEntry  bool
	SourceDevice *string

	// ModifiedTime is the provider's last-modified cursor for the point (not serialized)
	ModifiedTime int64
	// Stream is the provider stream the point was read from (not serialized)
	Stream string

	// Extra carries type-specific fields, e.g. activity_id for Strava activities
	Extra map[string]any
}

var reservedPointKeys = map[string]bool{
	"source":        true,
	"start_time":    true,
	"end_time":      true,
	"manual_entry":  true,
	"source_device": true,
	"value":         true,
}

// MarshalJSON writes the wire shape:
// {source, start_time, end_time, manual_entry, source_device, value, <extra...>}
func (p DataPoint) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+6)
	for k, v := range p.Extra {
		if reservedPointKeys[k] {
			continue
		}
		out[k] = v
	}
	out["source"] = string(p.Provider)
	out["start_time"] = p.StartTime
	out["end_time"] = p.EndTime
	out["manual_entry"] = p.ManualEntry
	out["source_device"] = p.SourceDevice
	out["value"] = p.Value
	return json.Marshal(out)
}

// UnmarshalJSON reads the wire shape back, keeping unknown fields in Extra
func (p *DataPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var source string
	if err := decodeField(raw, "source", &source); err != nil {
		return err
	}
	p.Provider = ProviderType(source)
	if err := decodeField(raw, "start_time", &p.StartTime); err != nil {
		return err
	}
	if err := decodeField(raw, "end_time", &p.EndTime); err != nil {
		return err
	}
	if err := decodeField(raw, "value", &p.Value); err != nil {
		return err
	}
	if err := decodeField(raw, "manual_entry", &p.ManualEntry); err != nil {
		return err
	}
	if err := decodeField(raw, "source_device", &p.SourceDevice); err != nil {
		return err
	}

	for k, v := range raw {
		if reservedPointKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = val
	}
	return nil
}

func decodeField(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Payload groups data points by canonical data type
type Payload map[string][]DataPoint

// Count returns the total number of points across all types
func (p Payload) Count() int {
	n := 0
	for _, points := range p {
		n += len(points)
	}
	return n
}

// Types returns the data types in the payload in sorted order
func (p Payload) Types() []string {
	types := make([]string, 0, len(p))
	for t, points := range p {
		if len(points) > 0 {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// Split cuts the payload into chunks of at most size points.
// Each chunk holds a single data type; types are emitted in sorted order
// and points keep their original order.
func (p Payload) Split(size int) []Payload {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks []Payload
	for _, t := range p.Types() {
		points := p[t]
		for i := 0; i < len(points); i += size {
			end := i + size
			if end > len(points) {
				end = len(points)
			}
			chunks = append(chunks, Payload{t: points[i:end]})
		}
	}
	return chunks
}

// Merge appends every point of other into p
func (p Payload) Merge(other Payload) {
	for t, points := range other {
		p[t] = append(p[t], points...)
	}
}

// MaxEndTime returns the latest end time across all points, or 0
func (p Payload) MaxEndTime() int64 {
	var max int64
	for _, points := range p {
		for _, pt := range points {
			if pt.EndTime > max {
				max = pt.EndTime
			}
		}
	}
	return max
}
