package table

import (
	"encoding/json"
	"math"
)

// frameJSON is the wire form used when frames are cached.
// NaN cells travel as null.
type frameJSON struct {
	Dates  []string     `json:"dates"`
	Stocks []string     `json:"stocks"`
	Data   [][]*float64 `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (f *Frame) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	out := frameJSON{
		Dates:  f.dates,
		Stocks: f.stocks,
		Data:   make([][]*float64, len(f.data)),
	}
	for i, row := range f.data {
		encoded := make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) {
				v := row[j]
				encoded[j] = &v
			}
		}
		out.Data[i] = encoded
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Frame) UnmarshalJSON(b []byte) error {
	var in frameJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	decoded := NewFrame(in.Dates, in.Stocks)
	for i, row := range in.Data {
		if i >= len(decoded.data) {
			break
		}
		for j, v := range row {
			if j >= len(decoded.data[i]) || v == nil {
				continue
			}
			decoded.data[i][j] = *v
		}
	}
	*f = *decoded
	return nil
}
