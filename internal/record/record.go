// Package record defines the measurement that travels through the pipeline
// and its positional wire encoding.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Sentinel is the out-of-band payload that tells a decoder to stop.
// It is not a JSON array, so it can never collide with an encoded Record.
var Sentinel = []byte("0x04")

// ErrMalformed is returned for payloads that are not a five element array
// of the expected scalar types.
var ErrMalformed = errors.New("malformed wire payload")

const fieldCount = 5

// MaxStatus is the largest status a record can carry; the sink stores it in a
// SMALLINT column.
const MaxStatus = math.MaxInt16

// Record is one measurement of one URL.
type Record struct {
	Time         int64   // seconds since epoch, UTC, taken when the measurement completed
	URL          string  // what was measured
	Status       int     // protocol status code
	ResponseTime float64 // seconds, millisecond precision
	RegexMatched *bool   // nil when no pattern was requested
}

// Matched returns a tri-state value for Record.RegexMatched.
func Matched(v bool) *bool { return &v }

// RoundMillis rounds a duration in seconds to millisecond precision.
func RoundMillis(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}

// MarshalJSON writes the record as [time, url, status, response_time, regex_matched].
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal([fieldCount]any{r.Time, r.URL, r.Status, r.ResponseTime, r.RegexMatched})
}

// UnmarshalJSON reads the positional form. Field order is the only contract.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(fields) != fieldCount {
		return fmt.Errorf("%w: got %d fields, want %d", ErrMalformed, len(fields), fieldCount)
	}

	var out Record
	if err := decodeInt(fields[0], &out.Time); err != nil {
		return fmt.Errorf("%w: time: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(fields[1], &out.URL); err != nil || isNull(fields[1]) {
		return fmt.Errorf("%w: url must be a string", ErrMalformed)
	}
	var status int64
	if err := decodeInt(fields[2], &status); err != nil {
		return fmt.Errorf("%w: status: %v", ErrMalformed, err)
	}
	if status < 0 || status > MaxStatus {
		return fmt.Errorf("%w: status %d out of range", ErrMalformed, status)
	}
	out.Status = int(status)
	if err := json.Unmarshal(fields[3], &out.ResponseTime); err != nil || isNull(fields[3]) {
		return fmt.Errorf("%w: response_time must be a number", ErrMalformed)
	}
	if err := json.Unmarshal(fields[4], &out.RegexMatched); err != nil {
		return fmt.Errorf("%w: regex_matched must be a bool or null", ErrMalformed)
	}

	*r = out
	return nil
}

// decodeInt accepts integral JSON numbers, including the 1.7e9 and 200.0 forms.
func decodeInt(raw json.RawMessage, dst *int64) error {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) || (len(raw) > 0 && raw[0] == '"') {
		return errors.New("not a number")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	if v, err := n.Int64(); err == nil {
		*dst = v
		return nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || f != math.Trunc(f) {
		return fmt.Errorf("%s is not an integer", n)
	}
	// -2^63 is exact as a float64; 2^63 is already out of range.
	if f < math.MinInt64 || f >= -math.MinInt64 {
		return fmt.Errorf("%s overflows int64", n)
	}
	*dst = int64(f)
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Encode returns the wire payload of r.
func Encode(r Record) ([]byte, error) {
	return r.MarshalJSON()
}

// Decode parses a wire payload.
func Decode(data []byte) (Record, error) {
	var r Record
	err := r.UnmarshalJSON(data)
	return r, err
}

// IsSentinel reports whether data is the stop payload.
func IsSentinel(data []byte) bool {
	return bytes.Equal(data, Sentinel)
}

// String renders the wire form, falling back to a Go representation.
func (r Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%+v", struct {
			Time int64
			URL  string
		}{r.Time, r.URL})
	}
	return string(b)
}
