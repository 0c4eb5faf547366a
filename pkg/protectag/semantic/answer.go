package semantic

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

// Answer is a successfully decoded classifier response. A nil CategoryID
// means the model found no specific match.
type Answer struct {
	CategoryID *int64
}

// DecodeError reports a response that does not match {"category_id": number|null}.
type DecodeError struct {
	Raw    string
	Reason string
}

func (e *DecodeError) Error() string {
	return "semantic: unusable classifier answer: " + e.Reason
}

// ParseAnswer validates raw against the strict response contract. A fenced
// ```json block is unwrapped first; anything else is a *DecodeError.
func ParseAnswer(raw string) (Answer, error) {
	body := unfence(strings.TrimSpace(raw))
	if body == "" {
		return Answer{}, &DecodeError{Raw: raw, Reason: "empty response"}
	}

	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(&fields); err != nil {
		return Answer{}, &DecodeError{Raw: raw, Reason: "not a JSON object"}
	}
	if dec.More() {
		return Answer{}, &DecodeError{Raw: raw, Reason: "trailing data after JSON object"}
	}
	value, ok := fields["category_id"]
	if !ok {
		return Answer{}, &DecodeError{Raw: raw, Reason: "missing category_id"}
	}
	if len(fields) != 1 {
		return Answer{}, &DecodeError{Raw: raw, Reason: "unexpected extra fields"}
	}

	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return Answer{}, nil
	}

	var num json.Number
	numDec := json.NewDecoder(bytes.NewReader(value))
	numDec.UseNumber()
	var v any
	if err := numDec.Decode(&v); err != nil {
		return Answer{}, &DecodeError{Raw: raw, Reason: "category_id is not valid JSON"}
	}
	num, ok = v.(json.Number)
	if !ok {
		return Answer{}, &DecodeError{Raw: raw, Reason: "category_id is not a number"}
	}
	id, err := num.Int64()
	if err != nil {
		f, ferr := num.Float64()
		if ferr != nil || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return Answer{}, &DecodeError{Raw: raw, Reason: "category_id is not an integer"}
		}
		id = int64(f)
	}
	return Answer{CategoryID: &id}, nil
}

// IsDecodeError reports whether err is (or wraps) a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func unfence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
