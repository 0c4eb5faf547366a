package progress

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
)

type flusher interface {
	Flush()
}

// Encoder writes records as newline-delimited JSON. When the underlying
// writer can flush (an HTTP response), every record is flushed as written.
type Encoder struct {
	w     io.Writer
	flush flusher
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(flusher)
	return &Encoder{w: w, flush: f}
}

// Encode writes r followed by a newline.
func (e *Encoder) Encode(r Record) error {
	line, err := Marshal(r)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := e.w.Write(line); err != nil {
		return errors.Wrap(err, "write progress record")
	}
	if e.flush != nil {
		e.flush.Flush()
	}
	return nil
}

// Marshal encodes a single record with its "type" discriminator.
func Marshal(r Record) ([]byte, error) {
	var wire any
	switch v := r.(type) {
	case Started:
		wire = struct {
			Type Kind `json:"type"`
			Started
		}{KindStarted, v}
	case Item:
		wire = struct {
			Type Kind `json:"type"`
			Item
		}{KindItem, v}
	case ItemError:
		wire = struct {
			Type Kind `json:"type"`
			ItemError
		}{KindItemError, v}
	case Cleared:
		if v.Removed == nil {
			v.Removed = []string{}
		}
		wire = struct {
			Type Kind `json:"type"`
			Cleared
		}{KindCleared, v}
	case StreamError:
		wire = struct {
			Type Kind `json:"type"`
			StreamError
		}{KindError, v}
	case Done:
		wire = struct {
			Type  Kind   `json:"type"`
			RunID string `json:"runId"`
			Done  bool   `json:"done"`
			Count int    `json:"count"`
		}{KindDone, v.RunID, true, v.Count}
	default:
		return nil, errors.Newf("progress: unknown record type %T", r)
	}
	return json.Marshal(wire)
}

// Decoder reads records written by an Encoder.
type Decoder struct {
	s *bufio.Scanner
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Decoder{s: s}
}

// Next returns the next record, or io.EOF at end of stream.
func (d *Decoder) Next() (Record, error) {
	for d.s.Scan() {
		line := bytes.TrimSpace(d.s.Bytes())
		if len(line) == 0 {
			continue
		}
		return Unmarshal(line)
	}
	if err := d.s.Err(); err != nil {
		return nil, errors.Wrap(err, "read progress stream")
	}
	return nil, io.EOF
}

// Unmarshal decodes one NDJSON line.
func Unmarshal(line []byte) (Record, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, errors.Wrap(err, "decode progress record")
	}

	var (
		r   Record
		err error
	)
	switch head.Type {
	case KindStarted:
		var v Started
		err = json.Unmarshal(line, &v)
		r = v
	case KindItem:
		var v Item
		err = json.Unmarshal(line, &v)
		r = v
	case KindItemError:
		var v ItemError
		err = json.Unmarshal(line, &v)
		r = v
	case KindCleared:
		var v Cleared
		err = json.Unmarshal(line, &v)
		r = v
	case KindError:
		var v StreamError
		err = json.Unmarshal(line, &v)
		r = v
	case KindDone:
		var v Done
		err = json.Unmarshal(line, &v)
		r = v
	default:
		return nil, errors.Newf("progress: unknown record type %q", head.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s record", head.Type)
	}
	return r, nil
}
