package progress

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeWireFormat(t *testing.T) {
	cat := int64(4)
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	records := []Record{
		Started{RunID: "R1", Total: 2},
		Item{Index: 1, Total: 2, ProductID: "gid://shopify/Product/1", CategoryID: &cat, Enabled: true, Title: "OLED TV"},
		ItemError{Index: 2, Total: 2, ProductID: "gid://shopify/Product/2", Error: "tags read failed"},
		Cleared{Index: 1, Total: 1, ProductID: "p"},
		StreamError{Error: "catalog unavailable", Status: 502},
		Done{RunID: "R1", Count: 2},
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode %T: %v", r, err)
		}
	}

	want := strings.Join([]string{
		`{"type":"started","runId":"R1","total":2}`,
		`{"type":"item","index":1,"total":2,"productId":"gid://shopify/Product/1","categoryId":4,"enabled":true,"title":"OLED TV"}`,
		`{"type":"item_error","index":2,"total":2,"productId":"gid://shopify/Product/2","error":"tags read failed"}`,
		`{"type":"cleared","index":1,"total":1,"productId":"p","removed":[]}`,
		`{"type":"error","error":"catalog unavailable","status":502}`,
		`{"type":"done","runId":"R1","done":true,"count":2}`,
	}, "\n") + "\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("wire mismatch (-want +got):\n%s", diff)
	}
}

func TestItemWithoutCategoryEncodesNull(t *testing.T) {
	line, err := Marshal(Item{Index: 1, Total: 1, ProductID: "p", Title: "Cotton T-Shirt"})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(line, []byte(`"categoryId":null`)) {
		t.Errorf("expected null category, got %s", line)
	}
}

func TestRoundTripThroughDecoder(t *testing.T) {
	cat := int64(9)
	in := []Record{
		Started{RunID: "R", Total: 1},
		Item{Index: 1, Total: 1, ProductID: "p", CategoryID: &cat, Enabled: true, Title: "t", Stage: "alias"},
		Done{RunID: "R", Count: 1},
	}
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, r := range in {
		if err := enc.Encode(r); err != nil {
			t.Fatal(err)
		}
	}
	buf.WriteString("\n")

	dec := NewDecoder(&buf)
	var out []Record
	for {
		r, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, r)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("records (-want +got):\n%s", diff)
	}
}

func TestUnmarshalRejectsUnknownType(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"type":"bogus"}`)); err == nil {
		t.Error("expected error")
	}
	if _, err := Unmarshal([]byte(`not json`)); err == nil {
		t.Error("expected error")
	}
}

type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestEncoderFlushesEachRecord(t *testing.T) {
	w := &flushRecorder{}
	enc := NewEncoder(w)
	_ = enc.Encode(Started{Total: 0})
	_ = enc.Encode(Done{Count: 0})
	if w.flushes != 2 {
		t.Errorf("flushes = %d, want 2", w.flushes)
	}
}

func TestRunIDsAreOrdered(t *testing.T) {
	g := NewRunIDs()
	prev := g.Next()
	for i := 0; i < 100; i++ {
		next := g.Next()
		if next <= prev {
			t.Fatalf("run ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}
