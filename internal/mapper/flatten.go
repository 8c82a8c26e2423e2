package mapper

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"finreview/internal/domain"
)

// FlattenJSON collects every string and number leaf of a JSON document in
// document order. Object keys, booleans and nulls are skipped. Leaves read
// before a syntax error are returned alongside the error.
func FlattenJSON(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	type frame struct {
		object    bool
		expectKey bool
	}
	var stack []frame
	out := []string{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if len(stack) > 0 {
				return out, eris.New("mapper: flatten json: unexpected end of input")
			}
			return out, nil
		}
		if err != nil {
			return out, eris.Wrap(err, "mapper: flatten json")
		}

		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			stack = stack[:len(stack)-1]
			continue
		}
		if n := len(stack); n > 0 && stack[n-1].object {
			if stack[n-1].expectKey {
				stack[n-1].expectKey = false
				continue
			}
			stack[n-1].expectKey = true
		}

		switch v := tok.(type) {
		case json.Delim:
			stack = append(stack, frame{object: v == '{', expectKey: v == '{'})
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case json.Number:
			out = append(out, v.String())
		}
	}
}

// FlattenRecord lists the populated values of a record in document order.
func FlattenRecord(rec *domain.FinancialRecord) []string {
	out := []string{}
	for _, p := range rec.PopulatedPaths() {
		v, _ := rec.Get(p)
		out = append(out, v)
	}
	return out
}
