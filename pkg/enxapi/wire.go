package enxapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/tokenize"
)

// wireRecord is a word as the backend sends it. Field names are the wire
// contract.
type wireRecord struct {
	Key               string   `json:"Key"`
	English           string   `json:"English"`
	Chinese           flexText `json:"Chinese"`
	Pronunciation     flexText `json:"Pronunciation"`
	LoadCount         flexInt  `json:"LoadCount"`
	AlreadyAcquainted flexInt  `json:"AlreadyAcquainted"`
	WordType          flexInt  `json:"WordType"`
}

func (w wireRecord) record(fallbackKey string) *familiarity.WordRecord {
	key := fallbackKey
	if key == "" {
		key = tokenize.Fold(w.Key)
	}
	if key == "" {
		key = tokenize.Fold(w.English)
	}
	class := familiarity.ClassContent
	if w.WordType == 1 {
		class = familiarity.ClassFunctional
	}
	return &familiarity.WordRecord{
		Key:           key,
		SurfaceForm:   strings.TrimSpace(w.English),
		Translation:   strings.TrimSpace(string(w.Chinese)),
		Pronunciation: strings.TrimSpace(string(w.Pronunciation)),
		LookupCount:   max(int(w.LoadCount), 0),
		Acquainted:    w.AlreadyAcquainted != 0,
		Class:         class,
	}
}

// flexInt accepts numbers, numeric strings, booleans and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, string(b) == "null":
		*f = 0
		return nil
	case string(b) == "true":
		*f = 1
		return nil
	case string(b) == "false":
		*f = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexInt: %q is not a number", s)
	}
	*f = flexInt(v)
	return nil
}

// flexText accepts a string, null, or a list of strings joined with "; ".
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexText(s)
	case '[':
		var parts []string
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		*f = flexText(strings.Join(parts, "; "))
	default:
		*f = flexText(b)
	}
	return nil
}

var recordFields = map[string]bool{
	"key": true, "english": true, "chinese": true, "pronunciation": true,
	"loadcount": true, "alreadyacquainted": true, "wordtype": true,
}

// object decodes raw as a JSON object, or returns nil.
func object(raw json.RawMessage) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// recordShaped reports whether raw is an object carrying word record fields.
func recordShaped(raw json.RawMessage) bool {
	for k := range object(raw) {
		if recordFields[strings.ToLower(k)] {
			return true
		}
	}
	return false
}

// unwrap peels envelope objects ({"data": …}, {"ecp": …}) until it reaches
// something that is not an envelope. keep decides whether the current value
// already is the payload.
func unwrap(raw json.RawMessage, keep func(json.RawMessage) bool, envelopes ...string) json.RawMessage {
	for range 4 {
		if keep(raw) {
			return raw
		}
		m := object(raw)
		next, found := json.RawMessage(nil), false
		for _, env := range envelopes {
			for k, v := range m {
				if strings.EqualFold(k, env) {
					next, found = v, true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return raw
		}
		raw = next
	}
	return raw
}

// decodeParagraph normalizes a classification response into records keyed by
// folded word.
func decodeParagraph(body []byte) (map[string]*familiarity.WordRecord, error) {
	top := object(body)
	if top == nil {
		return nil, fmt.Errorf("paragraph response is not a JSON object")
	}
	payload := json.RawMessage(body)
	for _, env := range []string{"data", "wordProperties"} {
		if v, ok := top[env]; ok && !recordShaped(v) && object(v) != nil {
			payload = v
			break
		}
	}

	out := make(map[string]*familiarity.WordRecord)
	for word, raw := range object(payload) {
		if !recordShaped(raw) {
			continue
		}
		var w wireRecord
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode record %q: %w", word, err)
		}
		key := tokenize.Fold(word)
		if key == "" {
			continue
		}
		out[key] = w.record(key)
	}
	return out, nil
}

// decodeWord normalizes a single-record response. ok is false when the body
// holds no record at all.
func decodeWord(body []byte, fallbackKey string) (*familiarity.WordRecord, bool, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, false, nil
	}
	raw := unwrap(body, recordShaped, "ecp", "data", "wordProperties", "result")
	if !recordShaped(raw) {
		return nil, false, nil
	}
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false, fmt.Errorf("decode record: %w", err)
	}
	return w.record(fallbackKey), true, nil
}
