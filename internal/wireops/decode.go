package wireops

import (
	"bytes"
	"encoding/json"
)

// Decode parses the output of Encode (or any compatible JSON object) back
// into a Dict. Unlike Encode, no teacher or pack example implements a
// generic JSON decoder — jsonenc (and every logging library in the pack)
// is write-only, so this one direction falls back to the standard
// library's encoding/json. json.Number is used for the intermediate decode
// so integral payloads round-trip as int64 rather than losing precision
// through float64.
func Decode(b []byte) (Dict, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	out := make(Dict, len(raw))
	for k, v := range raw {
		out[k] = normalize(v)
	}
	return out, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	default:
		return x
	}
}
