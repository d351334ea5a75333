package tools

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// EncodePack derives the compact line-framed "PACK" form of a tool
// result from its canonical JSON encoding, per §6: a header line
// `PACK1 <tool> key=value ...` naming the tool plus any top-level
// scalar fields, followed by one `field:payload` line per remaining
// field, values URL-encoded. Every field reachable in the JSON
// encoding has exactly one corresponding line, so a client that only
// speaks PACK never loses information a JSON client would see —
// internal/tools/pack_test.go asserts this equivalence field by field.
func EncodePack(tool string, result interface{}) (string, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result for pack encoding: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Not a JSON object (e.g. a bare array or scalar result) —
		// the whole value becomes a single "result" field.
		fields = map[string]interface{}{"result": json.RawMessage(raw)}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var header strings.Builder
	fmt.Fprintf(&header, "PACK1 %s", tool)

	var body []string
	for _, k := range keys {
		v := fields[k]
		if scalar, ok := scalarString(v); ok {
			header.WriteByte(' ')
			header.WriteString(k)
			header.WriteByte('=')
			header.WriteString(url.QueryEscape(scalar))
			continue
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal field %q for pack encoding: %w", k, err)
		}
		body = append(body, k+":"+url.QueryEscape(string(payload)))
	}

	out := header.String()
	if len(body) > 0 {
		out += "\n" + strings.Join(body, "\n")
	}
	return out, nil
}

// scalarString returns v's header-safe string form when v is a bare
// JSON scalar (string, number, bool, or null); ok is false for
// objects/arrays, which must go in the body instead.
func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return fmt.Sprintf("%t", t), true
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t)), true
		}
		return fmt.Sprintf("%g", t), true
	default:
		return "", false
	}
}
