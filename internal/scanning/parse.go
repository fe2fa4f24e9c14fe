package scanning

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

// StripFence removes a surrounding markdown code fence, with or without a json tag
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if end := strings.Index(text, "```"); end != -1 {
		text = text[:end]
	}
	text = strings.TrimPrefix(text, "json")

	return strings.TrimSpace(text)
}

// ParseReceipt parses the text returned by a vision vendor into a Receipt.
// Fields missing from the response are set to NotFound.
func ParseReceipt(text string) (*Receipt, error) {
	cleaned := StripFence(text)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, &ParseError{Text: text, Err: err}
	}
	if data == nil {
		return nil, &ParseError{Text: text, Err: errors.New("response is not a JSON object")}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Text: text, Err: errors.New("unexpected data after JSON object")}
	}

	receipt := NewReceipt()
	for _, name := range Fields {
		if v, ok := data[name]; ok {
			receipt.Set(name, stringValue(v))
		}
	}

	return receipt, nil
}

// stringValue renders a decoded JSON value as a field string
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
}
