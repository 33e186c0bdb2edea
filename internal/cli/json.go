package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokenKey tokenKind = iota
	tokenString
	tokenBool
	tokenNull
	tokenNumber
)

var palette = map[tokenKind]string{
	tokenKey:    Blue,
	tokenString: Green,
	tokenBool:   Yellow,
	tokenNull:   Dim,
	tokenNumber: Purple,
}

// matches a quoted string with an optional trailing colon, a literal, or a number
var jsonToken = regexp.MustCompile(`("(\\u[a-zA-Z0-9]{4}|\\[^u]|[^\\"])*"(\s*:)?|\b(true|false|null)\b|-?\d+(?:\.\d*)?(?:[eE][+\-]?\d+)?)`)

func classify(token string) tokenKind {
	switch {
	case strings.HasSuffix(token, ":"):
		return tokenKey
	case strings.HasPrefix(token, `"`):
		return tokenString
	case token == "true", token == "false":
		return tokenBool
	case token == "null":
		return tokenNull
	}
	return tokenNumber
}

// HighlightJSON colours keys, strings, literals and numbers of a JSON document.
// Layout is left untouched.
func HighlightJSON(doc string) string {
	if !Enabled() {
		return doc
	}
	return jsonToken.ReplaceAllStringFunc(doc, func(token string) string {
		kind := classify(token)
		if kind == tokenKey {
			return Style(strings.TrimSuffix(token, ":"), palette[kind]) + ":"
		}
		return Style(token, palette[kind])
	})
}

// PrettyFormat renders v as indented, highlighted JSON. Byte slices, strings
// and json.RawMessage holding valid JSON are re-indented; anything that cannot
// be encoded falls back to %+v.
func PrettyFormat(v interface{}) string {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%+v", v)
		}
		return HighlightJSON(string(b))
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return HighlightJSON(string(raw))
	}
	return HighlightJSON(out.String())
}
