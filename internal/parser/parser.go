// Package parser turns a judge model's free-form verdict into a label -> Yes/No mapping.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

const fence = "```"

// Strategy tries to read a verdict mapping out of text. ok is false when the
// strategy does not recognise the text at all.
type Strategy func(text string) (verdict map[string]string, ok bool)

// DefaultStrategies is the degradation chain used by Parse: strict JSON first,
// then a permissive line scan.
var DefaultStrategies = []Strategy{JSONStrategy, LineStrategy}

// Parse runs DefaultStrategies over text. It never fails; unparseable text
// yields an empty map.
func Parse(text string) map[string]string {
	return ParseWith(text, DefaultStrategies...)
}

// ParseWith strips a code fence and returns the result of the first strategy
// that recognises the text.
func ParseWith(text string, strategies ...Strategy) map[string]string {
	text = StripFence(text)
	for _, s := range strategies {
		if verdict, ok := s(text); ok {
			return verdict
		}
	}
	return map[string]string{}
}

// StripFence removes the opening and closing lines of a fenced code block
// when at least three lines are present.
func StripFence(text string) string {
	if !strings.HasPrefix(strings.TrimSpace(text), fence) {
		return text
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 3 {
		return text
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

// JSONStrategy decodes text as a JSON object. String values are kept as-is;
// other scalars are formatted.
func JSONStrategy(text string) (map[string]string, bool) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil || decoded == nil {
		return nil, false
	}
	verdict := make(map[string]string, len(decoded))
	for label, value := range decoded {
		switch v := value.(type) {
		case string:
			verdict[label] = v
		case nil:
			verdict[label] = ""
		default:
			verdict[label] = fmt.Sprint(v)
		}
	}
	return verdict, true
}

// LineStrategy scans "label: value" lines and keeps the ones answered Yes or No.
// It always matches, possibly with an empty result.
func LineStrategy(text string) (map[string]string, bool) {
	verdict := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		label = strings.Trim(strings.TrimSpace(label), `"`)
		value = strings.TrimSpace(value)
		value = strings.TrimSpace(strings.TrimSuffix(value, ","))
		value = strings.Trim(value, `"`)
		if value == "Yes" || value == "No" {
			verdict[label] = value
		}
	}
	return verdict, true
}
