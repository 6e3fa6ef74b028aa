package sgt

import (
	"strconv"
	"strings"
	"unicode"
)

type MalformedParamsError struct{}

func (e *MalformedParamsError) Error() string {
	return "Params entry is not a bracketed numeric matrix"
}

// TrialParams holds one trial's controller parameters. Every entry in the
// params file is a numeric matrix; the condition type is stored as a matrix
// of character codes and decoded into Type.
type TrialParams struct {
	Number int
	Type   string
	Values map[string][]float64
}

type entry struct {
	Key   string
	Value string
}

// parseEntries splits controller-format text into key/value pairs. The
// format is a flat sequence of "key:=value;" entries.
func parseEntries(text string) []entry {
	var entries []entry
	for _, segment := range strings.Split(text, ";") {
		key, value, found := strings.Cut(segment, ":=")
		if !found {
			continue
		}
		entries = append(entries, entry{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	return entries
}

// parseMatrix tokenizes a bracketed numeric matrix. The controller writes a
// leading sign outside the brackets; it binds to the first element. Values
// are split on commas, semicolon-free row breaks and whitespace, so nested
// row brackets flatten in row order.
func parseMatrix(value string) ([]float64, error) {
	s := strings.TrimSpace(value)
	negateFirst := false
	if strings.HasPrefix(s, "-") {
		negateFirst = true
		s = strings.TrimSpace(s[1:])
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, &MalformedParamsError{}
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '[' || r == ']' || unicode.IsSpace(r)
	})
	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, &MalformedParamsError{}
		}
		values = append(values, v)
	}
	if negateFirst && len(values) > 0 {
		values[0] = -values[0]
	}

	return values, nil
}

// ReadTrialParams parses one trial's params file.
func (this *Parser) ReadTrialParams(number int) (*TrialParams, error) {
	data, err := this.readFile(number, "params")
	if err != nil {
		return nil, err
	}
	if len(data) <= CLOCK_BYTES {
		return nil, &MalformedParamsError{}
	}

	params := &TrialParams{Number: number, Values: map[string][]float64{}}
	for _, e := range parseEntries(string(data[CLOCK_BYTES:])) {
		values, err := parseMatrix(e.Value)
		if err != nil {
			return nil, err
		}
		params.Values[e.Key] = values
	}

	codes, ok := params.Values["type"]
	if !ok {
		return nil, &MalformedParamsError{}
	}
	var b strings.Builder
	for _, c := range codes {
		b.WriteRune(rune(int(c)))
	}
	params.Type = b.String()
	delete(params.Values, "type")

	return params, nil
}
