package payload

import (
	"strings"
)

// naToken is the reply parameter a receiver sends for attributes the
// hardware does not support.
const naToken = "N/A"

// ResultKind tags a parse result.
type ResultKind uint8

const (
	// ResultValue indicates a real value is present.
	ResultValue ResultKind = iota

	// ResultAbsent indicates the reply carried no value. Transient.
	ResultAbsent

	// ResultUnsupported indicates the device answered N/A: the attribute
	// is not supported by this hardware. Callers should latch this and
	// stop querying the attribute.
	ResultUnsupported
)

// String returns the result kind name.
func (k ResultKind) String() string {
	switch k {
	case ResultValue:
		return "VALUE"
	case ResultAbsent:
		return "ABSENT"
	case ResultUnsupported:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// ListResult is the tagged result of parsing a comma-separated reply.
type ListResult struct {
	// Kind tags the result.
	Kind ResultKind

	// Values holds the tokens when Kind is ResultValue.
	Values []string
}

// Unsupported reports whether the device declared the attribute unavailable.
func (r ListResult) Unsupported() bool { return r.Kind == ResultUnsupported }

// Present reports whether a value was decoded.
func (r ListResult) Present() bool { return r.Kind == ResultValue }

// Joined returns the tokens joined with "," (empty unless a value is present).
func (r ListResult) Joined() string {
	return strings.Join(r.Values, ",")
}

// ParseList decodes a comma-separated reply parameter into a tagged result.
func ParseList(param string) ListResult {
	param = strings.TrimSpace(param)
	if param == naToken {
		return ListResult{Kind: ResultUnsupported}
	}
	if param == "" {
		return ListResult{Kind: ResultAbsent}
	}
	return ListResult{Kind: ResultValue, Values: strings.Split(param, ",")}
}

// token returns the list element at index, or "" when the tuple is shorter.
// Receivers report variable-length tuples depending on capability.
func token(values []string, index int) string {
	if index < 0 || index >= len(values) {
		return ""
	}
	return strings.TrimSpace(values[index])
}
