package cfg

import "fmt"

// ErrorKind classifies an OptionsError.
type ErrorKind int

const (
	KindIncorrectType ErrorKind = iota + 1
	KindMalformedKeyValueString
	KindMalformedURL
	KindMissingAPIKey
	KindUnsupportedExporter
	KindUnsupportedProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindIncorrectType:
		return "incorrect type"
	case KindMalformedKeyValueString:
		return "malformed key-value string"
	case KindMalformedURL:
		return "malformed url"
	case KindMissingAPIKey:
		return "missing api key"
	case KindUnsupportedExporter:
		return "unsupported exporter"
	case KindUnsupportedProtocol:
		return "unsupported protocol"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// OptionsError is returned when options cannot be read or built.
type OptionsError struct {
	Kind   ErrorKind
	Detail string
}

// Sentinels for errors.Is. They match any OptionsError of the same kind.
var (
	ErrIncorrectType           = &OptionsError{Kind: KindIncorrectType}
	ErrMalformedKeyValueString = &OptionsError{Kind: KindMalformedKeyValueString}
	ErrMalformedURL            = &OptionsError{Kind: KindMalformedURL}
	ErrMissingAPIKey           = &OptionsError{Kind: KindMissingAPIKey}
	ErrUnsupportedExporter     = &OptionsError{Kind: KindUnsupportedExporter}
	ErrUnsupportedProtocol     = &OptionsError{Kind: KindUnsupportedProtocol}
)

func (e *OptionsError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

// Is matches on kind, and on detail too when the target carries one.
func (e *OptionsError) Is(target error) bool {
	t, ok := target.(*OptionsError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Detail == "" || t.Detail == e.Detail)
}

func newError(kind ErrorKind, format string, args ...any) *OptionsError {
	return &OptionsError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
