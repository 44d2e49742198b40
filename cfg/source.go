package cfg

import (
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Source is a set of raw option values keyed by their environment variable
// name. Values may be strings (env, .env) or typed scalars (YAML).
type Source struct {
	values map[string]any
}

func NewSource(values map[string]any) *Source {
	if values == nil {
		values = map[string]any{}
	}
	return &Source{values: values}
}

func NewStringSource(values map[string]string) *Source {
	m := make(map[string]any, len(values))
	for k, v := range values {
		m[k] = v
	}
	return NewSource(m)
}

// EnvSource snapshots the process environment.
func EnvSource() *Source {
	m := make(map[string]any)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			m[k] = v
		}
	}
	return NewSource(m)
}

// String returns the trimmed value of key. Missing and blank values report
// ok=false.
func (s *Source) String(key string) (string, bool, error) {
	switch v := s.values[key].(type) {
	case nil:
		return "", false, nil
	case string:
		v = strings.TrimSpace(v)
		return v, v != "", nil
	default:
		return "", false, newError(KindIncorrectType, "%s", key)
	}
}

func (s *Source) Int(key string) (int, bool, error) {
	switch v := s.values[key].(type) {
	case nil:
		return 0, false, nil
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case uint64:
		if v > math.MaxInt {
			return 0, false, newError(KindIncorrectType, "%s", key)
		}
		return int(v), true, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false, newError(KindIncorrectType, "%s", key)
		}
		return n, true, nil
	default:
		return 0, false, newError(KindIncorrectType, "%s", key)
	}
}

func (s *Source) Bool(key string) (bool, bool, error) {
	switch v := s.values[key].(type) {
	case nil:
		return false, false, nil
	case bool:
		return v, true, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return false, false, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false, newError(KindIncorrectType, "%s", key)
		}
		return b, true, nil
	default:
		return false, false, newError(KindIncorrectType, "%s", key)
	}
}

// Duration reads a value expressed in milliseconds.
func (s *Source) Duration(key string) (time.Duration, bool, error) {
	var ms float64
	switch v := s.values[key].(type) {
	case nil:
		return 0, false, nil
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case uint64:
		ms = float64(v)
	case float64:
		ms = v
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false, newError(KindIncorrectType, "%s", key)
		}
		ms = f
	default:
		return 0, false, newError(KindIncorrectType, "%s", key)
	}
	return time.Duration(ms * float64(time.Millisecond)), true, nil
}

// KeyValueList parses a value of the form k1=v1,k2=v2 as used for resource
// attributes and headers. Keys and values may be percent-encoded.
func (s *Source) KeyValueList(key string) (map[string]string, error) {
	raw, _, err := s.String(key)
	if err != nil {
		return nil, err
	}
	return ParseKeyValueList(raw)
}

func (s *Source) Protocol(key string) (Protocol, bool, error) {
	raw, ok, err := s.String(key)
	if err != nil || !ok {
		return "", false, err
	}
	p, err := ParseProtocol(raw)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

func ParseKeyValueList(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, newError(KindMalformedKeyValueString, "%s", part)
		}
		key, err := url.PathUnescape(k)
		if err != nil {
			return nil, newError(KindMalformedKeyValueString, "%s", part)
		}
		value, err := url.PathUnescape(v)
		if err != nil {
			return nil, newError(KindMalformedKeyValueString, "%s", part)
		}
		out[key] = value
	}
	return out, nil
}
