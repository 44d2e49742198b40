package sampler

import (
	"fmt"

	"otelmobile/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SampleRateKey is attached to every sampled span.
const SampleRateKey = attribute.Key("SampleRate")

// Deterministic keeps roughly one in every rate traces. The decision only
// depends on the trace id, so every span of a trace (and every service
// seeing the same trace) agrees on it.
type Deterministic struct {
	inner sdktrace.Sampler
	rate  int
	attr  attribute.KeyValue
}

var _ sdktrace.Sampler = (*Deterministic)(nil)

// New builds a sampler for the given rate. A rate below 1 drops everything,
// a rate of 1 keeps everything.
func New(rate int, log logger.Logger) *Deterministic {
	if log == nil {
		log = logger.Nop{}
	}

	var inner sdktrace.Sampler
	switch {
	case rate < 1:
		log.Warn("sample rate too low, not emitting any spans", logger.Field{Key: "rate", Value: rate})
		inner = sdktrace.NeverSample()
	case rate == 1:
		log.Debug("not sampling, emitting all spans")
		inner = sdktrace.AlwaysSample()
	default:
		log.Debug("sampling enabled", logger.Field{Key: "rate", Value: rate})
		inner = sdktrace.TraceIDRatioBased(1.0 / float64(rate))
	}

	return &Deterministic{
		inner: inner,
		rate:  rate,
		attr:  SampleRateKey.Int(rate),
	}
}

func (s *Deterministic) Rate() int { return s.rate }

func (s *Deterministic) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	res := s.inner.ShouldSample(p)
	if res.Decision != sdktrace.RecordAndSample {
		return res
	}

	attrs := make([]attribute.KeyValue, 0, len(res.Attributes)+1)
	for _, kv := range res.Attributes {
		if kv.Key == SampleRateKey {
			continue
		}
		attrs = append(attrs, kv)
	}
	res.Attributes = append(attrs, s.attr)
	return res
}

func (s *Deterministic) Description() string {
	return fmt.Sprintf("DeterministicSampler{%d}", s.rate)
}
