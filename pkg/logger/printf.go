package logger

import "fmt"

// Printf adapts a Logger to libraries that log through leveled
// printf-style methods, such as badger.
type Printf struct {
	Log    Logger
	Source string
}

func (p Printf) l() Logger {
	if p.Log == nil {
		return Nop{}
	}
	return p.Log
}

func (p Printf) Errorf(format string, args ...any) {
	p.l().Error(fmt.Sprintf(format, args...), Field{Key: "source", Value: p.Source})
}

func (p Printf) Warningf(format string, args ...any) {
	p.l().Warn(fmt.Sprintf(format, args...), Field{Key: "source", Value: p.Source})
}

func (p Printf) Infof(format string, args ...any) {
	p.l().Debug(fmt.Sprintf(format, args...), Field{Key: "source", Value: p.Source})
}

func (p Printf) Debugf(format string, args ...any) {
	p.l().Debug(fmt.Sprintf(format, args...), Field{Key: "source", Value: p.Source})
}
