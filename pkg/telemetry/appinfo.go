package telemetry

import (
	"os"
	"path/filepath"
	"runtime/debug"

	"go.opentelemetry.io/otel/attribute"
)

// Application resource keys. None of them are in semconv yet.
const (
	AppBundleVersion            = attribute.Key("app.bundle.version")
	AppBundleShortVersionString = attribute.Key("app.bundle.shortVersionString")
	AppBundleExecutable         = attribute.Key("app.bundle.executable")
	AppDebugBinaryName          = attribute.Key("app.debug.binaryName")
	AppDebugBuildUUID           = attribute.Key("app.debug.buildUUID")
)

type buildInfoFunc func() (*debug.BuildInfo, bool)

type executableFunc func() (string, error)

// appInfoAttributes describes the running binary. The main module version
// stands in for the short version string and the VCS revision for the build
// version and build id.
func appInfoAttributes(readBuildInfo buildInfoFunc, executable executableFunc) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	if bi, ok := readBuildInfo(); ok && bi != nil {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			attrs = append(attrs, AppBundleShortVersionString.String(v))
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				attrs = append(attrs,
					AppBundleVersion.String(s.Value),
					AppDebugBuildUUID.String(s.Value),
				)
			}
		}
	}

	if exe, err := executable(); err == nil && exe != "" {
		attrs = append(attrs,
			AppDebugBinaryName.String(exe),
			AppBundleExecutable.String(filepath.Base(exe)),
		)
	}
	return attrs
}

func hostAppInfo() []attribute.KeyValue {
	return appInfoAttributes(debug.ReadBuildInfo, os.Executable)
}
