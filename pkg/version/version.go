// Package version reports the arbor release.
package version

import "runtime/debug"

// Version is set at build time:
//
//	go build -ldflags "-X github.com/vanderheijden86/arbor/pkg/version.Version=v0.2.0" ./cmd/arbor
//
// A `go install` build without ldflags reports the module version instead.
var Version = ""

func init() {
	if Version != "" {
		return
	}
	Version = fromBuildInfo(debug.ReadBuildInfo())
}

func fromBuildInfo(info *debug.BuildInfo, ok bool) string {
	if !ok || info == nil {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	return "dev"
}
