// Package version carries the build metadata injected with -ldflags and classifies the
// build as a release, a pre-release or a development build.
package version

import "strings"

const (
	// Unknown is used when build metadata is not provided.
	Unknown = "unknown"
	// DevelopmentVersion is the default version in local builds.
	DevelopmentVersion = "dev"
)

// Build channels reported by /version, the version command and the startup log.
const (
	ChannelRelease     = "release"
	ChannelPreRelease  = "prerelease"
	ChannelDevelopment = "development"
)

var (
	// AppVersion is intended to be overridden at build time:
	// go build -ldflags="-X github.com/nimburion/taskdesk/pkg/version.AppVersion=v1.2.3"
	AppVersion = DevelopmentVersion

	// GitCommit is intended to be overridden at build time.
	GitCommit = Unknown

	// BuildTime is intended to be overridden at build time (RFC3339 recommended).
	BuildTime = Unknown
)

// Info describes the running taskdesk build.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Channel   string `json:"channel"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Current returns the build metadata for serviceName. A semantic AppVersion is rendered in
// canonical form; anything else is reported as is on the development channel.
func Current(serviceName string) Info {
	info := Info{
		Service:   orDefault(serviceName, Unknown),
		Version:   orDefault(AppVersion, DevelopmentVersion),
		Channel:   ChannelDevelopment,
		Commit:    orDefault(GitCommit, Unknown),
		BuildTime: orDefault(BuildTime, Unknown),
	}
	if v, err := Parse(info.Version); err == nil {
		info.Version = v.String()
		info.Channel = ChannelRelease
		if v.IsPreRelease() {
			info.Channel = ChannelPreRelease
		}
	}
	return info
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
