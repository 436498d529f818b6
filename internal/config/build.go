package config

import "fmt"

// Set at link time:
//
//	go build -ldflags "-X backoffice/internal/config.version=1.2.3 \
//	    -X backoffice/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X backoffice/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// BuildInfo is build metadata injected via ldflags, never read from the environment.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, built %s)", b.Version, b.Commit, b.BuildTime)
}
