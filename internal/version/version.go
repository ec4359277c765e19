// Package version carries build metadata injected through -ldflags.
package version

import (
	"fmt"
	"runtime"

	"github.com/aatumaykin/pifaas/internal/constants"
)

var (
	Version   = constants.DefaultVersion
	BuildTime = constants.DefaultBuildTime
	GitCommit = constants.DefaultGitCommit
	GoVersion = constants.DefaultGoVersion
)

func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// Runtime returns GoVersion, or the running toolchain when it was not
// injected at build time.
func Runtime() string {
	if GoVersion == constants.DefaultGoVersion {
		return runtime.Version()
	}
	return GoVersion
}

// Format renders the version block printed by `pifaas version`.
func Format() string {
	return fmt.Sprintf("pifaas - minimal function host for small boards\n"+
		"Version: %s\nBuild Time: %s\nGit Commit: %s\nGo Version: %s\n",
		Version, BuildTime, GitCommit, Runtime())
}
