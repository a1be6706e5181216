package version

import (
	"fmt"
	"runtime"
)

// Populated at build time via -ldflags.
var (
	gitVersion = "v0.0.0-master+$Format:%H$"
	gitCommit  = "$Format:%H$"
	buildDate  = "1970-01-01T00:00:00Z"
)

// Info holds the build metadata exposed by --version and logged at startup.
type Info struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
	Compiler   string `json:"compiler"`
	Platform   string `json:"platform"`
}

func (info Info) String() string {
	return info.GitVersion
}

func Get() Info {
	return Info{
		GitVersion: gitVersion,
		GitCommit:  gitCommit,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
		Compiler:   runtime.Compiler,
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
