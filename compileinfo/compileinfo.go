// Package compileinfo reports how the running binary was built, for log
// headers and for the provenance record stored next to every archive.
package compileinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

type CompileInfo struct {
	Program    string
	Package    string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	mod := ""
	if c.Modified {
		mod = " Files in the repo were modified after that commit."
	}

	return fmt.Sprintf("%s: built from %s %s with %s at commit %v at time %v.%s", c.Program, c.Package, c.Version, c.GoVersion, c.Commit, c.CommitTime, mod)
}

// Provenance renders the build information as "key: value" lines.
func (c CompileInfo) Provenance() string {
	var b strings.Builder
	fmt.Fprintf(&b, "program: %s\n", c.Program)
	fmt.Fprintf(&b, "package: %s\n", c.Package)
	fmt.Fprintf(&b, "version: %s\n", c.Version)
	fmt.Fprintf(&b, "go: %s\n", c.GoVersion)
	fmt.Fprintf(&b, "commit: %s\n", c.Commit)
	fmt.Fprintf(&b, "commit_time: %s\n", c.CommitTime)
	fmt.Fprintf(&b, "modified: %t\n", c.Modified)

	return b.String()
}

func Get() CompileInfo {
	out := CompileInfo{}
	if len(os.Args) > 0 {
		out.Program = filepath.Base(os.Args[0])
	}

	z, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = z.GoVersion
	out.Package = z.Path
	out.Version = z.Main.Version
	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintf(os.Stderr, "%s\n", Get())
}
