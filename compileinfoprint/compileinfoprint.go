// compileinfoprint is imported by the command line tools for its side
// effects: the build information is printed to os.Stderr and the standard
// logger is prefixed with the program name.
package compileinfoprint

import (
	"log"

	"github.com/carbocation/chromquant/compileinfo"
)

func init() {
	info := compileinfo.Get()
	if info.Program != "" {
		log.SetPrefix(info.Program + " ")
	}

	compileinfo.PrintToStdErr()
}
