package logger

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Init installs the default logger on stderr. Only warnings and errors are
// shown unless debug is set.
func Init(debug, noColor bool) {
	log.SetDefault(log.NewWithOptions(os.Stderr,
		log.Options{
			ReportCaller: debug,
			Prefix:       "LUNETTE",
			Level:        log.WarnLevel,
		}))

	if debug {
		log.SetLevel(log.DebugLevel)
	}

	log.SetColorProfile(termenv.ANSI256)
	if noColor {
		log.SetColorProfile(termenv.Ascii)
	}
}

// EnableTrace makes the per-instruction debug records visible
func EnableTrace() {
	log.SetLevel(log.DebugLevel)
	log.SetReportCaller(false)
}
