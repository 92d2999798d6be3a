// Package color styles terminal output. Styling follows the color profile
// of stdout and is dropped entirely when NO_COLOR is set or color is
// disabled.
package color

import "github.com/muesli/termenv"

var profile = termenv.EnvColorProfile()

// EnableColor forces styling on (basic ANSI) or off
func EnableColor(enable bool) {
	if !enable {
		profile = termenv.Ascii
		return
	}
	if profile == termenv.Ascii {
		profile = termenv.ANSI
	}
}

func colorize(c termenv.ANSIColor, text string) string {
	return profile.String(text).Foreground(profile.Convert(c)).String()
}

func RedText(text string) string {
	return colorize(termenv.ANSIRed, text)
}

func BrightRedText(text string) string {
	return colorize(termenv.ANSIBrightRed, text)
}

func GreenText(text string) string {
	return colorize(termenv.ANSIGreen, text)
}

func YellowText(text string) string {
	return colorize(termenv.ANSIYellow, text)
}

func CyanText(text string) string {
	return colorize(termenv.ANSICyan, text)
}

// GrayText renders text in bright black
func GrayText(text string) string {
	return colorize(termenv.ANSIBrightBlack, text)
}

func BoldText(text string) string {
	return profile.String(text).Bold().String()
}
