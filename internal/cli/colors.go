package cli

import (
	"fmt"
	"os"
)

const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
)

// RGB represents a TrueColor
type RGB struct {
	R, G, B uint8
}

var BrandOrange = RGB{217, 119, 87}

// disableColor is a cached check for the environment variable
var disableColor = checkNoColor()

func checkNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// Enabled reports whether ANSI colors may be written.
func Enabled() bool {
	return !disableColor
}

// Style wraps text in a specific color code
func Style(text string, colorCode string) string {
	if disableColor {
		return text
	}
	return fmt.Sprintf("%s%s%s", colorCode, text, Reset)
}

// ColorizeRGB returns text wrapped in ANSI TrueColor escape codes
func ColorizeRGB(text string, c RGB) string {
	if disableColor {
		return text
	}
	return fmt.Sprintf("\033[38;2;%d;%d;%dm%s%s", c.R, c.G, c.B, text, Reset)
}

func CheckMark() string {
	return Style("✔", Green)
}

func Arrow() string {
	return Style("➜", Blue)
}

// Banner is the one-line startup notice printed in console mode.
func Banner(name, version, addr, provider string) string {
	return fmt.Sprintf("%s %s %s  %s %s  %s %s",
		ColorizeRGB(name, BrandOrange), Style(version, Dim),
		Arrow(), Style(addr, Bold),
		Style("via", Dim), Style(provider, Cyan), CheckMark())
}
