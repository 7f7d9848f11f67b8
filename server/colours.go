package server

import "fmt"

// ANSI colours for the development route log.
const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"

	ResetColor = "\033[0m"
)

var methodColors = map[string]string{
	"GET":    Green,
	"POST":   Blue,
	"PUT":    Cyan,
	"DELETE": Yellow,
	"PATCH":  Magenta,
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// colouredStatus paints 2xx green, 4xx yellow and 5xx red.
func colouredStatus(status int) string {
	color := Gray
	switch {
	case status >= 500:
		color = Red
	case status >= 400:
		color = Yellow
	case status >= 200 && status < 300:
		color = Green
	}
	return fmt.Sprintf("%s%d%s", color, status, ResetColor)
}
