//go:build windows

package logger

import "golang.org/x/sys/windows"

// isTerminal checks if the handle is attached to a console
func isTerminal(fd uintptr) bool {
	var mode uint32
	return windows.GetConsoleMode(windows.Handle(fd), &mode) == nil
}
