//go:build !linux && !darwin

package logger

// isTerminal always reports false on platforms without termios; output
// falls back to plain text.
func isTerminal(fd uintptr) bool {
	return false
}
