package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/callflow/pkg/domain"
)

var (
	// DefaultMaxInputSize caps an utterance transcript (4KB).
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "CALLFLOW_MAX_INPUT_SIZE"
	// MaxKeypadSize caps a keypad token. Option tokens are single keys or short
	// words such as "star"; only a batch of digits comes close.
	MaxKeypadSize = 32
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
	ErrInvalidKeypad = errors.New("keypad token contains whitespace or control characters")
)

// SanitizeEvent cleans the token of ev according to its kind. Utterances go
// through SanitizeInput. Keypad tokens are trimmed, held to MaxKeypadSize and
// rejected when they carry whitespace or control characters inside.
func SanitizeEvent(ev domain.InputEvent) (domain.InputEvent, error) {
	if ev.Speech {
		clean, err := SanitizeInput(ev.Token)
		if err != nil {
			return ev, err
		}
		ev.Token = clean
		return ev, nil
	}

	token := strings.TrimSpace(ev.Token)
	if len(token) > MaxKeypadSize {
		return ev, fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(token), MaxKeypadSize)
	}
	if !utf8.ValidString(token) {
		return ev, ErrInvalidUTF8
	}
	if strings.IndexFunc(token, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return ev, fmt.Errorf("%w: %q", ErrInvalidKeypad, token)
	}
	ev.Token = token
	return ev, nil
}

// SanitizeInput cleans free-form caller input by enforcing size limits,
// validating UTF-8, and stripping dangerous control characters.
func SanitizeInput(input string) (string, error) {
	// 1. Enforce Size Limit
	limit := getMaxInputSize()
	if len(input) > limit {
		// Reject rather than truncate so the input log stays faithful.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	// 2. Validate UTF-8
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// 3. Strip Control Characters
	// We preserve newline, tab and carriage return.
	// We remove ANSI codes (ESC), NULL, BEL, etc.
	// This prevents log poisoning and terminal corruption.

	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	// Slow path: build clean string
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func getMaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
