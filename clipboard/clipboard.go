// Package clipboard copies transcripts to the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard utility available (install xclip, xsel or wl-clipboard)")

// ErrEmpty is returned when there is no transcript to copy.
var ErrEmpty = errors.New("nothing to copy")

func Available() bool { return !cb.Unsupported }

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnavailable
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	if cb.Unsupported {
		return ErrUnavailable
	}
	return cb.WriteAll(text)
}
