package audio

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrPickerCancelled = errors.New("device selection cancelled")

// FindDevice returns the capture device whose name or ID matches name,
// preferring exact matches over case-insensitive substring ones.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating devices: %v", ErrDevice, err)
	}
	for i, d := range devices {
		if d.Name == name || d.ID == name {
			return &devices[i], nil
		}
	}
	lower := strings.ToLower(name)
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), lower) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no capture device matches %q", ErrDevice, name)
}

type pickerAction int

const (
	pickerMove pickerAction = iota
	pickerConfirm
	pickerCancel
)

func pickerKey(cursor, count int, key []byte) (int, pickerAction) {
	switch {
	case len(key) == 1 && (key[0] == '\r' || key[0] == '\n'):
		return cursor, pickerConfirm
	case len(key) == 1 && (key[0] == 3 || key[0] == 'q'):
		return cursor, pickerCancel
	case len(key) == 1 && key[0] == 'j',
		len(key) == 3 && key[0] == 0x1b && key[1] == '[' && key[2] == 'B':
		if cursor < count-1 {
			cursor++
		}
	case len(key) == 1 && key[0] == 'k',
		len(key) == 3 && key[0] == 0x1b && key[1] == '[' && key[2] == 'A':
		if cursor > 0 {
			cursor--
		}
	}
	return cursor, pickerMove
}

// SelectDevice presents an interactive device picker and returns the selected device.
// If only one device is available, it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating devices: %v", ErrDevice, err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no capture devices found", ErrDevice)
	}

	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	renderList := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select input device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			btTag := ""
			if IsBluetooth(d.Name) {
				btTag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, btTag)
			} else {
				fmt.Printf("    %s%s\r\n", d.Name, btTag)
			}
		}
	}

	renderList()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		var action pickerAction
		cursor, action = pickerKey(cursor, len(devices), buf[:n])
		switch action {
		case pickerConfirm:
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case pickerCancel:
			fmt.Print("\r\n")
			return nil, ErrPickerCancelled
		}

		fmt.Printf("\x1b[%dA", len(devices)+2)
		renderList()
	}
}
