package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindDevice(t *testing.T) {
	t.Parallel()

	fake := NewFakeContext(nil, false)
	fake.Devs = []DeviceInfo{
		{ID: "alsa_input.pci", Name: "Built-in Audio Analog Stereo"},
		{ID: "alsa_input.usb", Name: "USB Microphone"},
	}

	d, err := FindDevice(fake, "alsa_input.usb")
	require.NoError(t, err)
	require.Equal(t, "USB Microphone", d.Name)

	d, err = FindDevice(fake, "built-in")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.pci", d.ID)

	_, err = FindDevice(fake, "webcam")
	require.ErrorIs(t, err, ErrDevice)
}

func TestPickerKey(t *testing.T) {
	t.Parallel()

	up := []byte{0x1b, '[', 'A'}
	down := []byte{0x1b, '[', 'B'}

	c, a := pickerKey(0, 3, down)
	require.Equal(t, 1, c)
	require.Equal(t, pickerMove, a)

	c, _ = pickerKey(2, 3, []byte("j"))
	require.Equal(t, 2, c, "cursor stays on last entry")

	c, _ = pickerKey(0, 3, up)
	require.Equal(t, 0, c, "cursor stays on first entry")

	c, _ = pickerKey(2, 3, []byte("k"))
	require.Equal(t, 1, c)

	_, a = pickerKey(1, 3, []byte{'\r'})
	require.Equal(t, pickerConfirm, a)

	_, a = pickerKey(1, 3, []byte{3})
	require.Equal(t, pickerCancel, a)
}
