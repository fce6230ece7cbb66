//go:build gui

package gui

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"earshot/audio"
)

const waveColumns = 240

var (
	colorWaveBg   = color.RGBA{0, 0, 0, 255}
	colorWaveAxis = color.RGBA{48, 48, 48, 255}
	colorWaveBar  = color.RGBA{215, 0, 0, 255}
)

// WaveformWidget draws a min/max envelope of an audio buffer, one bar per
// column.
type WaveformWidget struct {
	widget.BaseWidget
	mu    sync.Mutex
	peaks []audio.Peak
}

func NewWaveformWidget() *WaveformWidget {
	w := &WaveformWidget{}
	w.ExtendBaseWidget(w)
	return w
}

// SetBuffer replaces the displayed signal. nil clears the plot.
func (w *WaveformWidget) SetBuffer(b *audio.Buffer) {
	var peaks []audio.Peak
	if b != nil {
		peaks = b.Peaks(waveColumns)
	}
	w.mu.Lock()
	w.peaks = peaks
	w.mu.Unlock()
	w.Refresh()
}

func (w *WaveformWidget) MinSize() fyne.Size {
	return fyne.NewSize(480, 140)
}

func (w *WaveformWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &waveRenderer{
		wave: w,
		bg:   canvas.NewRectangle(colorWaveBg),
		axis: canvas.NewLine(colorWaveAxis),
		bars: make([]*canvas.Rectangle, waveColumns),
	}
	for i := range r.bars {
		r.bars[i] = canvas.NewRectangle(colorWaveBar)
		r.bars[i].Hide()
	}
	return r
}

type waveRenderer struct {
	wave *WaveformWidget
	bg   *canvas.Rectangle
	axis *canvas.Line
	bars []*canvas.Rectangle
	size fyne.Size
}

// barSpan maps a peak to the vertical extent of its bar in a plot of the
// given height, +1.0 at the top. Bars are at least one unit tall.
func barSpan(p audio.Peak, height float32) (top, bottom float32) {
	top = (1 - float32(p.Max)) / 2 * height
	bottom = (1 - float32(p.Min)) / 2 * height
	if bottom-top < 1 {
		mid := (top + bottom) / 2
		top, bottom = mid-0.5, mid+0.5
	}
	return top, bottom
}

func (r *waveRenderer) Layout(size fyne.Size) {
	r.size = size
	r.bg.Resize(size)
	r.axis.Position1 = fyne.NewPos(0, size.Height/2)
	r.axis.Position2 = fyne.NewPos(size.Width, size.Height/2)
	r.placeBars()
}

func (r *waveRenderer) placeBars() {
	r.wave.mu.Lock()
	peaks := r.wave.peaks
	r.wave.mu.Unlock()

	if len(peaks) == 0 || r.size.Width <= 0 {
		for _, b := range r.bars {
			b.Hide()
		}
		return
	}
	colW := r.size.Width / float32(len(peaks))
	for i, b := range r.bars {
		if i >= len(peaks) {
			b.Hide()
			continue
		}
		top, bottom := barSpan(peaks[i], r.size.Height)
		b.Move(fyne.NewPos(float32(i)*colW, top))
		b.Resize(fyne.NewSize(max(colW-1, 1), bottom-top))
		b.Show()
	}
}

func (r *waveRenderer) MinSize() fyne.Size {
	return r.wave.MinSize()
}

func (r *waveRenderer) Refresh() {
	r.placeBars()
	r.bg.Refresh()
	r.axis.Refresh()
	for _, b := range r.bars {
		b.Refresh()
	}
}

func (r *waveRenderer) Objects() []fyne.CanvasObject {
	objs := make([]fyne.CanvasObject, 0, len(r.bars)+2)
	objs = append(objs, r.bg, r.axis)
	for _, b := range r.bars {
		objs = append(objs, b)
	}
	return objs
}

func (r *waveRenderer) Destroy() {}
