// Package playback plays WAV files through the host output device, one
// session at a time.
package playback

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"earshot/audio"
	"earshot/log"
	"earshot/wav"
)

var ErrNotFound = fmt.Errorf("audio file not found: %w", fs.ErrNotExist)

type session struct {
	path string
	ctx  audio.Context
	dev  audio.PlaybackDevice
}

func (s *session) release() {
	s.dev.Close()
	s.ctx.Close()
}

// Player owns at most one active playback session.
type Player struct {
	open audio.Opener

	// OnFinish, if set, is called from a background goroutine when a
	// session plays to its end. It is not called for stopped sessions.
	OnFinish func(path string)

	mu  sync.Mutex
	cur *session
}

func NewPlayer(open audio.Opener) *Player {
	return &Player{open: open}
}

// Play stops any active session and starts playing path.
func (p *Player) Play(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return err
	}
	buf, err := wav.ReadFile(path)
	if err != nil {
		return err
	}

	ctx, err := p.open()
	if err != nil {
		return fmt.Errorf("%w: open audio subsystem: %v", audio.ErrDevice, err)
	}
	dev, err := ctx.NewPlayback(buf)
	if err != nil {
		ctx.Close()
		return fmt.Errorf("%w: open output stream: %v", audio.ErrDevice, err)
	}
	if err := dev.Start(); err != nil {
		dev.Close()
		ctx.Close()
		return fmt.Errorf("%w: start output stream: %v", audio.ErrDevice, err)
	}

	s := &session{path: path, ctx: ctx, dev: dev}
	p.cur = s
	log.Infof("playback started: %s (%s)", path, buf.Duration())
	go p.watch(s)
	return nil
}

func (p *Player) watch(s *session) {
	<-s.dev.Done()

	p.mu.Lock()
	finished := p.cur == s
	if finished {
		p.cur = nil
		s.release()
	}
	p.mu.Unlock()

	if finished {
		log.Infof("playback finished: %s", s.path)
		if p.OnFinish != nil {
			p.OnFinish(s.path)
		}
	}
}

// Stop ends the active session. It is a no-op when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	s := p.cur
	if s == nil {
		return
	}
	p.cur = nil
	s.dev.Stop()
	s.release()
	log.Infof("playback stopped: %s", s.path)
}

// Active reports the path of the session currently playing.
func (p *Player) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return "", false
	}
	return p.cur.path, true
}
