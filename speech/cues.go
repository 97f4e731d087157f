package speech

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/bosley/hark/audio"
	"github.com/bosley/hark/config"
)

// Cue is a short feedback sound.
type Cue int

const (
	CueSpeechOn Cue = iota
	CueSpeechOff
	CueMisrecognition
)

var cueFiles = map[Cue]string{
	CueSpeechOn:       "speech_on.wav",
	CueSpeechOff:      "speech_off.wav",
	CueMisrecognition: "speech_mis.wav",
}

// Cues plays feedback sounds without blocking the caller.
type Cues struct {
	player Player
	live   *config.Live
	clips  map[Cue]audio.Clip
	wg     sync.WaitGroup
}

// LoadCues decodes the cue files in dir. Missing files disable their cue.
func LoadCues(dir string, player Player, live *config.Live) (*Cues, error) {
	c := &Cues{player: player, live: live, clips: make(map[Cue]audio.Clip)}
	for cue, name := range cueFiles {
		path := filepath.Join(dir, name)
		clip, err := audio.LoadWAV(path)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Sound cue missing, disabling it", "path", path)
			continue
		}
		if err != nil {
			return nil, err
		}
		c.clips[cue] = clip
	}
	return c, nil
}

// NewCues builds a cue set from already decoded clips.
func NewCues(player Player, live *config.Live, clips map[Cue]audio.Clip) *Cues {
	return &Cues{player: player, live: live, clips: clips}
}

// Play starts cue on its own goroutine when sound feedback is enabled.
func (c *Cues) Play(cue Cue) {
	if c == nil || !c.live.Load().Listen.SoundFeedback {
		return
	}
	clip, ok := c.clips[cue]
	if !ok {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.player.Play(context.Background(), clip, nil); err != nil {
			slog.Warn("Failed to play sound cue", "cue", cueFiles[cue], "error", err)
		}
	}()
}

// Wait blocks until every started cue has finished.
func (c *Cues) Wait() {
	c.wg.Wait()
}
