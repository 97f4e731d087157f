package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/eiannone/keyboard"
)

// Hotkey identifies either a special key or a printable character.
type Hotkey struct {
	Key  keyboard.Key
	Rune rune
}

var namedKeys = map[string]keyboard.Key{
	"space":  keyboard.KeySpace,
	"enter":  keyboard.KeyEnter,
	"tab":    keyboard.KeyTab,
	"insert": keyboard.KeyInsert,
	"delete": keyboard.KeyDelete,
	"home":   keyboard.KeyHome,
	"end":    keyboard.KeyEnd,
	"pgup":   keyboard.KeyPgup,
	"pgdn":   keyboard.KeyPgdn,
	"f1":     keyboard.KeyF1,
	"f2":     keyboard.KeyF2,
	"f3":     keyboard.KeyF3,
	"f4":     keyboard.KeyF4,
	"f5":     keyboard.KeyF5,
	"f6":     keyboard.KeyF6,
	"f7":     keyboard.KeyF7,
	"f8":     keyboard.KeyF8,
	"f9":     keyboard.KeyF9,
	"f10":    keyboard.KeyF10,
	"f11":    keyboard.KeyF11,
	"f12":    keyboard.KeyF12,
}

// ParseHotkey resolves a configured key name such as "space", "F9" or "v".
func ParseHotkey(name string) (Hotkey, error) {
	if k, ok := namedKeys[strings.ToLower(name)]; ok {
		return Hotkey{Key: k}, nil
	}
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		return Hotkey{Rune: r}, nil
	}
	return Hotkey{}, fmt.Errorf("unknown hotkey %q", name)
}

// Matches reports whether ev is a press of h.
func (h Hotkey) Matches(ev keyboard.KeyEvent) bool {
	if h.Rune != 0 {
		return ev.Rune == h.Rune
	}
	return ev.Rune == 0 && ev.Key == h.Key
}

// KeyListener forwards hotkey presses from the terminal to an [Arbiter].
type KeyListener struct {
	arbiter *Arbiter
	hotkey  Hotkey

	// onInterrupt runs on Ctrl+C, which raw terminal mode delivers as a key.
	onInterrupt func()
}

// NewKeyListener listens for hotkey and calls onInterrupt on Ctrl+C.
func NewKeyListener(arbiter *Arbiter, hotkey Hotkey, onInterrupt func()) *KeyListener {
	return &KeyListener{arbiter: arbiter, hotkey: hotkey, onInterrupt: onInterrupt}
}

// Run puts the terminal in raw mode and handles key events until ctx is
// cancelled.
func (l *KeyListener) Run(ctx context.Context) error {
	events, err := keyboard.GetKeys(16)
	if err != nil {
		return fmt.Errorf("failed to open keyboard: %w", err)
	}
	defer keyboard.Close()

	slog.Info("Hotkey listener started", "key", l.hotkey)
	return l.listen(ctx, events)
}

func (l *KeyListener) listen(ctx context.Context, events <-chan keyboard.KeyEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Err != nil {
				return fmt.Errorf("keyboard read failed: %w", ev.Err)
			}
			if ev.Key == keyboard.KeyCtrlC {
				if l.onInterrupt != nil {
					l.onInterrupt()
				}
				return nil
			}
			if l.hotkey.Matches(ev) {
				l.arbiter.KeyPressed()
			}
		}
	}
}
