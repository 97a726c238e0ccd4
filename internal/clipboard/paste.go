package clipboard

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// KeyboardPaster sends the platform paste shortcut through a virtual
// keyboard.
type KeyboardPaster struct {
	once sync.Once
	kb   keybd_event.KeyBonding
	err  error
}

func NewKeyboardPaster() *KeyboardPaster {
	return &KeyboardPaster{}
}

func (p *KeyboardPaster) Paste() error {
	p.once.Do(func() {
		p.kb, p.err = keybd_event.NewKeyBonding()
		if p.err != nil {
			return
		}
		// The uinput device needs a moment before the desktop accepts events.
		if runtime.GOOS == "linux" {
			time.Sleep(2 * time.Second)
		}
		setPasteKeys(&p.kb)
	})
	if p.err != nil {
		return fmt.Errorf("create virtual keyboard: %w", p.err)
	}
	return p.kb.Launching()
}
