package clipboard

import "github.com/micmonay/keybd_event"

// Shift+Insert pastes in terminals as well as GUI toolkits.
func setPasteKeys(kb *keybd_event.KeyBonding) {
	kb.HasSHIFT(true)
	kb.SetKeys(keybd_event.VK_INSERT)
}
