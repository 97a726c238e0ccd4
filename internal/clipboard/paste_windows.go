package clipboard

import "github.com/micmonay/keybd_event"

func setPasteKeys(kb *keybd_event.KeyBonding) {
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
}
