package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/micmonay/keybd_event"

	"otterly/combo"
	"otterly/keybus"
)

var ErrUnknownKey = errors.New("key cannot be replayed")

// KeyReplayer presses a combination through keybd_event. Modifiers and
// keys go down and up in a single Launching call.
type KeyReplayer struct {
	once sync.Once
	mu   sync.Mutex
	kb   keybd_event.KeyBonding
	err  error
}

func NewKeyReplayer() *KeyReplayer {
	return &KeyReplayer{}
}

// Init creates the virtual keyboard. On Linux this opens uinput, which can
// take a moment to be picked up, so callers may run it at startup.
func (r *KeyReplayer) Init() error {
	r.once.Do(func() {
		r.kb, r.err = keybd_event.NewKeyBonding()
	})
	return r.err
}

func (r *KeyReplayer) Replay(c string) error {
	codes, p, err := Resolve(c)
	if err != nil {
		return err
	}
	if err := r.Init(); err != nil {
		return fmt.Errorf("virtual keyboard: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.kb.SetKeys(codes...)
	r.kb.HasCTRL(p.Has(combo.Ctrl))
	r.kb.HasALT(p.Has(combo.Alt))
	r.kb.HasSHIFT(p.Has(combo.Shift))
	r.kb.HasSuper(p.Has(combo.Win))
	return r.kb.Launching()
}

// Resolve maps the regular keys of c to keybd_event codes.
func Resolve(c string) ([]int, combo.Parsed, error) {
	p, err := combo.Parse(c)
	if err != nil {
		return nil, p, err
	}
	codes := make([]int, 0, len(p.Keys))
	for _, k := range p.Keys {
		code, ok := lookupKey(k)
		if !ok {
			return nil, p, fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
		codes = append(codes, code)
	}
	return codes, p, nil
}

func lookupKey(name string) (int, bool) {
	k := squash(name)
	if code, ok := commonKeys[k]; ok {
		return code, true
	}
	if vk, ok := vkByName[k]; ok {
		return platformCode(vk)
	}
	return 0, false
}

func squash(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ""))
}

// vkByName maps squashed key identifiers ("pageup", "num0", "=") to
// Windows virtual-key codes, the common currency of the per-OS tables.
var vkByName = func() map[string]uint32 {
	m := map[string]uint32{"return": 0x0D, "escape": 0x1B, "printscreen": 0x2C}
	for vk := uint32(0x08); vk <= 0xFE; vk++ {
		name := keybus.VKName(vk)
		if strings.HasPrefix(name, "vk ") || combo.IsModifier(name) {
			continue
		}
		m[squash(name)] = vk
	}
	return m
}()

var commonKeys = map[string]int{
	"a": keybd_event.VK_A, "b": keybd_event.VK_B, "c": keybd_event.VK_C,
	"d": keybd_event.VK_D, "e": keybd_event.VK_E, "f": keybd_event.VK_F,
	"g": keybd_event.VK_G, "h": keybd_event.VK_H, "i": keybd_event.VK_I,
	"j": keybd_event.VK_J, "k": keybd_event.VK_K, "l": keybd_event.VK_L,
	"m": keybd_event.VK_M, "n": keybd_event.VK_N, "o": keybd_event.VK_O,
	"p": keybd_event.VK_P, "q": keybd_event.VK_Q, "r": keybd_event.VK_R,
	"s": keybd_event.VK_S, "t": keybd_event.VK_T, "u": keybd_event.VK_U,
	"v": keybd_event.VK_V, "w": keybd_event.VK_W, "x": keybd_event.VK_X,
	"y": keybd_event.VK_Y, "z": keybd_event.VK_Z,

	"0": keybd_event.VK_0, "1": keybd_event.VK_1, "2": keybd_event.VK_2,
	"3": keybd_event.VK_3, "4": keybd_event.VK_4, "5": keybd_event.VK_5,
	"6": keybd_event.VK_6, "7": keybd_event.VK_7, "8": keybd_event.VK_8,
	"9": keybd_event.VK_9,

	"f1": keybd_event.VK_F1, "f2": keybd_event.VK_F2, "f3": keybd_event.VK_F3,
	"f4": keybd_event.VK_F4, "f5": keybd_event.VK_F5, "f6": keybd_event.VK_F6,
	"f7": keybd_event.VK_F7, "f8": keybd_event.VK_F8, "f9": keybd_event.VK_F9,
	"f10": keybd_event.VK_F10, "f11": keybd_event.VK_F11, "f12": keybd_event.VK_F12,
}
