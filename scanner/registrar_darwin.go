//go:build darwin

package scanner

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"
)

// hotkeyRegistrar tests combinations through golang.design/x/hotkey. Carbon reports a
// refused registration as a plain error, which is the only failure left
// once Available has passed, so register errors are treated as taken.
type hotkeyRegistrar struct {
	mu     sync.Mutex
	active map[int]*hotkey.Hotkey
}

func NewRegistrar() Registrar {
	return &hotkeyRegistrar{active: make(map[int]*hotkey.Hotkey)}
}

func (r *hotkeyRegistrar) Available() error { return nil }

func (r *hotkeyRegistrar) Register(id int, mods Mod, key Key) error {
	k, ok := hotkeyKeys[key.VK]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedKey, key.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[id]; busy {
		return fmt.Errorf("hotkey id %#x still registered", id)
	}
	hk := hotkey.New(darwinMods(mods), k)
	var err error
	onMain(func() { err = hk.Register() })
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAlreadyRegistered, err)
	}
	r.active[id] = hk
	return nil
}

func (r *hotkeyRegistrar) Unregister(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	hk, ok := r.active[id]
	if !ok {
		return fmt.Errorf("hotkey id %#x not registered", id)
	}
	var err error
	onMain(func() { err = hk.Unregister() })
	if err != nil {
		return err
	}
	delete(r.active, id)
	return nil
}

func darwinMods(m Mod) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if m&ModCtrl != 0 {
		mods = append(mods, hotkey.ModCtrl)
	}
	if m&ModAlt != 0 {
		mods = append(mods, hotkey.ModOption)
	}
	if m&ModShift != 0 {
		mods = append(mods, hotkey.ModShift)
	}
	if m&ModWin != 0 {
		mods = append(mods, hotkey.ModCmd)
	}
	return mods
}

// Carbon hotkey calls must run on the main thread.
func onMain(fn func()) { mainthread.Call(fn) }

// hotkeyKeys maps virtual-key codes to the keys x/hotkey can express.
var hotkeyKeys = func() map[uint32]hotkey.Key {
	m := map[uint32]hotkey.Key{
		0x20: hotkey.KeySpace,
		0x0D: hotkey.KeyReturn,
		0x09: hotkey.KeyTab,
		0x1B: hotkey.KeyEscape,
		0x2E: hotkey.KeyDelete,
		0x26: hotkey.KeyUp,
		0x28: hotkey.KeyDown,
		0x25: hotkey.KeyLeft,
		0x27: hotkey.KeyRight,
	}
	letters := []hotkey.Key{
		hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE,
		hotkey.KeyF, hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ,
		hotkey.KeyK, hotkey.KeyL, hotkey.KeyM, hotkey.KeyN, hotkey.KeyO,
		hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR, hotkey.KeyS, hotkey.KeyT,
		hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX, hotkey.KeyY,
		hotkey.KeyZ,
	}
	for i, k := range letters {
		m[uint32('A'+i)] = k
	}
	digits := []hotkey.Key{
		hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
		hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
	}
	for i, k := range digits {
		m[uint32('0'+i)] = k
	}
	fkeys := []hotkey.Key{
		hotkey.KeyF1, hotkey.KeyF2, hotkey.KeyF3, hotkey.KeyF4,
		hotkey.KeyF5, hotkey.KeyF6, hotkey.KeyF7, hotkey.KeyF8,
		hotkey.KeyF9, hotkey.KeyF10, hotkey.KeyF11, hotkey.KeyF12,
	}
	for i, k := range fkeys {
		m[uint32(0x70+i)] = k
	}
	return m
}()
