//go:build linux

package scanner

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/keybind"
)

// x11Registrar tests combinations with passive key grabs on the root window. The X
// server answers a grab someone else holds with BadAccess, synchronously
// for a checked request.
type x11Registrar struct {
	mu      sync.Mutex
	once    sync.Once
	xu      *xgbutil.XUtil
	connErr error
	active  map[int]x11Grab
}

type x11Grab struct {
	mods  uint16
	codes []xproto.Keycode
}

func NewRegistrar() Registrar {
	return &x11Registrar{active: make(map[int]x11Grab)}
}

func (r *x11Registrar) Available() error {
	if os.Getenv("DISPLAY") == "" {
		return errors.New("no X11 display (DISPLAY unset)")
	}
	return r.connect()
}

func (r *x11Registrar) connect() error {
	r.once.Do(func() {
		xu, err := xgbutil.NewConn()
		if err != nil {
			r.connErr = fmt.Errorf("connect to X11: %w", err)
			return
		}
		keybind.Initialize(xu)
		r.xu = xu
	})
	return r.connErr
}

func (r *x11Registrar) Register(id int, mods Mod, key Key) error {
	sym, ok := x11Keysyms[key.VK]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedKey, key.Name)
	}
	if err := r.connect(); err != nil {
		return err
	}
	codes := keybind.StrToKeycodes(r.xu, sym)
	if len(codes) == 0 {
		return fmt.Errorf("%w: %s has no keycode in this keymap", ErrUnsupportedKey, key.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[id]; busy {
		return fmt.Errorf("hotkey id %#x still registered", id)
	}

	g := x11Grab{mods: x11Mods(mods)}
	root := r.xu.RootWin()
	for _, code := range codes {
		err := xproto.GrabKeyChecked(r.xu.Conn(), false, root, g.mods, code,
			xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
		if err == nil {
			g.codes = append(g.codes, code)
			continue
		}
		r.ungrab(g)
		if _, taken := err.(xproto.AccessError); taken {
			return fmt.Errorf("%w: %v", ErrAlreadyRegistered, err)
		}
		return fmt.Errorf("grab %s: %w", key.Name, err)
	}
	r.active[id] = g
	return nil
}

func (r *x11Registrar) Unregister(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.active[id]
	if !ok {
		return fmt.Errorf("hotkey id %#x not registered", id)
	}
	if err := r.ungrab(g); err != nil {
		return err
	}
	delete(r.active, id)
	return nil
}

func (r *x11Registrar) ungrab(g x11Grab) error {
	var errs []error
	root := r.xu.RootWin()
	for _, code := range g.codes {
		if err := xproto.UngrabKeyChecked(r.xu.Conn(), code, root, g.mods).Check(); err != nil {
			errs = append(errs, fmt.Errorf("ungrab keycode %d: %w", code, err))
		}
	}
	return errors.Join(errs...)
}

func x11Mods(m Mod) uint16 {
	var mask uint16
	if m&ModCtrl != 0 {
		mask |= xproto.ModMaskControl
	}
	if m&ModAlt != 0 {
		mask |= xproto.ModMask1
	}
	if m&ModShift != 0 {
		mask |= xproto.ModMaskShift
	}
	if m&ModWin != 0 {
		mask |= xproto.ModMask4
	}
	return mask
}

// x11Keysyms maps virtual-key codes to keysym names understood by
// keybind.StrToKeycodes.
var x11Keysyms = func() map[uint32]string {
	m := map[uint32]string{
		0x20: "space", 0x0D: "Return", 0x09: "Tab", 0x1B: "Escape",
		0x08: "BackSpace", 0x2E: "Delete", 0x2D: "Insert",
		0x24: "Home", 0x23: "End", 0x21: "Prior", 0x22: "Next",
		0x26: "Up", 0x28: "Down", 0x25: "Left", 0x27: "Right",
		0x2C: "Print", 0x13: "Pause",
		0x90: "Num_Lock", 0x91: "Scroll_Lock", 0x14: "Caps_Lock",

		0x6A: "KP_Multiply", 0x6B: "KP_Add", 0x6D: "KP_Subtract",
		0x6E: "KP_Decimal", 0x6F: "KP_Divide",

		0xBA: "semicolon", 0xBB: "equal", 0xBC: "comma", 0xBD: "minus",
		0xBE: "period", 0xBF: "slash", 0xC0: "grave",
		0xDB: "bracketleft", 0xDC: "backslash", 0xDD: "bracketright",
		0xDE: "apostrophe",
	}
	for c := 'a'; c <= 'z'; c++ {
		m[uint32(c-'a'+'A')] = string(c)
	}
	for d := '0'; d <= '9'; d++ {
		m[uint32(d)] = string(d)
	}
	for f := 1; f <= 24; f++ {
		m[uint32(0x6F+f)] = fmt.Sprintf("F%d", f)
	}
	for n := 0; n <= 9; n++ {
		m[uint32(0x60+n)] = fmt.Sprintf("KP_%d", n)
	}
	return m
}()
