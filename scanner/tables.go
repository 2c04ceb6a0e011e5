package scanner

import (
	"otterly/combo"
	"otterly/keybus"
)

// Mod is a RegisterHotKey modifier mask. The bit values are the Win32
// MOD_* constants; other registrars translate from them.
type Mod uint32

const (
	ModAlt   Mod = 0x0001
	ModCtrl  Mod = 0x0002
	ModShift Mod = 0x0004
	ModWin   Mod = 0x0008
)

// Modifiers lists the set modifiers in combo priority order.
func (m Mod) Modifiers() []combo.Modifier {
	var out []combo.Modifier
	if m&ModCtrl != 0 {
		out = append(out, combo.Ctrl)
	}
	if m&ModAlt != 0 {
		out = append(out, combo.Alt)
	}
	if m&ModShift != 0 {
		out = append(out, combo.Shift)
	}
	if m&ModWin != 0 {
		out = append(out, combo.Win)
	}
	return out
}

type ModifierCombo struct {
	Mask  Mod
	Label string
}

// ModifierCombos is every subset of the four modifiers. The empty subset
// is listed for completeness; Scan skips it because bare keys produce too
// many false positives.
var ModifierCombos = []ModifierCombo{
	{0, ""},
	{ModAlt, "Alt"},
	{ModCtrl, "Ctrl"},
	{ModShift, "Shift"},
	{ModWin, "Win"},
	{ModAlt | ModCtrl, "Ctrl+Alt"},
	{ModAlt | ModShift, "Alt+Shift"},
	{ModCtrl | ModShift, "Ctrl+Shift"},
	{ModAlt | ModCtrl | ModShift, "Ctrl+Alt+Shift"},
	{ModWin | ModAlt, "Win+Alt"},
	{ModWin | ModCtrl, "Win+Ctrl"},
	{ModWin | ModShift, "Win+Shift"},
	{ModWin | ModAlt | ModCtrl, "Win+Ctrl+Alt"},
	{ModWin | ModAlt | ModShift, "Win+Alt+Shift"},
	{ModWin | ModCtrl | ModShift, "Win+Ctrl+Shift"},
	{ModWin | ModAlt | ModCtrl | ModShift, "Win+Ctrl+Alt+Shift"},
}

// Key is a key the scanner tries: its Windows virtual-key code and the key name
// capture produces for it ("Page Up", "Num 0", "Esc").
type Key struct {
	Name string
	VK   uint32
}

var Keys = buildKeys()

func buildKeys() []Key {
	var vks []uint32
	for c := uint32('A'); c <= 'Z'; c++ {
		vks = append(vks, c)
	}
	for d := uint32('0'); d <= '9'; d++ {
		vks = append(vks, d)
	}
	for f := uint32(0x70); f <= 0x87; f++ {
		vks = append(vks, f)
	}
	vks = append(vks,
		0x20, 0x0D, 0x09, 0x1B, 0x08, // space enter tab esc backspace
		0x2E, 0x2D, 0x24, 0x23, 0x21, 0x22,
		0x26, 0x28, 0x25, 0x27,
		0x2C, 0x13, 0x90, 0x91, 0x14,
	)
	for n := uint32(0x60); n <= 0x69; n++ {
		vks = append(vks, n)
	}
	vks = append(vks,
		0x6A, 0x6B, 0x6D, 0x6E, 0x6F,
		0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF, 0xC0,
		0xDB, 0xDC, 0xDD, 0xDE,
	)

	keys := make([]Key, 0, len(vks))
	for _, vk := range vks {
		keys = append(keys, Key{Name: combo.KeyName(keybus.VKName(vk)), VK: vk})
	}
	return keys
}

// ComboFor builds the canonical combination string for a scanned key, the same
// string capture records for those keys.
func ComboFor(m Mod, k Key) string {
	parts := make([]string, 0, 5)
	for _, mod := range m.Modifiers() {
		parts = append(parts, mod.String())
	}
	parts = append(parts, k.Name)
	c, err := combo.Normalize(parts)
	if err != nil {
		return k.Name
	}
	return c
}

// Label is the modifier table's spelling of a scanned combination, e.g. "Win+Ctrl+S".
func Label(mc ModifierCombo, k Key) string {
	if mc.Label == "" {
		return k.Name
	}
	return mc.Label + "+" + k.Name
}
