//go:build !darwin

package dispatch

import (
	"testing"

	"otterly/combo"
	"otterly/keybus"
)

func TestResolveCapturedKeys(t *testing.T) {
	for _, c := range []string{
		"Ctrl+=", "Ctrl+-", "Win+.", "Ctrl+Shift+/", "Ctrl+;", "Alt+,",
		"Ctrl+[", "Ctrl+]", `Ctrl+\`, "Ctrl+'", "Ctrl+`",
		"Ctrl+Num 0", "Alt+Num Add", "Ctrl+Num Divide",
		"Alt+Print Screen", "Ctrl+Pause", "Shift+Num Lock", "Ctrl+Scroll Lock",
		"Ctrl+F13", "Ctrl+F24", "Ctrl+Page Up", "Win+Esc",
	} {
		if _, _, err := Resolve(c); err != nil {
			t.Errorf("Resolve(%q) = %v", c, err)
		}
	}
}

// Every key the Windows hook can name, apart from modifiers, must replay.
func TestResolveEveryVKName(t *testing.T) {
	for vk := uint32(0x08); vk <= 0xFE; vk++ {
		name := keybus.VKName(vk)
		if name == "clear" || name == "menu" || combo.IsModifier(name) || len(name) > 3 && name[:3] == "vk " {
			continue
		}
		c, err := combo.Normalize([]string{"ctrl", name})
		if err != nil {
			t.Fatal(err)
		}
		codes, _, err := Resolve(c)
		if err != nil {
			t.Errorf("VK %#x %q: %v", vk, c, err)
			continue
		}
		if len(codes) != 1 {
			t.Errorf("VK %#x %q resolved to %v", vk, c, codes)
		}
	}
}

func TestResolveDistinctCodes(t *testing.T) {
	seen := map[int]string{}
	for _, name := range []string{"=", "-", ".", "/", "num 0", "num 1", "0", "1", "print screen", "pause", "f13", "f24"} {
		codes, _, err := Resolve("Ctrl+" + combo.KeyName(name))
		if err != nil {
			t.Fatal(err)
		}
		if prev, dup := seen[codes[0]]; dup {
			t.Errorf("%q and %q share code %d", prev, name, codes[0])
		}
		seen[codes[0]] = name
	}
}
