package keybus

import "fmt"

// Windows virtual-key codes mapped to the key identifiers used across the
// module. Left/right modifier forms stay distinct here.
var vkNames = map[uint32]string{
	0x08: "backspace",
	0x09: "tab",
	0x0C: "clear",
	0x0D: "enter",
	0x10: "shift",
	0x11: "ctrl",
	0x12: "alt",
	0x13: "pause",
	0x14: "caps lock",
	0x1B: "esc",
	0x20: "space",
	0x21: "page up",
	0x22: "page down",
	0x23: "end",
	0x24: "home",
	0x25: "left",
	0x26: "up",
	0x27: "right",
	0x28: "down",
	0x2C: "print screen",
	0x2D: "insert",
	0x2E: "delete",
	0x5B: "left windows",
	0x5C: "right windows",
	0x5D: "menu",
	0x60: "num 0",
	0x61: "num 1",
	0x62: "num 2",
	0x63: "num 3",
	0x64: "num 4",
	0x65: "num 5",
	0x66: "num 6",
	0x67: "num 7",
	0x68: "num 8",
	0x69: "num 9",
	0x6A: "num multiply",
	0x6B: "num add",
	0x6D: "num subtract",
	0x6E: "num decimal",
	0x6F: "num divide",
	0x90: "num lock",
	0x91: "scroll lock",
	0xA0: "left shift",
	0xA1: "right shift",
	0xA2: "left ctrl",
	0xA3: "right ctrl",
	0xA4: "left alt",
	0xA5: "right alt",
	0xBA: ";",
	0xBB: "=",
	0xBC: ",",
	0xBD: "-",
	0xBE: ".",
	0xBF: "/",
	0xC0: "`",
	0xDB: "[",
	0xDC: "\\",
	0xDD: "]",
	0xDE: "'",
}

// VKName returns the key identifier for a Windows virtual-key code.
func VKName(vk uint32) string {
	switch {
	case vk >= 'A' && vk <= 'Z':
		return string(rune(vk + 'a' - 'A'))
	case vk >= '0' && vk <= '9':
		return string(rune(vk))
	case vk >= 0x70 && vk <= 0x87:
		return fmt.Sprintf("f%d", vk-0x6F)
	}
	if name, ok := vkNames[vk]; ok {
		return name
	}
	return fmt.Sprintf("vk 0x%02x", vk)
}
