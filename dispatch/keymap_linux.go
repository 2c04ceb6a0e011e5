//go:build linux

package dispatch

// keybd_event writes Linux input event codes (linux/input-event-codes.h)
// to uinput unchanged.
var evdevCodes = map[uint32]int{
	0x08: 14,  // backspace
	0x09: 15,  // tab
	0x0D: 28,  // enter
	0x13: 119, // pause
	0x14: 58,  // caps lock
	0x1B: 1,   // esc
	0x20: 57,  // space
	0x21: 104, // page up
	0x22: 109, // page down
	0x23: 107, // end
	0x24: 102, // home
	0x25: 105, // left
	0x26: 103, // up
	0x27: 106, // right
	0x28: 108, // down
	0x2C: 99,  // print screen (sysrq)
	0x2D: 110, // insert
	0x2E: 111, // delete
	0x5D: 127, // menu (compose)

	0x60: 82, 0x61: 79, 0x62: 80, 0x63: 81, 0x64: 75,
	0x65: 76, 0x66: 77, 0x67: 71, 0x68: 72, 0x69: 73,
	0x6A: 55, // num multiply
	0x6B: 78, // num add
	0x6D: 74, // num subtract
	0x6E: 83, // num decimal
	0x6F: 98, // num divide

	0x90: 69, // num lock
	0x91: 70, // scroll lock

	0xBA: 39, // ;
	0xBB: 13, // =
	0xBC: 51, // ,
	0xBD: 12, // -
	0xBE: 52, // .
	0xBF: 53, // /
	0xC0: 41, // `
	0xDB: 26, // [
	0xDC: 43, // \
	0xDD: 27, // ]
	0xDE: 40, // '
}

func platformCode(vk uint32) (int, bool) {
	if vk >= 0x7C && vk <= 0x87 {
		// F13-F24
		return int(vk-0x7C) + 183, true
	}
	code, ok := evdevCodes[vk]
	return code, ok
}
