//go:build windows

package dispatch

// keybd_event sends codes above 0xFFF as virtual-key codes, offset by
// 0xFFF; anything lower is taken as a scan code.
const vkOffset = 0xFFF

func platformCode(vk uint32) (int, bool) {
	return int(vk) + vkOffset, true
}
