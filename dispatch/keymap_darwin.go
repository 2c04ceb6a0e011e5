//go:build darwin

package dispatch

// Named keys differ in keybd_event's macOS key set; only letters, digits
// and F1-F12 replay there.
func platformCode(vk uint32) (int, bool) { return 0, false }
