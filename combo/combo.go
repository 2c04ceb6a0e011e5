// Package combo turns sets of held keys into canonical combination strings.
package combo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Separator joins the parts of a ComboString.
const Separator = "+"

var ErrEmptyCombo = errors.New("combo: no keys")

// Modifier is a modifier key bucket. The numeric order is the canonical
// output order.
type Modifier int

const (
	Ctrl Modifier = iota
	Alt
	Shift
	Win
)

var modifierNames = [...]string{"Ctrl", "Alt", "Shift", "Win"}

func (m Modifier) String() string {
	if m < Ctrl || m > Win {
		return fmt.Sprintf("Modifier(%d)", int(m))
	}
	return modifierNames[m]
}

// Modifiers lists every modifier in canonical order.
var Modifiers = []Modifier{Ctrl, Alt, Shift, Win}

// modifierTable is keyed by lower-cased key identifier. Left/right forms
// are kept distinct by the hook layer and collapse here.
var modifierTable = map[string]Modifier{
	"ctrl":          Ctrl,
	"control":       Ctrl,
	"left ctrl":     Ctrl,
	"right ctrl":    Ctrl,
	"left control":  Ctrl,
	"right control": Ctrl,
	"lctrl":         Ctrl,
	"rctrl":         Ctrl,

	"alt":       Alt,
	"left alt":  Alt,
	"right alt": Alt,
	"lalt":      Alt,
	"ralt":      Alt,
	"alt gr":    Alt,
	"altgr":     Alt,
	"option":    Alt,

	"shift":       Shift,
	"left shift":  Shift,
	"right shift": Shift,
	"lshift":      Shift,
	"rshift":      Shift,

	"win":           Win,
	"windows":       Win,
	"left windows":  Win,
	"right windows": Win,
	"left win":      Win,
	"right win":     Win,
	"lwin":          Win,
	"rwin":          Win,
	"cmd":           Win,
	"command":       Win,
	"super":         Win,
	"meta":          Win,
}

// CanonicalModifier reports which modifier bucket key belongs to.
func CanonicalModifier(key string) (Modifier, bool) {
	m, ok := modifierTable[strings.ToLower(strings.TrimSpace(key))]
	return m, ok
}

// IsModifier reports whether key is any form of Ctrl, Alt, Shift or Win.
func IsModifier(key string) bool {
	_, ok := CanonicalModifier(key)
	return ok
}

// SameKey reports whether two key identifiers name the same logical key,
// treating left/right modifier variants as equal.
func SameKey(a, b string) bool {
	ma, okA := CanonicalModifier(a)
	mb, okB := CanonicalModifier(b)
	if okA || okB {
		return okA && okB && ma == mb
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// KeyName normalizes a regular (non-modifier) key name: single characters
// are upper-cased, longer names are title-cased word by word.
func KeyName(key string) string {
	key = strings.TrimSpace(key)
	if utf8.RuneCountInString(key) == 1 {
		return strings.ToUpper(key)
	}
	words := strings.Fields(key)
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

// titleWord capitalizes each letter that follows a non-letter, lowering
// the rest ("f12" -> "F12", "pgup" -> "Pgup").
func titleWord(w string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range w {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// Normalize builds the canonical ComboString for a set of key identifiers.
// Input order and duplicates do not affect the result.
func Normalize(keys []string) (string, error) {
	var mods [len(modifierNames)]bool
	regular := make(map[string]struct{}, len(keys))

	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			if k == "" {
				continue
			}
			// A literal space key.
			regular["Space"] = struct{}{}
			continue
		}
		if m, ok := CanonicalModifier(k); ok {
			mods[m] = true
			continue
		}
		regular[KeyName(k)] = struct{}{}
	}

	parts := make([]string, 0, len(keys))
	for _, m := range Modifiers {
		if mods[m] {
			parts = append(parts, m.String())
		}
	}
	names := make([]string, 0, len(regular))
	for n := range regular {
		names = append(names, n)
	}
	sort.Strings(names)
	parts = append(parts, names...)

	if len(parts) == 0 {
		return "", ErrEmptyCombo
	}
	return strings.Join(parts, Separator), nil
}

// NormalizeSet is Normalize for a set representation.
func NormalizeSet(keys map[string]struct{}) (string, error) {
	list := make([]string, 0, len(keys))
	for k := range keys {
		list = append(list, k)
	}
	return Normalize(list)
}

// Split breaks a ComboString into its parts. A literal "+" key is
// recognized where a part would otherwise be empty ("Ctrl++").
func Split(s string) []string {
	var parts []string
	i := 0
	for i < len(s) {
		if s[i] == '+' {
			parts = append(parts, Separator)
			i++
		} else {
			j := strings.IndexByte(s[i:], '+')
			if j < 0 {
				parts = append(parts, strings.TrimSpace(s[i:]))
				break
			}
			parts = append(parts, strings.TrimSpace(s[i:i+j]))
			i += j
		}
		// skip the separator following a part
		if i < len(s) && s[i] == '+' {
			i++
		}
	}
	return parts
}

// Parsed is a ComboString broken into modifiers and regular keys.
type Parsed struct {
	Modifiers []Modifier
	Keys      []string
}

// Has reports whether m is part of the combination.
func (p Parsed) Has(m Modifier) bool {
	for _, x := range p.Modifiers {
		if x == m {
			return true
		}
	}
	return false
}

// String re-joins the combination in canonical form.
func (p Parsed) String() string {
	parts := make([]string, 0, len(p.Modifiers)+len(p.Keys))
	for _, m := range p.Modifiers {
		parts = append(parts, m.String())
	}
	parts = append(parts, p.Keys...)
	return strings.Join(parts, Separator)
}

// Parse canonicalizes s and splits it into modifier and key buckets.
func Parse(s string) (Parsed, error) {
	norm, err := Normalize(Split(s))
	if err != nil {
		return Parsed{}, fmt.Errorf("parse %q: %w", s, err)
	}
	var p Parsed
	for _, part := range Split(norm) {
		if m, ok := CanonicalModifier(part); ok {
			p.Modifiers = append(p.Modifiers, m)
			continue
		}
		p.Keys = append(p.Keys, part)
	}
	return p, nil
}
