// Package scanner finds global hotkeys owned by other programs.
//
// It tries to register every modifier/key pair under a private ID and
// releases each registration immediately. A pair the OS refuses because it
// is already registered is taken.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync/atomic"
	"time"

	"otterly/log"
)

// ReservedID is the hotkey id used for test registrations. It sits at the top of the
// application range so it never collides with ids the launcher registers.
const ReservedID = 0xBFFE

var (
	// ErrAlreadyRegistered is returned by a Registrar when another
	// program owns the combination. For a scan it is data, not failure.
	ErrAlreadyRegistered = errors.New("hotkey already registered")
	// ErrUnsupportedKey means the registrar cannot express the key.
	ErrUnsupportedKey          = errors.New("key not supported by registrar")
	ErrRegistrationUnavailable = errors.New("hotkey registration unavailable")
	ErrScanInProgress          = errors.New("hotkey scan already in progress")
)

// Registrar is the OS global-hotkey API.
type Registrar interface {
	// Available reports whether registration can work at all.
	Available() error
	Register(id int, mods Mod, key Key) error
	Unregister(id int) error
}

type Taken struct {
	Modifier string
	Key      string
	Label    string
	Combo    string
}

type Skipped struct {
	Combo string
	Err   error
}

type Stats struct {
	Attempted int
	// Released counts registrations that succeeded, i.e. free combinations.
	Released int
	Taken    int
	Skipped  int
	// Leaked counts free combinations whose registration could not be released.
	Leaked  int
	Elapsed time.Duration
}

type Report struct {
	Taken        []Taken
	Skipped      []Skipped
	LeakedCombos []string
	Stats        Stats
}

// Group is the taken keys for one modifier label.
type Group struct {
	Modifier string
	Keys     []string
}

// ByModifier groups taken combinations by modifier label, both sorted.
func (r *Report) ByModifier() []Group {
	idx := map[string]int{}
	var groups []Group
	for _, t := range r.Taken {
		i, ok := idx[t.Modifier]
		if !ok {
			i = len(groups)
			idx[t.Modifier] = i
			groups = append(groups, Group{Modifier: t.Modifier})
		}
		groups[i].Keys = append(groups[i].Keys, t.Key)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Modifier < groups[b].Modifier })
	for i := range groups {
		sort.Strings(groups[i].Keys)
	}
	return groups
}

// Combos returns the taken combinations in scan order.
func (r *Report) Combos() []string {
	out := make([]string, len(r.Taken))
	for i, t := range r.Taken {
		out[i] = t.Combo
	}
	return out
}

type Scanner struct {
	reg Registrar
	// Progress, when set, is called after every combination from the scanning
	// goroutine.
	Progress func(done, total int)

	running atomic.Bool
}

func New(reg Registrar) *Scanner {
	return &Scanner{reg: reg}
}

// Total is the number of registrations a full scan attempts.
func Total() int {
	return (len(ModifierCombos) - 1) * len(Keys)
}

// Scan tries every combination. It fails without a partial result if
// registration is unavailable or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer s.running.Store(false)

	if err := s.reg.Available(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationUnavailable, err)
	}

	start := time.Now()
	total := Total()
	rep := &Report{}
	done := 0
	for _, mc := range ModifierCombos {
		if mc.Mask == 0 {
			continue
		}
		for _, k := range Keys {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s.try(rep, mc, k)
			done++
			if s.Progress != nil {
				s.Progress(done, total)
			}
		}
	}
	rep.Stats.Elapsed = time.Since(start)

	log.ScanComplete(log.ScanStats{
		Attempted: rep.Stats.Attempted,
		Released:  rep.Stats.Released,
		Taken:     rep.Stats.Taken,
		Skipped:   rep.Stats.Skipped,
		Leaked:    rep.Stats.Leaked,
		Elapsed:   rep.Stats.Elapsed,
	})
	return rep, nil
}

func (s *Scanner) try(rep *Report, mc ModifierCombo, k Key) {
	c := ComboFor(mc.Mask, k)
	rep.Stats.Attempted++

	err := s.register(mc.Mask, k)
	switch {
	case err == nil:
		rep.Stats.Released++
		if uerr := s.release(); uerr != nil {
			log.Warnf("scan: release %s failed: %v", c, uerr)
			rep.Stats.Leaked++
			rep.LeakedCombos = append(rep.LeakedCombos, c)
		}
	case errors.Is(err, ErrAlreadyRegistered):
		rep.Stats.Taken++
		rep.Taken = append(rep.Taken, Taken{
			Modifier: mc.Label,
			Key:      k.Name,
			Label:    Label(mc, k),
			Combo:    c,
		})
	default:
		rep.Stats.Skipped++
		rep.Skipped = append(rep.Skipped, Skipped{Combo: c, Err: err})
	}
}

func (s *Scanner) register(m Mod, k Key) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("scan: register panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("register panicked: %v", r)
		}
	}()
	return s.reg.Register(ReservedID, m, k)
}

func (s *Scanner) release() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unregister panicked: %v", r)
		}
	}()
	return s.reg.Unregister(ReservedID)
}
