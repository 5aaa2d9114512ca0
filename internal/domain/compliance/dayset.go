package compliance

import (
	"math/bits"

	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
)

// DaySet is a bitset of dates anchored at Origin. Dates before Origin or past
// the allocated range are never members.
type DaySet struct {
	Origin calendar.Date `json:"origin"`
	Words  []uint64      `json:"words"`
}

func NewDaySet(span calendar.Window) DaySet {
	return DaySet{
		Origin: span.From,
		Words:  make([]uint64, (span.Days()+63)/64),
	}
}

func (s *DaySet) offset(d calendar.Date) (int, bool) {
	off := int(d - s.Origin)
	if off < 0 || off >= len(s.Words)*64 {
		return 0, false
	}
	return off, true
}

func (s *DaySet) Add(d calendar.Date) {
	if off, ok := s.offset(d); ok {
		s.Words[off/64] |= 1 << uint(off%64)
	}
}

func (s DaySet) Has(d calendar.Date) bool {
	off, ok := s.offset(d)
	if !ok {
		return false
	}
	return s.Words[off/64]&(1<<uint(off%64)) != 0
}

// CountIn returns how many members fall inside w.
func (s DaySet) CountIn(w calendar.Window) int {
	lo := int(w.From - s.Origin)
	hi := int(w.To - s.Origin)
	if lo < 0 {
		lo = 0
	}
	if last := len(s.Words)*64 - 1; hi > last {
		hi = last
	}
	if lo > hi {
		return 0
	}
	n := 0
	for wi := lo / 64; wi <= hi/64; wi++ {
		word := s.Words[wi]
		if wi == lo/64 {
			word &= ^uint64(0) << uint(lo%64)
		}
		if wi == hi/64 {
			word &= ^uint64(0) >> uint(63-hi%64)
		}
		n += bits.OnesCount64(word)
	}
	return n
}

func (s DaySet) Len() int {
	n := 0
	for _, w := range s.Words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Dates lists members in ascending order.
func (s DaySet) Dates() []calendar.Date {
	out := make([]calendar.Date, 0, s.Len())
	for wi, word := range s.Words {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			out = append(out, s.Origin.AddDays(wi*64+b))
			word &= word - 1
		}
	}
	return out
}
