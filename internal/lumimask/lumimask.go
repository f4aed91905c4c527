// Package lumimask implements the certified-lumi whitelist: the set of
// (run, luminosity block) pairs approved for analysis.
//
// A Set is built once from a certification document and is read-only
// afterwards, so IsCertified may be called from any number of goroutines
// without locking.
package lumimask

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// Set is a certified-lumi whitelist. Ranges within a run are sorted and disjoint.
type Set struct {
	runs   []uint32
	ranges map[uint32][]job.LumiRange
}

// New builds a Set from per-run ranges. Ranges may arrive in any order;
// overlapping or adjacent ranges are merged. A range with First > Last,
// a zero run number or a zero lumi is rejected.
func New(runs map[uint32][]job.LumiRange) (*Set, error) {
	s := &Set{
		runs:   make([]uint32, 0, len(runs)),
		ranges: make(map[uint32][]job.LumiRange, len(runs)),
	}

	for run := range runs {
		s.runs = append(s.runs, run)
	}
	sort.Slice(s.runs, func(i, j int) bool { return s.runs[i] < s.runs[j] })

	for _, run := range s.runs {
		entry := runEntry(run)
		if run == 0 {
			return nil, errhandling.NewConfigFormatError("", entry, "run number must be positive", nil)
		}
		in := runs[run]
		if len(in) == 0 {
			return nil, errhandling.NewConfigFormatError("", entry, "run has no lumi ranges", nil)
		}
		for _, r := range in {
			if r.First == 0 {
				return nil, errhandling.NewConfigFormatError("", entry, "lumi numbers start at 1", nil)
			}
			if r.First > r.Last {
				return nil, errhandling.NewConfigFormatError("", entry,
					fmt.Sprintf("firstLumi %d is greater than lastLumi %d", r.First, r.Last), nil)
			}
		}
		merged := compact(in)
		if len(merged) != len(in) {
			logger.Debug("merged overlapping lumi ranges",
				slog.Uint64("run", uint64(run)),
				slog.Int("ranges_in", len(in)),
				slog.Int("ranges_out", len(merged)),
			)
		}
		s.ranges[run] = merged
	}

	return s, nil
}

// compact sorts ranges and merges those that overlap or touch.
func compact(in []job.LumiRange) []job.LumiRange {
	sorted := append([]job.LumiRange(nil), in...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].First != sorted[j].First {
			return sorted[i].First < sorted[j].First
		}
		return sorted[i].Last < sorted[j].Last
	})

	out := sorted[:1]
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		// uint64 avoids overflow when Last is MaxUint32.
		if uint64(r.First) <= uint64(last.Last)+1 {
			if r.Last > last.Last {
				last.Last = r.Last
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// IsCertified reports whether lumi of run lies inside a certified range.
// Unknown runs are never certified.
func (s *Set) IsCertified(run, lumi uint32) bool {
	rs := s.ranges[run]
	i := sort.Search(len(rs), func(i int) bool { return rs[i].Last >= lumi })
	return i < len(rs) && rs[i].First <= lumi
}

// Contains is IsCertified for an EventLumiKey.
func (s *Set) Contains(key job.EventLumiKey) bool {
	return s.IsCertified(key.Run, key.Lumi)
}

// Runs returns the certified run numbers in ascending order.
func (s *Set) Runs() []uint32 {
	return append([]uint32(nil), s.runs...)
}

// Ranges returns a copy of the certified ranges of run, nil if the run is unknown.
func (s *Set) Ranges(run uint32) []job.LumiRange {
	rs, ok := s.ranges[run]
	if !ok {
		return nil
	}
	return append([]job.LumiRange(nil), rs...)
}

// NumRuns returns how many runs have certified ranges.
func (s *Set) NumRuns() int {
	return len(s.runs)
}

// NumRanges returns the total number of disjoint ranges.
func (s *Set) NumRanges() int {
	n := 0
	for _, rs := range s.ranges {
		n += len(rs)
	}
	return n
}

// NumLumis returns the total number of certified luminosity blocks.
func (s *Set) NumLumis() int {
	n := 0
	for _, rs := range s.ranges {
		for _, r := range rs {
			n += r.Len()
		}
	}
	return n
}

// Equal reports whether both sets certify exactly the same lumis.
func (s *Set) Equal(other *Set) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.runs) != len(other.runs) {
		return false
	}
	for i, run := range s.runs {
		if other.runs[i] != run {
			return false
		}
		a, b := s.ranges[run], other.ranges[run]
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

// CMSSWStrings renders the set in the host's luminosity-block-range form,
// one "run:first-run:last" string per range, ordered by run then lumi.
func (s *Set) CMSSWStrings() []string {
	out := make([]string, 0, s.NumRanges())
	for _, run := range s.runs {
		for _, r := range s.ranges[run] {
			out = append(out, fmt.Sprintf("%d:%d-%d:%d", run, r.First, run, r.Last))
		}
	}
	return out
}

// ParseCMSSWStrings parses "run:first-run:last" or "run:lumi" strings back into a Set.
// Ranges spanning two runs are rejected.
func ParseCMSSWStrings(items []string) (*Set, error) {
	runs := make(map[uint32][]job.LumiRange)
	for i, item := range items {
		entry := fmt.Sprintf("item %d", i+1)
		item = strings.TrimSpace(item)

		startStr, endStr, isRange := strings.Cut(item, "-")
		run, first, err := parseRunLumi(startStr)
		if err != nil {
			return nil, errhandling.NewConfigFormatError("", entry, fmt.Sprintf("%q: %v", item, err), err)
		}
		last := first
		if isRange {
			endRun, endLumi, err := parseRunLumi(endStr)
			if err != nil {
				return nil, errhandling.NewConfigFormatError("", entry, fmt.Sprintf("%q: %v", item, err), err)
			}
			if endRun != run {
				return nil, errhandling.NewConfigFormatError("", entry,
					fmt.Sprintf("%q spans runs %d and %d", item, run, endRun), nil)
			}
			last = endLumi
		}
		runs[run] = append(runs[run], job.LumiRange{First: first, Last: last})
	}
	if len(runs) == 0 {
		return nil, errhandling.NewConfigFormatError("", "", "no lumi ranges given", nil)
	}
	return New(runs)
}

func parseRunLumi(s string) (run, lumi uint32, err error) {
	runStr, lumiStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected run:lumi")
	}
	r, err := strconv.ParseUint(runStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid run %q", runStr)
	}
	l, err := strconv.ParseUint(lumiStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lumi %q", lumiStr)
	}
	return uint32(r), uint32(l), nil
}

// MarshalJSON renders the canonical certification document: runs in numeric
// order, each with its sorted, merged ranges.
func (s *Set) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, run := range s.runs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(`"`)
		sb.WriteString(strconv.FormatUint(uint64(run), 10))
		sb.WriteString(`": [`)
		for j, r := range s.ranges[run] {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "[%d, %d]", r.First, r.Last)
		}
		sb.WriteByte(']')
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}

func runEntry(run uint32) string {
	return "run " + strconv.FormatUint(uint64(run), 10)
}
