// Package coverage processes coverage-level snapshots and classifies critical items.
package coverage

import (
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/normalization"
	"stock-movement-lab/internal/table"
)

// Snapshot is a processed coverage table.
type Snapshot struct {
	Records []*domain.CoverageRecord

	// Column presence; groupings over an absent column are empty.
	HasMaterial bool
	HasLine     bool
	HasArea     bool
}

// Process validates and parses a coverage table. Only the coverage level column
// is required; a *table.ValidationError is returned when it is absent.
// now sets the processing date of every record.
func Process(t *table.Table, now time.Time) (*Snapshot, error) {
	if err := table.Validate(t, domain.CoverageColumns); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		HasMaterial: t.HasColumn(domain.ColMaterial),
		HasLine:     t.HasColumn(domain.ColCoverageLine),
		HasArea:     t.HasColumn(domain.ColCoverageArea),
	}
	day := domain.DateOf(now)

	for i := range t.Rows {
		cell := func(col string) string { return strings.TrimSpace(t.Value(i, col)) }
		rec := &domain.CoverageRecord{
			MaterialID:     cell(domain.ColMaterial),
			CoverageLevel:  cell(domain.ColCoverageLevel),
			Balance:        parseOptional(cell(domain.ColBalance)),
			Requirement:    parseOptional(cell(domain.ColRequirement)),
			ProjectID:      cell(domain.ColCoverageLine),
			Area:           cell(domain.ColCoverageArea),
			ProcessingDate: day,
		}
		if ts, ok := normalization.ParseTimestamp(cell(domain.ColChangedAt)); ok {
			rec.ChangedAt = ts
		}
		rec.CoveragePercentage = Percentage(rec.Balance, rec.Requirement)
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

// Percentage returns balance/requirement*100, or nil when either is missing
// or the requirement is zero.
func Percentage(balance, requirement *float64) *float64 {
	if balance == nil || requirement == nil || *requirement == 0 {
		return nil
	}
	v := *balance / *requirement * 100
	return &v
}

func parseOptional(s string) *float64 {
	v, ok := normalization.ParseQuantity(s)
	if !ok {
		return nil
	}
	return &v
}

// Count is a labelled count.
type Count struct {
	Name  string
	Count int
}

// Summary is the critical-item summary of a snapshot.
type Summary struct {
	TotalItems       int
	TotalCritical    int
	CriticalPercent  float64 // TotalCritical / TotalItems * 100
	CriticalByLine   []Count // desc by count, ties by name
	CriticalByArea   []Count // desc by count, ties by name
	HistoryCritical  int     // critical count without the low-level exclusion
	ClassificationOK bool    // HistoryCritical == TotalCritical
}

// Summarize computes the critical summary using the low-excluding classification.
// HistoryCritical is computed alongside with the non-excluding one.
func Summarize(snap *Snapshot, c Classifier) Summary {
	var s Summary
	if snap == nil {
		s.ClassificationOK = true
		return s
	}
	byLine := make(map[string]int)
	byArea := make(map[string]int)
	for _, r := range snap.Records {
		if c.IsCritical(r.CoverageLevel) {
			s.HistoryCritical++
		}
		if !c.IsCriticalSummary(r.CoverageLevel) {
			continue
		}
		s.TotalCritical++
		if snap.HasLine && r.ProjectID != "" {
			byLine[r.ProjectID]++
		}
		if snap.HasArea && r.Area != "" {
			byArea[r.Area]++
		}
	}
	s.TotalItems = len(snap.Records)
	s.CriticalPercent = domain.CriticalPercentage(s.TotalItems, s.TotalCritical)
	s.CriticalByLine = sortedCounts(byLine)
	s.CriticalByArea = sortedCounts(byArea)
	s.ClassificationOK = s.HistoryCritical == s.TotalCritical
	return s
}

// LogDivergence logs a warning when the two classification paths disagree.
func (s Summary) LogDivergence(logger logrus.FieldLogger) {
	if s.ClassificationOK {
		return
	}
	logger.WithFields(logrus.Fields{
		"summary_critical": s.TotalCritical,
		"history_critical": s.HistoryCritical,
	}).Warn("critical counts differ between summary and history classification")
}

// MaterialRow is one critical material of a line.
type MaterialRow struct {
	Material           string
	Level              string
	Balance            *float64
	Requirement        *float64
	CoveragePercentage *float64
}

// LineMaterials lists the critical materials of one line.
type LineMaterials struct {
	Line      string
	Materials []MaterialRow
}

// CriticalMaterialsByLine groups critical materials by line, ordered by line.
// Materials keep file order. Empty when the line column is absent.
func CriticalMaterialsByLine(snap *Snapshot, c Classifier) []LineMaterials {
	if snap == nil || !snap.HasLine {
		return nil
	}
	index := make(map[string]int)
	var out []LineMaterials
	for _, r := range snap.Records {
		if r.ProjectID == "" || !c.IsCriticalSummary(r.CoverageLevel) {
			continue
		}
		i, ok := index[r.ProjectID]
		if !ok {
			i = len(out)
			index[r.ProjectID] = i
			out = append(out, LineMaterials{Line: r.ProjectID})
		}
		out[i].Materials = append(out[i].Materials, MaterialRow{
			Material:           r.MaterialID,
			Level:              r.CoverageLevel,
			Balance:            r.Balance,
			Requirement:        r.Requirement,
			CoveragePercentage: r.CoveragePercentage,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// LevelCounts counts rows per coverage level text, desc by count, ties by name.
// Blank levels are skipped.
func LevelCounts(snap *Snapshot) []Count {
	if snap == nil {
		return nil
	}
	counts := make(map[string]int)
	for _, r := range snap.Records {
		if r.CoverageLevel != "" {
			counts[r.CoverageLevel]++
		}
	}
	return sortedCounts(counts)
}

// HistoryCounts returns the (total, critical) pair recorded in the history series.
func HistoryCounts(snap *Snapshot, c Classifier) (total, critical int) {
	if snap == nil {
		return 0, 0
	}
	for _, r := range snap.Records {
		if c.IsCritical(r.CoverageLevel) {
			critical++
		}
	}
	return len(snap.Records), critical
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
