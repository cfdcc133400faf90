// Package peaks finds hourly peaks and troughs in per-project movement series.
package peaks

import (
	"math"
	"sort"
	"time"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/metrics"
)

// Options control peak detection.
type Options struct {
	TrackDirection bool    // analyse Entrada and Saída separately
	MinRecords     int     // projects with fewer raw records are skipped
	MinBuckets     int     // series with fewer buckets are reported as insufficient
	HighPercentile float64 // height threshold for high peaks
	LowPercentile  float64 // depth threshold for low peaks
	MinDistance    int     // minimum index separation between reported peaks
}

// DefaultOptions returns the standard detection parameters.
func DefaultOptions() Options {
	return Options{
		MinRecords:     3,
		MinBuckets:     3,
		HighPercentile: 0.75,
		LowPercentile:  0.25,
		MinDistance:    2,
	}
}

// Series is the analysed hourly series of one project (and direction).
type Series struct {
	ProjectID string
	Direction domain.Direction
	Buckets   []domain.HourlyBucket

	// Values are the analysed bucket values: the signed sums, or their
	// absolute magnitude for outflow series.
	Values []float64

	Insufficient  bool // fewer than MinBuckets buckets, no peaks searched
	HighThreshold float64
	LowThreshold  float64
	High          []domain.PeakPoint
	Low           []domain.PeakPoint
}

// Result holds every analysed series ordered by project then direction.
type Result struct {
	Series []*Series
}

// ProjectSeries returns the series of a project.
func (r *Result) ProjectSeries(projectID string) []*Series {
	var out []*Series
	for _, s := range r.Series {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out
}

// Detect runs peak detection over every project in ds.
func Detect(ds *domain.Dataset, opts Options) *Result {
	res := &Result{}
	if ds == nil {
		return res
	}

	byProject := make(map[string][]*domain.MovementRecord)
	for _, r := range ds.Records {
		byProject[r.ProjectID] = append(byProject[r.ProjectID], r)
	}
	projects := make([]string, 0, len(byProject))
	for p := range byProject {
		projects = append(projects, p)
	}
	sort.Strings(projects)

	for _, project := range projects {
		records := byProject[project]
		if len(records) < opts.MinRecords {
			continue
		}
		if !opts.TrackDirection {
			res.Series = append(res.Series, analyse(project, domain.DirectionUnknown, records, opts))
			continue
		}
		for _, sub := range splitDirections(records) {
			res.Series = append(res.Series, analyse(project, sub.direction, sub.records, opts))
		}
	}
	return res
}

type directionSubset struct {
	direction domain.Direction
	records   []*domain.MovementRecord
}

// splitDirections groups records by direction: Entrada, Saída, then untagged.
func splitDirections(records []*domain.MovementRecord) []directionSubset {
	order := []domain.Direction{domain.DirectionEntrada, domain.DirectionSaida, domain.DirectionUnknown}
	grouped := make(map[domain.Direction][]*domain.MovementRecord)
	for _, r := range records {
		grouped[r.Direction] = append(grouped[r.Direction], r)
	}
	var out []directionSubset
	for _, d := range order {
		if recs := grouped[d]; len(recs) > 0 {
			out = append(out, directionSubset{direction: d, records: recs})
		}
	}
	return out
}

func analyse(project string, dir domain.Direction, records []*domain.MovementRecord, opts Options) *Series {
	s := &Series{
		ProjectID: project,
		Direction: dir,
		Buckets:   BucketHourly(project, dir, records),
	}
	s.Values = make([]float64, len(s.Buckets))
	for i, b := range s.Buckets {
		s.Values[i] = b.Quantity
		if dir.IsOutflow() {
			s.Values[i] = math.Abs(b.Quantity)
		}
	}

	if len(s.Buckets) < opts.MinBuckets {
		s.Insufficient = true
		return s
	}

	s.HighThreshold = metrics.Percentile(s.Values, opts.HighPercentile)
	s.LowThreshold = metrics.Percentile(s.Values, opts.LowPercentile)

	for _, idx := range FindPeaks(s.Values, s.HighThreshold, opts.MinDistance) {
		s.High = append(s.High, s.point(domain.PeakHigh, idx))
	}

	negated := make([]float64, len(s.Values))
	for i, v := range s.Values {
		negated[i] = -v
	}
	for _, idx := range FindPeaks(negated, -s.LowThreshold, opts.MinDistance) {
		s.Low = append(s.Low, s.point(domain.PeakLow, idx))
	}
	return s
}

func (s *Series) point(kind domain.PeakKind, idx int) domain.PeakPoint {
	return domain.PeakPoint{
		ProjectID: s.ProjectID,
		Direction: s.Direction,
		Kind:      kind,
		Index:     idx,
		Timestamp: s.Buckets[idx].Hour,
		Value:     s.Values[idx],
	}
}

// BucketHourly sums record quantities per hour-floor timestamp, ordered by time.
func BucketHourly(project string, dir domain.Direction, records []*domain.MovementRecord) []domain.HourlyBucket {
	index := make(map[time.Time]int)
	var buckets []domain.HourlyBucket
	for _, r := range records {
		hour := r.Timestamp.Truncate(time.Hour)
		i, ok := index[hour]
		if !ok {
			i = len(buckets)
			index[hour] = i
			buckets = append(buckets, domain.HourlyBucket{ProjectID: project, Direction: dir, Hour: hour})
		}
		buckets[i].Quantity += r.Quantity
		buckets[i].RecordCount++
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Hour.Before(buckets[j].Hour) })
	return buckets
}

// Summary flattens every peak of res, ordered by timestamp, then project,
// then direction, with high peaks before low ones on ties.
func Summary(res *Result) []domain.PeakPoint {
	var out []domain.PeakPoint
	if res == nil {
		return out
	}
	for _, s := range res.Series {
		out = append(out, s.High...)
		out = append(out, s.Low...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.Kind == domain.PeakHigh && b.Kind != domain.PeakHigh
	})
	return out
}

// Counts returns the number of high and low peaks in res.
func Counts(res *Result) (high, low int) {
	for _, s := range res.Series {
		high += len(s.High)
		low += len(s.Low)
	}
	return high, low
}
