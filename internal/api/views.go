package api

import (
	"time"

	"stock-movement-lab/internal/coverage"
	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/history"
	"stock-movement-lab/internal/metrics"
	"stock-movement-lab/internal/pipeline"
	"stock-movement-lab/internal/session"
	"stock-movement-lab/internal/table"
)

type sessionView struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Uploads   []uploadView `json:"uploads"`
	Analyzed  bool         `json:"analyzed"`
}

type uploadView struct {
	Kind      session.Kind `json:"kind"`
	DatasetID string       `json:"dataset_id"`
	Filename  string       `json:"filename"`
	Rows      int          `json:"rows"`
	Columns   []string     `json:"columns"`
	Missing   []string     `json:"missing,omitempty"`
	LoadedAt  time.Time    `json:"loaded_at"`
}

func newUploadView(kind session.Kind, u *session.Upload) uploadView {
	required := domain.MovementColumns
	if kind == session.KindCoverage {
		required = domain.CoverageColumns
	}
	return uploadView{
		Kind:      kind,
		DatasetID: u.DatasetID,
		Filename:  u.Filename,
		Rows:      u.Table.Len(),
		Columns:   u.Table.Header,
		Missing:   u.Table.Missing(required),
		LoadedAt:  u.LoadedAt,
	}
}

func newSessionView(s *session.Session) sessionView {
	v := sessionView{ID: s.ID, CreatedAt: s.CreatedAt, Uploads: []uploadView{}}
	for _, k := range s.Kinds() {
		v.Uploads = append(v.Uploads, newUploadView(k, s.Get(k)))
	}
	v.Analyzed = s.Analysis() != nil
	return v
}

type validationView struct {
	Source      string           `json:"source"`
	Missing     []string         `json:"missing"`
	Found       []string         `json:"found"`
	Suggestions []suggestionView `json:"suggestions,omitempty"`
}

type suggestionView struct {
	Wanted    string  `json:"wanted"`
	Candidate string  `json:"candidate"`
	Score     float64 `json:"score"`
}

func newValidationView(v *pipeline.ValidationFailure) *validationView {
	if v == nil || v.ValidationError == nil {
		return nil
	}
	out := &validationView{Source: v.Source, Missing: v.Missing, Found: v.Found}
	for _, s := range v.Suggestions {
		out.Suggestions = append(out.Suggestions, suggestionFrom(s))
	}
	return out
}

func suggestionFrom(s table.Suggestion) suggestionView {
	return suggestionView{Wanted: s.Wanted, Candidate: s.Candidate, Score: s.Score}
}

type statsView struct {
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

func statsFrom(g metrics.GroupStats) statsView {
	return statsView{Sum: g.Sum, Mean: g.Mean, Count: g.Count}
}

type bucketView struct {
	ProjectID string `json:"project_id"`
	Key       int    `json:"key"`
	Label     string `json:"label,omitempty"`
	statsView
}

type directionView struct {
	ProjectID   string           `json:"project_id"`
	Direction   domain.Direction `json:"direction"`
	Bucket      int              `json:"bucket"`
	Total       float64          `json:"total"`
	SignedTotal float64          `json:"signed_total"`
	Mean        float64          `json:"mean"`
	Count       int              `json:"count"`
}

type projectSummaryView struct {
	ProjectID string    `json:"project_id"`
	Total     float64   `json:"total"`
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Count     int       `json:"count"`
	First     time.Time `json:"first"`
	Last      time.Time `json:"last"`
	SpanDays  int       `json:"span_days"`
}

type overviewView struct {
	Records       int     `json:"records"`
	Projects      int     `json:"projects"`
	SpanDays      int     `json:"span_days"`
	TotalQuantity float64 `json:"total_quantity"`
	Inflow        float64 `json:"inflow"`
	Outflow       float64 `json:"outflow"`
}

type peakView struct {
	ProjectID string           `json:"project_id"`
	Direction domain.Direction `json:"direction,omitempty"`
	Kind      domain.PeakKind  `json:"kind"`
	Label     string           `json:"label"`
	Index     int              `json:"index"`
	Timestamp time.Time        `json:"timestamp"`
	Value     float64          `json:"value"`
}

type seriesView struct {
	ProjectID     string           `json:"project_id"`
	Direction     domain.Direction `json:"direction,omitempty"`
	Hours         []time.Time      `json:"hours"`
	Values        []float64        `json:"values"`
	Insufficient  bool             `json:"insufficient"`
	HighThreshold float64          `json:"high_threshold"`
	LowThreshold  float64          `json:"low_threshold"`
}

type analysisView struct {
	Outcome    pipeline.Outcome `json:"outcome"`
	Message    string           `json:"message,omitempty"`
	Validation *validationView  `json:"validation,omitempty"`

	InputRows   int `json:"input_rows"`
	KeptRows    int `json:"kept_rows"`
	DroppedRows int `json:"dropped_rows"`

	Projects []string    `json:"projects"`
	Selected []string    `json:"selected"`
	Start    domain.Date `json:"start"`
	End      domain.Date `json:"end"`

	Overview              overviewView         `json:"overview"`
	ProjectSummaries      []projectSummaryView `json:"project_summaries"`
	Hourly                []bucketView         `json:"hourly"`
	DayOfMonth            []bucketView         `json:"day_of_month"`
	Weekday               []bucketView         `json:"weekday"`
	DayHour               []bucketView         `json:"day_hour"`
	HourlyByDirection     []directionView      `json:"hourly_by_direction,omitempty"`
	DayOfMonthByDirection []directionView      `json:"day_of_month_by_direction,omitempty"`
	Series                []seriesView         `json:"series"`
	Peaks                 []peakView           `json:"peaks"`
}

func newAnalysisView(a *pipeline.Analysis) analysisView {
	v := analysisView{
		Outcome:    a.Outcome,
		Message:    a.Message,
		Validation: newValidationView(a.Validation),
		Projects:   a.Projects,
		Selected:   a.Selected,
		Start:      a.Start,
		End:        a.End,
		Overview: overviewView{
			Records:       a.Overview.Records,
			Projects:      a.Overview.Projects,
			SpanDays:      a.Overview.SpanDays,
			TotalQuantity: a.Overview.TotalQuantity,
			Inflow:        a.Overview.Inflow,
			Outflow:       a.Overview.Outflow,
		},
		ProjectSummaries: []projectSummaryView{},
		Hourly:           []bucketView{},
		DayOfMonth:       []bucketView{},
		Weekday:          []bucketView{},
		DayHour:          []bucketView{},
		Series:           []seriesView{},
		Peaks:            []peakView{},
	}
	if a.Dataset != nil {
		v.InputRows = a.Dataset.InputRows
		v.KeptRows = a.Dataset.KeptRows
		v.DroppedRows = a.Dataset.DroppedRows
	}
	for _, s := range a.ProjectSummaries {
		v.ProjectSummaries = append(v.ProjectSummaries, projectSummaryView{
			ProjectID: s.ProjectID, Total: s.Total, Mean: s.Mean, Std: s.Std,
			Min: s.Min, Max: s.Max, Count: s.Count,
			First: s.First, Last: s.Last, SpanDays: s.SpanDays,
		})
	}
	for _, r := range a.Hourly {
		v.Hourly = append(v.Hourly, bucketView{ProjectID: r.ProjectID, Key: r.Hour, statsView: statsFrom(r.GroupStats)})
	}
	for _, r := range a.DayOfMonth {
		v.DayOfMonth = append(v.DayOfMonth, bucketView{ProjectID: r.ProjectID, Key: r.Day, statsView: statsFrom(r.GroupStats)})
	}
	for _, r := range a.Weekday {
		v.Weekday = append(v.Weekday, bucketView{ProjectID: r.ProjectID, Key: int(r.Weekday), Label: r.Label, statsView: statsFrom(r.GroupStats)})
	}
	for _, r := range a.DayHour {
		v.DayHour = append(v.DayHour, bucketView{ProjectID: r.ProjectID, Key: r.Day*100 + r.Hour, Label: r.Label, statsView: statsFrom(r.GroupStats)})
	}
	v.HourlyByDirection = directionViews(a.HourlyByDirection)
	v.DayOfMonthByDirection = directionViews(a.DayOfMonthByDirection)
	if a.Peaks != nil {
		for _, s := range a.Peaks.Series {
			hours := make([]time.Time, 0, len(s.Buckets))
			for _, b := range s.Buckets {
				hours = append(hours, b.Hour)
			}
			v.Series = append(v.Series, seriesView{
				ProjectID:     s.ProjectID,
				Direction:     s.Direction,
				Hours:         hours,
				Values:        s.Values,
				Insufficient:  s.Insufficient,
				HighThreshold: s.HighThreshold,
				LowThreshold:  s.LowThreshold,
			})
		}
	}
	for _, p := range a.PeakSummary {
		v.Peaks = append(v.Peaks, peakView{
			ProjectID: p.ProjectID, Direction: p.Direction, Kind: p.Kind, Label: p.Kind.Label(),
			Index: p.Index, Timestamp: p.Timestamp, Value: p.Value,
		})
	}
	return v
}

func directionViews(rows []metrics.DirectionRow) []directionView {
	var out []directionView
	for _, r := range rows {
		out = append(out, directionView{
			ProjectID: r.ProjectID, Direction: r.Direction, Bucket: r.Bucket,
			Total: r.Total, SignedTotal: r.SignedTotal, Mean: r.Mean, Count: r.Count,
		})
	}
	return out
}

type historyEntryView struct {
	Date          domain.Date `json:"date"`
	Percentage    float64     `json:"percentage"`
	TotalItems    int         `json:"total_items"`
	CriticalItems int         `json:"critical_items"`
}

func historyViews(series []*domain.CriticalHistoryEntry) []historyEntryView {
	out := make([]historyEntryView, 0, len(series))
	for _, e := range series {
		out = append(out, historyEntryView{
			Date: e.Date, Percentage: e.Percentage,
			TotalItems: e.TotalItems, CriticalItems: e.CriticalItems,
		})
	}
	return out
}

type historyView struct {
	Source  string             `json:"source"`
	Durable bool               `json:"durable"`
	Local   bool               `json:"local"`
	Entry   *historyEntryView  `json:"entry,omitempty"`
	Series  []historyEntryView `json:"series"`
}

func newHistoryResultView(r *history.Result) *historyView {
	if r == nil {
		return nil
	}
	v := &historyView{Source: r.Source, Durable: r.Durable, Local: r.Local, Series: historyViews(r.Series)}
	if r.Entry != nil {
		e := historyViews([]*domain.CriticalHistoryEntry{r.Entry})[0]
		v.Entry = &e
	}
	return v
}

type countView struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func countViews(counts []coverage.Count) []countView {
	out := make([]countView, 0, len(counts))
	for _, c := range counts {
		out = append(out, countView{Name: c.Name, Count: c.Count})
	}
	return out
}

type materialView struct {
	Material           string   `json:"material"`
	Level              string   `json:"level"`
	Balance            *float64 `json:"balance"`
	Requirement        *float64 `json:"requirement"`
	CoveragePercentage *float64 `json:"coverage_percentage"`
}

type lineMaterialsView struct {
	Line      string         `json:"line"`
	Materials []materialView `json:"materials"`
}

type coverageView struct {
	Outcome    pipeline.Outcome `json:"outcome"`
	Message    string           `json:"message,omitempty"`
	Validation *validationView  `json:"validation,omitempty"`
	Day        domain.Date      `json:"day"`

	TotalItems       int         `json:"total_items"`
	TotalCritical    int         `json:"total_critical"`
	CriticalPercent  float64     `json:"critical_percent"`
	HistoryCritical  int         `json:"history_critical"`
	ClassificationOK bool        `json:"classification_ok"`
	CriticalByLine   []countView `json:"critical_by_line"`
	CriticalByArea   []countView `json:"critical_by_area"`
	LevelCounts      []countView `json:"level_counts"`

	MaterialsByLine []lineMaterialsView `json:"materials_by_line"`
	History         *historyView        `json:"history,omitempty"`
}

func newCoverageView(c *pipeline.CoverageAnalysis) coverageView {
	v := coverageView{
		Outcome:          c.Outcome,
		Message:          c.Message,
		Validation:       newValidationView(c.Validation),
		Day:              c.Day,
		TotalItems:       c.Summary.TotalItems,
		TotalCritical:    c.Summary.TotalCritical,
		CriticalPercent:  c.Summary.CriticalPercent,
		HistoryCritical:  c.Summary.HistoryCritical,
		ClassificationOK: c.Summary.ClassificationOK,
		CriticalByLine:   countViews(c.Summary.CriticalByLine),
		CriticalByArea:   countViews(c.Summary.CriticalByArea),
		LevelCounts:      countViews(c.LevelCounts),
		MaterialsByLine:  []lineMaterialsView{},
		History:          newHistoryResultView(c.History),
	}
	for _, l := range c.CriticalByLine {
		lv := lineMaterialsView{Line: l.Line, Materials: make([]materialView, 0, len(l.Materials))}
		for _, m := range l.Materials {
			lv.Materials = append(lv.Materials, materialView{
				Material: m.Material, Level: m.Level, Balance: m.Balance,
				Requirement: m.Requirement, CoveragePercentage: m.CoveragePercentage,
			})
		}
		v.MaterialsByLine = append(v.MaterialsByLine, lv)
	}
	return v
}
