package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-movement-lab/internal/coverage"
	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/history"
	"stock-movement-lab/internal/storage/memory"
	"stock-movement-lab/internal/table"
)

var fixedNow = time.Date(2024, time.December, 18, 14, 0, 0, 0, time.UTC)

func coverageProcessor(tracker *history.Tracker) (*CoverageProcessor, *test.Hook) {
	logger, hook := test.NewNullLogger()
	p := NewCoverageProcessor(coverage.DefaultClassifier(), tracker).
		WithLogger(logger).
		WithClock(func() time.Time { return fixedNow })
	return p, hook
}

func TestCoverage_OneOfFourCriticalRecordsHistory(t *testing.T) {
	durable := memory.NewHistoryStore()
	logger, _ := test.NewNullLogger()
	tracker := history.NewTracker(memory.NewHistoryStore(), durable, history.DefaultOptions()).WithLogger(logger)
	p, _ := coverageProcessor(tracker)

	tbl := table.New([]string{"Material", "Nível de Cobertura", "Linha de ATO"}, [][]string{
		{"M1", "Crítico", "L1"},
		{"M2", "Normal", "L1"},
		{"M3", "Alto", "L2"},
		{"M4", "Normal", "L2"},
	})

	res, err := p.Process(context.Background(), tbl, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeData, res.Outcome)

	assert.Equal(t, 1, res.Summary.TotalCritical)
	require.NotNil(t, res.History)
	require.Len(t, res.History.Series, 1)
	assert.Equal(t, 25.0, res.History.Series[0].Percentage)
	assert.Equal(t, domain.DateOf(fixedNow), res.History.Series[0].Date)

	stored, err := durable.Get(context.Background(), domain.DateOf(fixedNow))
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CriticalItems)
}

func TestCoverage_DivergenceWarns(t *testing.T) {
	p, hook := coverageProcessor(nil)
	tbl := table.New([]string{"Nível de Cobertura"}, [][]string{
		{"Crítico"},
		{"Crítico Baixo"},
	})

	res, err := p.Process(context.Background(), tbl, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.TotalCritical)
	assert.Equal(t, 2, res.Summary.HistoryCritical)
	assert.Len(t, res.Warnings, 1)
	assert.Nil(t, res.History)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestCoverage_MissingLevelColumn(t *testing.T) {
	p, _ := coverageProcessor(nil)
	res, err := p.Process(context.Background(), table.New([]string{"Material", "Nivel Cobertura"}, [][]string{{"M", "x"}}), true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValidationFailed, res.Outcome)
	assert.Equal(t, []string{"Nível de Cobertura"}, res.Validation.Missing)
	assert.NotEmpty(t, res.Validation.Suggestions)
}

func TestCoverage_EmptyTable(t *testing.T) {
	p, _ := coverageProcessor(nil)
	res, err := p.Process(context.Background(), table.New([]string{"Nível de Cobertura"}, nil), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, res.Outcome)
}
