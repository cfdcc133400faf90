package coverage

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/table"
)

var now = time.Date(2024, 6, 10, 15, 4, 5, 0, time.UTC)

func coverageTable() *table.Table {
	return table.New(
		[]string{"Material", "Nível de Cobertura", "Necessidade", "Balance", "Linha de ATO", "Área", "Data Alteração"},
		[][]string{
			{"M1", "Crítico", "10", "5", "L1", "Solda", "09/06/2024 10:00:00"},
			{"M2", "Normal", "10", "20", "L1", "Solda", ""},
			{"M3", "Alto", "0", "3", "L2", "Pintura", ""},
			{"M4", "OK", "", "1", "L2", "", ""},
		},
	)
}

func TestProcess(t *testing.T) {
	snap, err := Process(coverageTable(), now)
	require.NoError(t, err)
	require.Len(t, snap.Records, 4)
	assert.True(t, snap.HasLine)
	assert.True(t, snap.HasArea)

	first := snap.Records[0]
	assert.Equal(t, "M1", first.MaterialID)
	assert.Equal(t, domain.Date{Year: 2024, Month: time.June, Day: 10}, first.ProcessingDate)
	assert.Equal(t, time.Date(2024, 6, 9, 10, 0, 0, 0, time.UTC), first.ChangedAt)
	require.NotNil(t, first.CoveragePercentage)
	assert.Equal(t, 50.0, *first.CoveragePercentage)

	// zero requirement
	assert.Nil(t, snap.Records[2].CoveragePercentage)
	// missing requirement
	assert.Nil(t, snap.Records[3].Requirement)
	assert.Nil(t, snap.Records[3].CoveragePercentage)
	assert.True(t, snap.Records[3].ChangedAt.IsZero())
}

func TestProcess_MissingLevelColumn(t *testing.T) {
	tbl := table.New([]string{"Material", "Nivel Cobertura"}, [][]string{{"M1", "Crítico"}})

	_, err := Process(tbl, now)
	var verr *table.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"Nível de Cobertura"}, verr.Missing)
	require.NotEmpty(t, verr.Suggestions)
	assert.Equal(t, "Nivel Cobertura", verr.Suggestions[0].Candidate)
}

func TestSummarize_OneOfFourCritical(t *testing.T) {
	snap, err := Process(coverageTable(), now)
	require.NoError(t, err)

	s := Summarize(snap, DefaultClassifier())
	assert.Equal(t, 4, s.TotalItems)
	assert.Equal(t, 1, s.TotalCritical)
	assert.Equal(t, 25.0, s.CriticalPercent)
	assert.Equal(t, []Count{{Name: "L1", Count: 1}}, s.CriticalByLine)
	assert.Equal(t, []Count{{Name: "Solda", Count: 1}}, s.CriticalByArea)
	assert.True(t, s.ClassificationOK)

	total, critical := HistoryCounts(snap, DefaultClassifier())
	assert.Equal(t, 4, total)
	assert.Equal(t, 1, critical)
}

func TestSummarize_LowExclusionDivergence(t *testing.T) {
	tbl := table.New([]string{"Nível de Cobertura", "Linha de ATO"}, [][]string{
		{"Crítico", "L2"},
		{"CRITICO BAIXO", "L1"},
		{"critical", "L1"},
		{"Critical low", "L1"},
	})
	snap, err := Process(tbl, now)
	require.NoError(t, err)

	s := Summarize(snap, DefaultClassifier())
	assert.Equal(t, 2, s.TotalCritical)
	assert.Equal(t, 4, s.HistoryCritical)
	assert.False(t, s.ClassificationOK)
	// ties sorted by name
	assert.Equal(t, []Count{{Name: "L1", Count: 1}, {Name: "L2", Count: 1}}, s.CriticalByLine)
	assert.Empty(t, s.CriticalByArea)

	logger, hook := test.NewNullLogger()
	s.LogDivergence(logger)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestClassifier_AccentSensitive(t *testing.T) {
	c := Classifier{Critical: []string{"crítico"}}
	assert.True(t, c.IsCritical("CRÍTICO"))
	assert.False(t, c.IsCritical("critico"))
}

func TestCriticalMaterialsByLine(t *testing.T) {
	tbl := table.New([]string{"Material", "Nível de Cobertura", "Linha de ATO", "Balance", "Necessidade"}, [][]string{
		{"M9", "Crítico", "L2", "1", "4"},
		{"M1", "Crítico", "L1", "", ""},
		{"M2", "Normal", "L1", "", ""},
		{"M3", "critico", "L1", "2", "0"},
	})
	snap, err := Process(tbl, now)
	require.NoError(t, err)

	got := CriticalMaterialsByLine(snap, DefaultClassifier())
	require.Len(t, got, 2)
	assert.Equal(t, "L1", got[0].Line)
	require.Len(t, got[0].Materials, 2)
	assert.Equal(t, "M1", got[0].Materials[0].Material)
	assert.Nil(t, got[0].Materials[1].CoveragePercentage)

	assert.Equal(t, "L2", got[1].Line)
	require.NotNil(t, got[1].Materials[0].CoveragePercentage)
	assert.Equal(t, 25.0, *got[1].Materials[0].CoveragePercentage)
}

func TestCriticalMaterialsByLine_NoLineColumn(t *testing.T) {
	tbl := table.New([]string{"Nível de Cobertura"}, [][]string{{"Crítico"}})
	snap, err := Process(tbl, now)
	require.NoError(t, err)

	assert.Empty(t, CriticalMaterialsByLine(snap, DefaultClassifier()))
	assert.Empty(t, Summarize(snap, DefaultClassifier()).CriticalByLine)
}

func TestLevelCounts(t *testing.T) {
	tbl := table.New([]string{"Nível de Cobertura"}, [][]string{
		{"Normal"}, {"Crítico"}, {"Normal"}, {"Alto"}, {""},
	})
	snap, err := Process(tbl, now)
	require.NoError(t, err)

	assert.Equal(t, []Count{
		{Name: "Normal", Count: 2},
		{Name: "Alto", Count: 1},
		{Name: "Crítico", Count: 1},
	}, LevelCounts(snap))
}

func TestHistoryCounts_EmptyTable(t *testing.T) {
	snap, err := Process(table.New([]string{"Nível de Cobertura"}, nil), now)
	require.NoError(t, err)

	total, critical := HistoryCounts(snap, DefaultClassifier())
	assert.Zero(t, total)
	assert.Zero(t, critical)
}
