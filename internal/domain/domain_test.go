package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.January, Day: 5}, d)
	assert.Equal(t, "2024-01-05", d.String())
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), d.Time())

	_, err = ParseDate("05/01/2024")
	assert.Error(t, err)
}

func TestDate_Compare(t *testing.T) {
	a := Date{Year: 2024, Month: time.January, Day: 31}
	b := Date{Year: 2024, Month: time.February, Day: 1}

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, Date{}.IsZero())
	assert.False(t, a.IsZero())
}

func TestDate_JSON(t *testing.T) {
	in := struct {
		Day Date `json:"day"`
	}{Day: Date{Year: 2024, Month: time.March, Day: 9}}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-03-09"}`, string(b))

	var out struct {
		Day Date `json:"day"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in.Day, out.Day)

	assert.Error(t, json.Unmarshal([]byte(`{"day":"garbage"}`), &out))
}

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{
		"Entrada":  DirectionEntrada,
		" entrada": DirectionEntrada,
		"SAIDA":    DirectionSaida,
		"Saída":    DirectionSaida,
		"other":    DirectionUnknown,
		"":         DirectionUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDirection(in), in)
	}
	assert.True(t, DirectionSaida.IsOutflow())
	assert.False(t, DirectionEntrada.IsOutflow())
}

func TestCriticalPercentage(t *testing.T) {
	assert.Equal(t, 25.0, CriticalPercentage(4, 1))
	assert.Equal(t, 0.0, CriticalPercentage(0, 0))

	e := NewCriticalHistoryEntry(Date{Year: 2024, Month: time.May, Day: 1}, 8, 2)
	assert.Equal(t, 25.0, e.Percentage)

	other := *e
	other.Revision = 7
	assert.True(t, e.SameValues(&other))
	other.CriticalItems = 3
	assert.False(t, e.SameValues(&other))
}

func TestDataset_ProjectsAndDirections(t *testing.T) {
	var nilSet *Dataset
	assert.Equal(t, 0, nilSet.Len())
	assert.Nil(t, nilSet.Projects())
	assert.False(t, nilSet.HasDirections())

	ds := &Dataset{
		Records: []*MovementRecord{
			{ProjectID: "P2", Quantity: -3},
			{ProjectID: "P1", Quantity: 4},
			{ProjectID: "P2", Quantity: 1},
		},
		InputRows:      4,
		KeptRows:       3,
		DroppedRows:    1,
		AcceptedLayout: "seconds",
	}
	assert.Equal(t, []string{"P1", "P2"}, ds.Projects())
	assert.False(t, ds.HasDirections())
	assert.Equal(t, 3.0, ds.Records[0].Magnitude())

	ds.Records[1].Direction = DirectionEntrada
	assert.True(t, ds.HasDirections())

	sub := ds.Derive(ds.Records[:1])
	assert.Equal(t, 1, sub.Len())
	assert.Equal(t, 1, sub.DroppedRows)
	assert.Equal(t, "seconds", sub.AcceptedLayout)
}

func TestPeakKind_Label(t *testing.T) {
	assert.Equal(t, "Pico Alto", PeakHigh.Label())
	assert.Equal(t, "Pico Baixo", PeakLow.Label())
}
