package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/history"
	"stock-movement-lab/internal/storage/memory"
)

func TestPrintSeries(t *testing.T) {
	logger, _ := test.NewNullLogger()
	local := memory.NewHistoryStore()
	tracker := history.NewTracker(local, nil, history.DefaultOptions()).WithLogger(logger)

	_, err := tracker.Record(context.Background(), domain.Date{Year: 2024, Month: time.March, Day: 5}, 4, 1)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printSeries(context.Background(), tracker, &out, logger))
	assert.Contains(t, out.String(), "source: local")
	assert.Contains(t, out.String(), "Percentual")
	assert.Contains(t, out.String(), "2024-03-05")
	assert.Contains(t, out.String(), "25.00")
}

func TestRunSync(t *testing.T) {
	logger, _ := test.NewNullLogger()
	local := memory.NewHistoryStore()
	day := domain.Date{Year: 2024, Month: time.March, Day: 5}
	require.NoError(t, local.ReplaceAll(context.Background(), []*domain.CriticalHistoryEntry{
		domain.NewCriticalHistoryEntry(day, 4, 1),
	}))

	var out bytes.Buffer
	noDurable := history.NewTracker(local, nil, history.DefaultOptions()).WithLogger(logger)
	assert.Error(t, runSync(context.Background(), noDurable, &out))

	durable := memory.NewHistoryStore()
	tracker := history.NewTracker(local, durable, history.DefaultOptions()).WithLogger(logger)
	require.NoError(t, runSync(context.Background(), tracker, &out))
	assert.Contains(t, out.String(), "pushed=1")

	got, err := durable.Get(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CriticalItems)
}
