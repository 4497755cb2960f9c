package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citypulse/internal/domain"
	"citypulse/internal/repository"
)

func TestReport(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	ts := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	for _, o := range []domain.Observation{
		{City: "Seattle", MetricType: "temperature", Value: 21.5, Unit: "celsius", Timestamp: ts},
		{City: "Seattle", MetricType: "air_quality", Value: 42, Unit: "AQI", Timestamp: ts},
		{City: "Chicago", MetricType: "temperature", Value: 18, Unit: "celsius", Timestamp: ts},
	} {
		require.NoError(t, store.InsertObservation(ctx, &o))
	}

	var out bytes.Buffer
	require.NoError(t, report(ctx, &out, store, "Seattle", 1))
	text := out.String()
	assert.Contains(t, text, "city_metrics")
	assert.Contains(t, text, "3 records")
	assert.Contains(t, text, "air_quality")
	assert.NotContains(t, text, "Chicago")
	assert.NotContains(t, text, "21.5", "sample is capped")
}

func TestReport_NegativeSample(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	o := domain.Observation{City: "Seattle", MetricType: "temperature", Value: 21.5, Timestamp: time.Now().UTC()}
	require.NoError(t, store.InsertObservation(ctx, &o))

	var out bytes.Buffer
	assert.NotPanics(t, func() {
		assert.Error(t, report(ctx, &out, store, "", -1))
	})
	assert.Empty(t, out.String())

	require.NoError(t, report(ctx, &out, store, "", 0))
	assert.NotContains(t, out.String(), "Seattle")
}
