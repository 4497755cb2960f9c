package domain

import (
	"fmt"
	"strings"
	"time"
)

// Observation is a single timestamped city measurement.
type Observation struct {
	ID         int64          `json:"id"`
	City       string         `json:"city"`
	MetricType string         `json:"metric_type"`
	Value      float64        `json:"value"`
	Unit       string         `json:"unit,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Source     string         `json:"source,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type AggregationKind string

const (
	AggregationAvg AggregationKind = "avg"
	AggregationMin AggregationKind = "min"
	AggregationMax AggregationKind = "max"
	AggregationSum AggregationKind = "sum"
)

var aggregationKinds = []AggregationKind{AggregationAvg, AggregationMin, AggregationMax, AggregationSum}

// ParseAggregationKind accepts exactly one of avg, min, max or sum.
func ParseAggregationKind(s string) (AggregationKind, error) {
	for _, k := range aggregationKinds {
		if string(k) == s {
			return k, nil
		}
	}
	allowed := make([]string, len(aggregationKinds))
	for i, k := range aggregationKinds {
		allowed[i] = string(k)
	}
	return "", fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidAggregation, s, strings.Join(allowed, ", "))
}

// Aggregate is one bucket of an aggregation. Date is the UTC calendar day.
type Aggregate struct {
	Date            string          `json:"date"`
	Value           float64         `json:"value"`
	Unit            string          `json:"unit"`
	AggregationType AggregationKind `json:"aggregation_type"`
}

// RecentQuery is the store-level form of a recent observations lookup.
// Since is inclusive. Empty City or MetricType means no filter.
type RecentQuery struct {
	City       string
	MetricType string
	Since      time.Time
	Skip       int
	Limit      int
}

// DateBucket returns the UTC calendar date used to group observations.
func DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
