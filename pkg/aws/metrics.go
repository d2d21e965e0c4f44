package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	MetricCreditsPurchased = "CreditsPurchased"
	MetricCreditsConsumed  = "CreditsConsumed"
	MetricCreditsRefunded  = "CreditsRefunded"
	MetricCreditsBonus     = "CreditsBonus"
)

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Datum is one data point; all data points of a Put share dimensions.
type Datum struct {
	Name  string
	Value float64
	Unit  types.StandardUnit
}

func Count(name string) Datum { return Datum{Name: name, Value: 1, Unit: types.StandardUnitCount} }

func Millis(name string, d time.Duration) Datum {
	return Datum{Name: name, Value: float64(d.Milliseconds()), Unit: types.StandardUnitMilliseconds}
}

// MetricsClient publishes to one CloudWatch namespace. A nil or disabled
// client accepts every call and sends nothing.
type MetricsClient struct {
	client    cloudWatchAPI
	namespace string
	enabled   bool
}

func NewMetricsClient(cfg sdkaws.Config, namespace string, enabled bool) *MetricsClient {
	return &MetricsClient{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		enabled:   enabled,
	}
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

// Put sends data in a single PutMetricData call.
func (m *MetricsClient) Put(ctx context.Context, dimensions map[string]string, data ...Datum) error {
	if !m.IsEnabled() || len(data) == 0 {
		return nil
	}

	dims := make([]types.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, types.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(v)})
	}
	sort.Slice(dims, func(i, j int) bool { return *dims[i].Name < *dims[j].Name })

	now := time.Now()
	datums := make([]types.MetricDatum, 0, len(data))
	for _, d := range data {
		datums = append(datums, types.MetricDatum{
			MetricName: sdkaws.String(d.Name),
			Value:      sdkaws.Float64(d.Value),
			Unit:       d.Unit,
			Timestamp:  sdkaws.Time(now),
			Dimensions: dims,
		})
	}

	if _, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(m.namespace),
		MetricData: datums,
	}); err != nil {
		return fmt.Errorf("put %d metrics to %s: %w", len(datums), m.namespace, err)
	}
	return nil
}

// RecordValue records a count-valued business metric such as credits granted.
func (m *MetricsClient) RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error {
	return m.Put(ctx, dimensions, Datum{Name: metricName, Value: value, Unit: types.StandardUnitCount})
}
