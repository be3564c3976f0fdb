package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/foldershare/metrics"
)

func TestPrometheusObserver_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := metrics.NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	o.RecordDelivery("callback", nil)
	o.RecordDelivery("callback", nil)
	o.RecordDelivery("subscribe", errors.New("closed"))
	o.RecordArchiveHit()
	o.RecordArchiveRebuild(2*time.Second, nil)
	o.RecordArchiveRebuild(time.Second, errors.New("archiver down"))
	o.RecordRefreshItem("media", nil)
	o.RecordRefreshItem("archive", errors.New("sign"))
	o.RecordRefreshRun(time.Minute)

	count, err := testutil.GatherAndCount(reg, "test_notification_deliveries_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "test_archive_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = testutil.GatherAndCount(reg, "test_refresh_items_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "test_archive_build_duration_seconds", "test_refresh_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPrometheusObserver_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := metrics.NewPrometheusObserver("", reg)
	require.NoError(t, err)
	second, err := metrics.NewPrometheusObserver("", reg)
	require.NoError(t, err)

	first.RecordArchiveHit()
	second.RecordArchiveHit()

	count, err := testutil.GatherAndCount(reg, "foldershare_archive_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "both observers share one series")
}

func TestPrometheusObserver_Nil(t *testing.T) {
	var o *metrics.PrometheusObserver
	assert.NotPanics(t, func() {
		o.RecordDelivery("callback", nil)
		o.RecordArchiveHit()
		o.RecordArchiveRebuild(time.Second, nil)
		o.RecordRefreshItem("media", nil)
		o.RecordRefreshRun(time.Second)
	})
}
