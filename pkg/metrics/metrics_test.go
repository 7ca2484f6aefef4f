// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCollector_RecordAndGetStats(t *testing.T) {
	c := NewInMemoryCollector()

	c.RecordMatchPass(10 * time.Millisecond)
	c.RecordMatchPass(20 * time.Millisecond)
	c.RecordDispatch("downloader")
	c.RecordDispatch("downloader")
	c.RecordDispatchFailure("nzlam")
	c.RecordAbdication("downloader")
	c.RecordMessage("NORMAL")
	c.RecordMessage("WARNING")

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.TotalMatchPasses)
	assert.Equal(t, int64(2), stats.TotalDispatches)
	assert.Equal(t, int64(2), stats.DispatchesByClass["downloader"])
	assert.Equal(t, int64(1), stats.TotalDispatchErrors)
	assert.Equal(t, int64(1), stats.DispatchErrByClass["nzlam"])
	assert.Equal(t, int64(1), stats.TotalAbdications)
	assert.Equal(t, int64(2), stats.TotalMessages)
	assert.Equal(t, int64(1), stats.MessagesBySeverity["WARNING"])
	assert.Equal(t, 15*time.Millisecond, stats.MatchPassTimeStats.Average)
}

func TestInMemoryCollector_Reset(t *testing.T) {
	c := NewInMemoryCollector()
	c.RecordDispatch("downloader")
	c.Reset()

	stats := c.GetStats()
	assert.Equal(t, int64(0), stats.TotalDispatches)
	assert.Empty(t, stats.DispatchesByClass)
}

func TestStats_FormatPrometheus(t *testing.T) {
	c := NewInMemoryCollector()
	c.RecordDispatch("downloader")
	c.RecordMessage("NORMAL")

	output := c.GetStats().FormatPrometheus()
	assert.Contains(t, output, "cycler_dispatches_total 1")
	assert.Contains(t, output, `cycler_dispatches_by_class{class="downloader"} 1`)
	assert.Contains(t, output, `cycler_messages_by_severity{severity="NORMAL"} 1`)
}

func TestNoOpCollector(t *testing.T) {
	c := NoOpCollector{}
	c.RecordMatchPass(time.Second)
	c.RecordDispatch("x")
	c.RecordDispatchFailure("x")
	c.RecordAbdication("x")
	c.RecordMessage("NORMAL")
	assert.NotNil(t, c.GetStats())
	c.Reset()
}

func TestDefaultCollector(t *testing.T) {
	SetDefaultCollector(nil)
	assert.IsType(t, &NoOpCollector{}, GetDefaultCollector())

	custom := NewInMemoryCollector()
	SetDefaultCollector(custom)
	assert.Same(t, custom, GetDefaultCollector())
}
