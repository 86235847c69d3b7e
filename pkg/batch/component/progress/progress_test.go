package progress_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/datagen/pkg/batch/component/progress"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}

func TestLogReporter_LogsOncePerStep(t *testing.T) {
	buf := captureLogs(t)
	r := progress.NewLogReporter(25)

	r.Start(8)
	for i := 1; i <= 8; i++ {
		r.Update(model.Counters{Completed: i, Target: 8})
	}
	r.Finish(model.Counters{Completed: 8, Target: 8, Total: 9, Failed: 1})

	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, "% ("), out)
	assert.Contains(t, out, "Progress: 25% (2/8 completed")
	assert.Contains(t, out, "Progress: 100% (8/8 completed")
	assert.Contains(t, out, "finished with 8/8 completed after 9 attempts")
}

func TestLogReporter_ZeroTarget(t *testing.T) {
	buf := captureLogs(t)
	r := progress.NewLogReporter(0)
	r.Start(0)
	r.Update(model.Counters{Completed: 1})
	assert.NotContains(t, buf.String(), "%")
}

func TestBarReporter_Render(t *testing.T) {
	var out bytes.Buffer
	r := progress.NewBarReporter(&out, 20).WithRefreshInterval(0)

	r.Start(6)
	line := r.Render(model.Counters{Completed: 3, Target: 6, Failed: 2, InFlight: 1})
	assert.Contains(t, line, "3/6")
	assert.Contains(t, line, "50%")
	assert.Contains(t, line, "2 failed")
	assert.Contains(t, line, "in flight 1")

	r.Update(model.Counters{Completed: 6, Target: 6})
	r.Finish(model.Counters{Completed: 6, Target: 6})
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
	assert.Contains(t, out.String(), "6/6")
}

func TestNewReporterProvider(t *testing.T) {
	cfg := config.NewConfig()
	assert.IsType(t, &progress.LogReporter{}, progress.NewReporterProvider(cfg))
	cfg.Datagen.Job.ShowProgress = true
	assert.IsType(t, &progress.BarReporter{}, progress.NewReporterProvider(cfg))
}
