package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fpang/optimize-images/internal/filehandler"
	"github.com/fpang/optimize-images/internal/pipeline"
	"github.com/fpang/optimize-images/internal/transcode"
)

func TestRecorder_FlushOutput(t *testing.T) {
	var buf bytes.Buffer
	rec := New("ImageOptimizer").WithOutput(&buf)
	rec.Dimension("DryRun", "false")
	rec.Metric("RunDurationMs", 1234.5, UnitMilliseconds)
	rec.Metric("TasksProcessed", 1, UnitCount)
	rec.Property("runId", "abc-123")
	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, buf.String())
	}

	awsMap, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}
	cwArr, ok := awsMap["CloudWatchMetrics"].([]any)
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}
	cw := cwArr[0].(map[string]any)
	if cw["Namespace"] != "ImageOptimizer" {
		t.Errorf("expected namespace ImageOptimizer, got %v", cw["Namespace"])
	}

	if doc["DryRun"] != "false" {
		t.Errorf("expected DryRun=false, got %v", doc["DryRun"])
	}
	if doc["RunDurationMs"] != 1234.5 {
		t.Errorf("expected RunDurationMs=1234.5, got %v", doc["RunDurationMs"])
	}
	if doc["TasksProcessed"] != float64(1) {
		t.Errorf("expected TasksProcessed=1, got %v", doc["TasksProcessed"])
	}
	if doc["runId"] != "abc-123" {
		t.Errorf("expected runId=abc-123, got %v", doc["runId"])
	}

	if bytes.Count(buf.Bytes(), []byte("\n")) != 1 {
		t.Errorf("EMF output must be a single line, got %q", buf.String())
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := New("Test").WithOutput(&buf).Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestRecorder_Count(t *testing.T) {
	rec := New("Test")
	rec.Count("Errors")

	if v, ok := rec.values["Errors"]; !ok || v != float64(1) {
		t.Errorf("expected Errors=1, got %v", v)
	}
	if m, ok := rec.metrics["Errors"]; !ok || m.Unit != UnitCount {
		t.Errorf("expected unit Count, got %v", m.Unit)
	}
}

func TestRecorder_Chaining(t *testing.T) {
	rec := New("Test").
		Dimension("Op", "test").
		Metric("Duration", 100, UnitMilliseconds).
		Count("Calls").
		Property("id", "xyz")

	if rec.dimensions["Op"] != "test" {
		t.Error("chaining Dimension failed")
	}
	if rec.values["Duration"] != float64(100) {
		t.Error("chaining Metric failed")
	}
	if rec.values["Calls"] != float64(1) {
		t.Error("chaining Count failed")
	}
	if rec.properties["id"] != "xyz" {
		t.Error("chaining Property failed")
	}
}

func TestRecorder_PropertyDoesNotShadowMetric(t *testing.T) {
	var buf bytes.Buffer
	rec := New("Test").WithOutput(&buf).
		Metric("Bytes", 10, UnitBytes).
		Property("Bytes", "ten")
	if err := rec.Flush(); err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc["Bytes"] != float64(10) {
		t.Errorf("expected metric value to win, got %v", doc["Bytes"])
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestRecorder_FlushWriteError(t *testing.T) {
	err := New("Test").WithOutput(failingWriter{}).Count("X").Flush()
	if err == nil {
		t.Error("expected write error")
	}
}

func TestRunObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewRunObserver(&buf, "run-1", true)

	task := transcode.Task{Format: filehandler.FormatJPG, Source: filehandler.SourceFile{RelPath: "a.png"}}
	obs.TaskFinished(task, transcode.Succeeded("a.jpg", 100, 50))
	obs.TaskFinished(task, transcode.Skipped("a.jpg"))
	obs.RunFinished(pipeline.Summary{
		Files:          1,
		Processed:      1,
		Skipped:        1,
		SavingsSum:     50,
		OriginalBytes:  100,
		OptimizedBytes: 50,
		Elapsed:        2 * time.Second,
	})

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid EMF line: %v\n%s", err, buf.String())
	}
	checks := map[string]any{
		"DryRun":         "true",
		"SourceFiles":    float64(1),
		"TasksProcessed": float64(1),
		"TasksSkipped":   float64(1),
		"TasksFailed":    float64(0),
		"AverageSavings": float64(50),
		"RunDurationMs":  float64(2000),
		"runId":          "run-1",
	}
	for k, want := range checks {
		if doc[k] != want {
			t.Errorf("%s = %v, want %v", k, doc[k], want)
		}
	}
	byFormat, ok := doc["outputsByFormat"].(map[string]any)
	if !ok || byFormat["jpeg"] != float64(1) {
		t.Errorf("outputsByFormat = %v, want jpeg=1", doc["outputsByFormat"])
	}
}
