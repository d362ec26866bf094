package metrics

import (
	"bytes"
	"go/format"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	TrainRuns.Inc()
	IncFallback("baseline")
	PlaceholderExports.Inc()
	RegistryFailures.Inc()
	IncCommandRun("train")
	SetArtifactBytes("tflite", 1024)
	ObserveTrainDuration(time.Now().Add(-1500 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"tankai_train_runs_total",
		`tankai_fallbacks_total{reason="baseline"}`,
		"tankai_placeholder_exports_total",
		"tankai_registry_failures_total",
		`tankai_command_runs_total{command="train"}`,
		`tankai_artifact_bytes{type="tflite"} 1024`,
		"tankai_train_duration_seconds",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	TrainRuns.Inc()
	path := filepath.Join(t.TempDir(), "tankai.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "tankai_train_runs_total") {
		t.Fatal("textfile missing counters")
	}
	if err := WriteTextfile(""); err != nil {
		t.Fatal(err)
	}
}

func TestSourcesAreGofmtClean(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		got, err := format.Source(src)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		if !bytes.Equal(got, src) {
			t.Fatalf("%s is not gofmt formatted", f)
		}
	}
}
