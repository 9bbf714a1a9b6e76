package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Addr = "127.0.0.1:0"
	cfg.WorkerCount = 2
	cfg.QueueSize = 100
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestApplication(t *testing.T) {
	convey.Convey("Given a running application", t, func() {
		ctx := context.Background()
		app, err := newApplication(ctx, testConfig(), logger.Get())
		convey.So(err, convey.ShouldBeNil)
		defer app.shutdown(ctx)

		ts := httptest.NewServer(app.server.Handler)
		defer ts.Close()

		convey.Convey("Then the scheduler should be running with the default jobs", func() {
			convey.So(app.sched.IsRunning(), convey.ShouldBeTrue)
			convey.So(app.sched.Jobs(), convey.ShouldResemble, []string{"stats", "system"})
		})

		convey.Convey("Then health, stats and docs should be served", func() {
			for _, path := range []string{"/healthz", "/stats", "/openapi.yaml", "/api-docs"} {
				resp, err := http.Get(ts.URL + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("When an attempt is posted", func() {
			body := `{"id":"a-1","user_id":"u-1","subject_id":"bio","score":3,"total":4,"ts":"2024-03-01T10:00:00Z"}`
			resp, err := http.Post(ts.URL+"/attempts", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)

			convey.Convey("Then it should eventually show up in the summary", func() {
				var summary map[string]any
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					summary = getJSON(ts.URL + "/users/u-1/subjects/bio/progress")
					if summary["count"] == float64(1) {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				convey.So(summary["count"], convey.ShouldEqual, float64(1))
				convey.So(summary["best_score"], convey.ShouldEqual, float64(3))
			})
		})
	})
}

func TestSeed(t *testing.T) {
	convey.Convey("Given a JSON export on disk", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "attempts.json")
		docs := `[
			{"id":"s1","userId":"u","subjectOrCardId":"math","category":"linear","score":4,"total":5,"timestamp":"2024-03-01T10:00:00Z"},
			{"id":"s2","userId":"u","subjectOrCardId":"math","category":"linear","score":5,"total":5,"timestamp":"2024-03-02T10:00:00Z"},
			{"id":"s2","userId":"u","subjectOrCardId":"math","score":5,"total":5,"timestamp":"2024-03-02T10:00:00Z"},
			{"id":"s3","userId":"u","subjectOrCardId":"math","score":"lots"}
		]`
		convey.So(os.WriteFile(path, []byte(docs), 0o600), convey.ShouldBeNil)

		app, err := newApplication(ctx, testConfig(), logger.Get())
		convey.So(err, convey.ShouldBeNil)
		defer app.shutdown(ctx)

		convey.Convey("When it is imported at startup", func() {
			convey.So(app.seed(ctx, path), convey.ShouldBeNil)

			convey.Convey("Then the summary should reflect the accepted attempts", func() {
				s, err := app.svc.Summary(ctx, "u", "math")
				convey.So(err, convey.ShouldBeNil)
				convey.So(s.Count, convey.ShouldEqual, 2)
				convey.So(*s.BestScore, convey.ShouldEqual, 5)
				convey.So(s.Streak, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the file does not exist", func() {
			convey.So(app.seed(ctx, filepath.Join(t.TempDir(), "missing.json")), convey.ShouldNotBeNil)
		})
	})
}

func TestApplicationRejectsBadStore(t *testing.T) {
	convey.Convey("Given a config with an unknown store driver", t, func() {
		cfg := testConfig()
		cfg.Store.Driver = "mongo"

		convey.Convey("Then the application should not start", func() {
			_, err := newApplication(context.Background(), cfg, logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func getJSON(url string) map[string]any {
	resp, err := http.Get(url) //nolint:gosec // test server URL
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return out
}

func TestMetricsOptions(t *testing.T) {
	convey.Convey("Given a metrics section with a custom namespace and label", t, func() {
		mc := config.New().Metrics
		mc.Namespace = "study"
		mc.Subsystem = "api"
		mc.Labels = map[string]string{"region": "eu"}

		reg := prometheus.NewRegistry()
		metrics.NewManager(append(metricsOptions(mc), metrics.WithPrometheusRegistry(reg))...)

		convey.Convey("Then the series should carry the configured names", func() {
			families, err := reg.Gather()
			convey.So(err, convey.ShouldBeNil)

			var found bool
			for _, f := range families {
				if f.GetName() != "study_api_attempts_accepted_total" {
					continue
				}
				found = true
				convey.So(f.GetMetric()[0].GetLabel()[0].GetValue(), convey.ShouldEqual, "eu")
			}
			convey.So(found, convey.ShouldBeTrue)
		})
	})
}
