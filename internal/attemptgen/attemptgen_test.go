package attemptgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/source"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/progress"
	"github.com/okian/tally/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:       url,
		NumAttempts:   300,
		Users:         4,
		Subjects:      3,
		DuplicateRate: 0.1,
		InvalidRate:   0.05,
		Workers:       8,
		Timeout:       5 * time.Second,
		SettleTimeout: 5 * time.Second,
		Seed:          42,
	}
}

func TestGenerate(t *testing.T) {
	convey.Convey("Given a seeded configuration", t, func() {
		cfg := testConfig("")

		convey.Convey("When a batch is generated twice", func() {
			a, b := Generate(cfg), Generate(cfg)

			convey.Convey("Then both batches should be identical", func() {
				convey.So(a, convey.ShouldResemble, b)
			})

			convey.Convey("Then every distinct attempt should be valid and every invalid one rejected", func() {
				convey.So(a.Valid, convey.ShouldHaveLength, 300)
				convey.So(a.Invalid, convey.ShouldHaveLength, 15)
				seen := make(map[string]bool)
				for i := range a.Valid {
					convey.So(a.Valid[i].Validate(), convey.ShouldBeNil)
					seen[a.Valid[i].ID] = true
				}
				convey.So(seen, convey.ShouldHaveLength, 300)
				for i := range a.Invalid {
					convey.So(a.Invalid[i].Validate(), convey.ShouldNotBeNil)
				}
				for i := range a.Repeats {
					convey.So(seen[a.Repeats[i].ID], convey.ShouldBeTrue)
				}
			})
		})
	})
}

func TestCompare(t *testing.T) {
	convey.Convey("Given two summaries", t, func() {
		best, other := 3, 4
		avg := 0.5
		want := progress.Summary{Count: 2, BestScore: &best, AverageScore: &avg}

		convey.So(compare(want, want), convey.ShouldBeEmpty)

		got := want
		got.BestScore = &other
		convey.So(compare(want, got), convey.ShouldEqual, "best_score differs")

		got = want
		got.AverageScore = nil
		convey.So(compare(want, got), convey.ShouldEqual, "average_score differs")

		got = want
		got.Count = 1
		convey.So(compare(want, got), convey.ShouldEqual, "count want 2 got 1")
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a tally server", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(1000))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		ts := httptest.NewServer(mux)
		defer ts.Close()

		convey.Convey("When a run is executed against it", func() {
			cfg := testConfig(ts.URL)
			cfg.OutputFile = filepath.Join(t.TempDir(), "attempts.json")
			stats, err := Run(ctx, cfg)

			convey.Convey("Then every summary should match the local computation", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.Accepted, convey.ShouldEqual, 300)
				convey.So(stats.Rejected, convey.ShouldEqual, 15)
				convey.So(stats.Duplicates, convey.ShouldBeGreaterThan, 0)
				convey.So(stats.Failed, convey.ShouldEqual, 0)
				convey.So(stats.Mismatches, convey.ShouldEqual, 0)
				convey.So(stats.Checked, convey.ShouldBeGreaterThan, 0)
			})

			convey.Convey("Then the saved dump should decode back into the same attempts", func() {
				attempts, problems, err := source.LoadFile(cfg.OutputFile)
				convey.So(err, convey.ShouldBeNil)
				convey.So(problems, convey.ShouldBeEmpty)
				convey.So(attempts, convey.ShouldHaveLength, 300)
			})

			convey.Convey("Then a second run with the same seed should only see duplicates", func() {
				stats, err := Run(ctx, cfg)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(stats.Accepted, convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given no server", t, func() {
		cfg := testConfig("http://127.0.0.1:1")
		cfg.Timeout = 200 * time.Millisecond
		_, err := Run(context.Background(), cfg)
		convey.So(err, convey.ShouldNotBeNil)
	})
}
