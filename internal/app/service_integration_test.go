package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/mastery"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/progress"
	. "github.com/smartystreets/goconvey/convey"
)

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service backed by SQLite", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		dsn := filepath.Join(t.TempDir(), "tally.db")
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(1000),
			service.WithStoreDriver(repository.DriverSQLite, dsn),
		)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		Convey("When attempts for several subjects arrive out of order", func() {
			var sent []model.Attempt
			scores := []int{7, 0, 9, 4, 10, 3, 8, 0, 6, 5}
			for i, score := range scores {
				// odd attempts are older than the ones before them
				offset := time.Duration(i) * time.Minute
				if i%2 == 1 {
					offset = -offset
				}
				a := quiz(fmt.Sprintf("att-%d", i), "ada", "algebra", score, 10, offset)
				a.Category = []string{"linear", "quadratic"}[i%2]
				sent = append(sent, a)
				_, err := svc.Record(ctx, a)
				So(err, ShouldBeNil)
			}
			So(eventually(func() bool {
				return svc.GetStats()["processed"] == int64(len(scores))
			}), ShouldBeTrue)

			Convey("Then the summary should equal a batch recompute", func() {
				got, err := svc.Summary(ctx, "ada", "algebra")
				So(err, ShouldBeNil)
				want := progress.Summarize(sent)
				So(got.Count, ShouldEqual, want.Count)
				So(*got.AverageScore, ShouldAlmostEqual, *want.AverageScore)
				So(*got.AveragePercent, ShouldAlmostEqual, *want.AveragePercent)
				So(*got.BestScore, ShouldEqual, *want.BestScore)
				So(*got.MostRecentScore, ShouldEqual, *want.MostRecentScore)
				So(got.Streak, ShouldEqual, want.Streak)
			})

			Convey("Then the breakdown should classify every attempt", func() {
				bd, err := svc.Breakdown(ctx, "ada", nil)
				So(err, ShouldBeNil)
				So(bd["linear"].Total, ShouldEqual, 5)
				So(bd["quadratic"].Total, ShouldEqual, 5)
				So(bd["linear"].Classified(), ShouldEqual, 5)
			})

			Convey("Then a stricter policy should move attempts out of mastered", func() {
				strict, err := mastery.NewThresholdPolicy(mastery.WithMasteredAt(1))
				So(err, ShouldBeNil)
				loose, _ := svc.Breakdown(ctx, "ada", nil)
				tight, _ := svc.Breakdown(ctx, "ada", strict)
				So(tight["linear"].Mastered, ShouldBeLessThanOrEqualTo, loose["linear"].Mastered)
				So(tight["linear"].Mastered, ShouldEqual, 1)
			})

			Convey("Then other users should see nothing", func() {
				s, err := svc.Summary(ctx, "grace", "algebra")
				So(err, ShouldBeNil)
				So(s.Empty(), ShouldBeTrue)
			})
		})
	})
}
