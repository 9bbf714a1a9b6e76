package model_test

import (
	"errors"
	"testing"
	"time"

	model "github.com/okian/tally/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestAttemptValidate(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	convey.Convey("Given an Attempt", t, func() {
		valid := model.Attempt{
			ID:        "a-1",
			UserID:    "u-1",
			SubjectID: "biology",
			Score:     7,
			Total:     10,
			TS:        ts,
		}

		convey.Convey("When it is well formed", func() {
			convey.Convey("Then it should validate", func() {
				convey.So(valid.Validate(), convey.ShouldBeNil)
				convey.So(valid.Valid(), convey.ShouldBeTrue)
			})

			convey.Convey("Then the ratio should be score over total", func() {
				ratio, ok := valid.Ratio()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(ratio, convey.ShouldAlmostEqual, 0.7)
			})
		})

		convey.Convey("When total is zero", func() {
			a := valid
			a.Total = 0
			a.Score = 0

			convey.Convey("Then it should be rejected without a ratio", func() {
				convey.So(errors.Is(a.Validate(), model.ErrZeroTotal), convey.ShouldBeTrue)
				_, ok := a.Ratio()
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When score exceeds total", func() {
			a := valid
			a.Score = 11

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(a.Validate(), model.ErrScoreExceedsTotal), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When score is negative", func() {
			a := valid
			a.Score = -1

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(a.Validate(), model.ErrNegativeScore), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the timestamp is missing", func() {
			a := valid
			a.TS = time.Time{}

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(a.Validate(), model.ErrMissingTimestamp), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the subject is missing", func() {
			a := valid
			a.SubjectID = ""

			convey.Convey("Then it should still be aggregatable", func() {
				convey.So(a.Validate(), convey.ShouldBeNil)
				ratio, ok := a.Ratio()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(ratio, convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When answers do not cover every question", func() {
			a := valid
			a.Answers = []bool{true, false}

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(a.Validate(), model.ErrAnswersMismatch), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When answers match total", func() {
			a := valid
			a.Total = 3
			a.Score = 2
			a.Answers = []bool{true, false, true}

			convey.Convey("Then it should validate and count correct answers", func() {
				convey.So(a.Validate(), convey.ShouldBeNil)
				convey.So(a.CorrectAnswers(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the category is empty", func() {
			convey.Convey("Then it should fall back to uncategorized", func() {
				convey.So(valid.CategoryOrDefault(), convey.ShouldEqual, model.Uncategorized)
				a := valid
				a.Category = "cells"
				convey.So(a.CategoryOrDefault(), convey.ShouldEqual, "cells")
			})
		})
	})
}
