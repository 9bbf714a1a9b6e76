package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

const dump = `[
	{"id":"1","userId":"ada","subjectOrCardId":"algebra","category":"linear","score":5,"total":5,"timestamp":"2024-03-01T10:00:00Z"},
	{"id":"2","userId":"ada","subjectOrCardId":"algebra","category":"quadratic","score":1,"total":5,"timestamp":"2024-03-02T10:00:00Z"},
	{"id":"3","userId":"bob","subjectOrCardId":"cards","score":0,"total":3,"timestamp":"2024-03-01T10:00:00Z"},
	{"id":"4","userId":"bob","subjectOrCardId":"cards","score":"?"}
]`

func TestRun(t *testing.T) {
	convey.Convey("Given a document dump", t, func() {
		path := filepath.Join(t.TempDir(), "dump.json")
		convey.So(os.WriteFile(path, []byte(dump), 0o600), convey.ShouldBeNil)

		convey.Convey("When the report is built for everyone", func() {
			var out bytes.Buffer
			convey.So(run([]string{"-in", path, "-learning_at", "0.1"}, &out), convey.ShouldBeNil)

			var r Report
			convey.So(json.Unmarshal(out.Bytes(), &r), convey.ShouldBeNil)

			convey.Convey("Then every user should be summarized", func() {
				convey.So(r.Users, convey.ShouldHaveLength, 2)
				convey.So(r.Problems, convey.ShouldHaveLength, 1)
				convey.So(r.Policy.LearningAt, convey.ShouldEqual, 0.1)

				ada := r.Users["ada"]
				convey.So(ada.Subjects["algebra"].Count, convey.ShouldEqual, 2)
				convey.So(ada.Categories["linear"].Mastered, convey.ShouldEqual, 1)
				convey.So(ada.Categories["quadratic"].Learning, convey.ShouldEqual, 1)

				bob := r.Users["bob"]
				convey.So(bob.Subjects["cards"].Streak, convey.ShouldEqual, 0)
				convey.So(bob.Categories["uncategorized"].NotStarted, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the report is filtered to one user", func() {
			var out bytes.Buffer
			convey.So(run([]string{"-in", path, "-user", "bob"}, &out), convey.ShouldBeNil)

			var r Report
			convey.So(json.Unmarshal(out.Bytes(), &r), convey.ShouldBeNil)
			convey.So(r.Users, convey.ShouldHaveLength, 1)
			convey.So(r.Users, convey.ShouldContainKey, "bob")
		})

		convey.Convey("When the thresholds are inconsistent", func() {
			var out bytes.Buffer
			err := run([]string{"-in", path, "-mastered_at", "0.3", "-learning_at", "0.6"}, &out)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given no input", t, func() {
		var out bytes.Buffer
		convey.So(run(nil, &out), convey.ShouldNotBeNil)
	})
}
