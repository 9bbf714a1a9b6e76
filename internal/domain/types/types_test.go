package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/tally/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestImportReport(t *testing.T) {
	Convey("Given two import reports", t, func() {
		a := types.ImportReport{Accepted: 3, Duplicates: 1}
		b := types.ImportReport{Accepted: 2, Invalid: 2, Errors: []string{"row 4: zero total", "row 9: missing subject"}}

		Convey("When merging them", func() {
			a.Merge(b)

			Convey("Then counts and errors should add up", func() {
				So(a.Accepted, ShouldEqual, 5)
				So(a.Duplicates, ShouldEqual, 1)
				So(a.Invalid, ShouldEqual, 2)
				So(a.Total(), ShouldEqual, 8)
				So(a.Errors, ShouldResemble, b.Errors)
			})
		})

		Convey("When encoding a report without errors", func() {
			raw, err := json.Marshal(types.ImportReport{Accepted: 1})

			Convey("Then the errors field should be omitted", func() {
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `{"accepted":1,"duplicates":0,"invalid":0}`)
			})
		})
	})
}

func TestAck(t *testing.T) {
	Convey("Given a duplicate acknowledgement", t, func() {
		raw, err := json.Marshal(types.Ack{ID: "a1", Duplicate: true})

		Convey("Then it should encode with snake case keys", func() {
			So(err, ShouldBeNil)
			So(string(raw), ShouldEqual, `{"id":"a1","duplicate":true}`)
		})
	})
}
