package eligibility_test

import (
	"testing"

	"github.com/okian/proofkit/internal/domain/eligibility"
	"github.com/okian/proofkit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCheck(t *testing.T) {
	Convey("Given the eligibility validator", t, func() {
		Convey("When the selection is empty", func() {
			res := eligibility.Check(nil)

			Convey("Then only the empty rule fails", func() {
				So(res.Eligible, ShouldBeFalse)
				So(res.Reasons, ShouldResemble, []string{eligibility.ReasonEmpty})
				So(res.IneligibleIDs, ShouldBeEmpty)
			})
		})

		Convey("When every item is valid", func() {
			res := eligibility.Check([]model.SelectableItem{
				{ID: "a", RiskImpact: 70, Status: model.StatusValid},
				{ID: "b", RiskImpact: 90, Status: model.StatusValid},
			})

			Convey("Then the selection is eligible", func() {
				So(res.Eligible, ShouldBeTrue)
				So(res.Reasons, ShouldBeEmpty)
			})
		})

		Convey("When a single item is expired", func() {
			res := eligibility.Check([]model.SelectableItem{{ID: "a", Status: model.StatusExpired}})

			Convey("Then the reason is exactly the validity rule", func() {
				So(res.Eligible, ShouldBeFalse)
				So(res.Reasons, ShouldResemble, []string{"all items must be valid"})
				So(res.IneligibleIDs, ShouldResemble, []string{"a"})
			})
		})

		Convey("When several items are not valid", func() {
			res := eligibility.Check([]model.SelectableItem{
				{ID: "a", Status: model.StatusPending},
				{ID: "b", Status: model.StatusValid},
				{ID: "c", Status: model.StatusExpired},
			})

			Convey("Then the validity reason appears once and lists each offender", func() {
				So(res.Reasons, ShouldResemble, []string{eligibility.ReasonNotAllValid})
				So(res.IneligibleIDs, ShouldResemble, []string{"a", "c"})
			})
		})

		Convey("When ids repeat and an item is pending", func() {
			res := eligibility.Check([]model.SelectableItem{
				{ID: "a", Status: model.StatusValid},
				{ID: "a", Status: model.StatusPending},
				{ID: "a", Status: model.StatusValid},
			})

			Convey("Then both rules are reported, each once", func() {
				So(res.Eligible, ShouldBeFalse)
				So(res.Reasons, ShouldResemble, []string{eligibility.ReasonNotAllValid, eligibility.ReasonDuplicateIDs})
			})
		})
	})
}
