package scoring_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func items(impacts ...int) []model.SelectableItem {
	out := make([]model.SelectableItem, len(impacts))
	for i, r := range impacts {
		out[i] = model.SelectableItem{ID: string(rune('a' + i)), RiskImpact: r, Status: model.StatusValid}
	}
	return out
}

func TestAggregate(t *testing.T) {
	Convey("Given the default aggregator", t, func() {
		Convey("When the selection is empty", func() {
			score, err := scoring.Aggregate(nil)

			Convey("Then the score is zero", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 0)
			})
		})

		Convey("When items a=70 and b=90 are aggregated", func() {
			score, err := scoring.Aggregate(items(70, 90))

			Convey("Then the score is their mean", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 80)
			})
		})

		Convey("When the mean ends in .5", func() {
			score, err := scoring.Aggregate(items(0, 1))

			Convey("Then it rounds half away from zero", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 1)
			})
		})

		Convey("When the mean is below .5", func() {
			score, _ := scoring.Aggregate(items(10, 10, 11))
			So(score, ShouldEqual, 10)
		})

		Convey("When status is not valid", func() {
			in := items(40, 60)
			in[1].Status = model.StatusExpired
			score, err := scoring.Aggregate(in)

			Convey("Then the item still counts", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 50)
			})
		})

		Convey("When one item is out of range", func() {
			for _, bad := range []int{-1, 101} {
				score, err := scoring.Aggregate(items(50, bad))

				So(errors.Is(err, scoring.ErrInvalidItemData), ShouldBeTrue)
				So(score, ShouldEqual, 0)
				var ide *model.InvalidItemDataError
				So(errors.As(err, &ide), ShouldBeTrue)
				So(ide.ItemID, ShouldEqual, "b")
			}
		})

		Convey("When items are shuffled", func() {
			in := items(3, 17, 42, 99, 100, 0, 58)
			want, _ := scoring.Aggregate(in)
			rng := rand.New(rand.NewSource(7))

			Convey("Then the score does not change", func() {
				for i := 0; i < 20; i++ {
					rng.Shuffle(len(in), func(a, b int) { in[a], in[b] = in[b], in[a] })
					got, err := scoring.Aggregate(in)
					So(err, ShouldBeNil)
					So(got, ShouldEqual, want)
				}
			})
		})
	})
}

func TestAggregateProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(20)
		in := make([]int, n)
		sum := 0
		for j := range in {
			in[j] = rng.Intn(101)
			sum += in[j]
		}
		got, err := scoring.Aggregate(items(in...))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got < 0 || got > 100 {
			t.Fatalf("score %d out of range for %v", got, in)
		}
		// integer round-half-up matches math.Round for non-negative means
		want := (2*sum + n) / (2 * n)
		if got != want {
			t.Fatalf("aggregate(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestMeanAggregatorClamp(t *testing.T) {
	Convey("Given an aggregator clamped to [20,60]", t, func() {
		agg := scoring.NewMeanAggregator(scoring.WithClamp(20, 60))

		Convey("Then scores are held within the bounds", func() {
			hi, err := agg.Aggregate(items(100, 90))
			So(err, ShouldBeNil)
			So(hi, ShouldEqual, 60)

			lo, err := agg.Aggregate(items(0, 5))
			So(err, ShouldBeNil)
			So(lo, ShouldEqual, 20)
		})

		Convey("Then out-of-range input still fails rather than clamping", func() {
			_, err := agg.Aggregate(items(150))
			So(errors.Is(err, scoring.ErrInvalidItemData), ShouldBeTrue)
		})
	})

	Convey("Given an invalid clamp range", t, func() {
		agg := scoring.NewMeanAggregator(scoring.WithClamp(80, 10))

		Convey("Then the default bounds apply", func() {
			s, err := agg.Aggregate(items(100))
			So(err, ShouldBeNil)
			So(s, ShouldEqual, 100)
		})
	})

	Convey("Given the Aggregator interface", t, func() {
		var agg scoring.Aggregator = scoring.NewMeanAggregator()
		s, err := agg.Aggregate(items(70, 90))
		So(err, ShouldBeNil)
		So(s, ShouldEqual, 80)
	})
}
