package compose_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/proofkit/internal/domain/compose"
	"github.com/okian/proofkit/internal/domain/crossref"
	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/internal/domain/proofhash"
	"github.com/okian/proofkit/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func validItems() []model.SelectableItem {
	return []model.SelectableItem{
		{ID: "a", Kind: model.KindDocument, ContentHash: "sha256:aaaa", RiskImpact: 70, Status: model.StatusValid},
		{ID: "b", Kind: model.KindBadge, ContentHash: "sha256:bbbb", RiskImpact: 90, Status: model.StatusValid},
	}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("art-%d", n)
	}
}

func TestCompose(t *testing.T) {
	Convey("Given a composer with a fixed clock", t, func() {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		c := compose.New(
			compose.WithClock(func() time.Time { return at }),
			compose.WithIDGenerator(sequentialIDs()),
		)

		Convey("When composing items a and b", func() {
			art, err := c.Compose(validItems())

			Convey("Then an artifact is minted with the aggregated score and proof hash", func() {
				So(err, ShouldBeNil)
				So(art.ID, ShouldEqual, "art-1")
				So(art.ItemIDs, ShouldResemble, []string{"a", "b"})
				So(art.RiskScore, ShouldEqual, 80)
				So(art.CreatedAt, ShouldEqual, at)
				want, _ := proofhash.Derive(validItems())
				So(art.ProofHash, ShouldEqual, want)
				So(art.Validation, ShouldBeNil)
			})
		})

		Convey("When the same items are composed twice in different orders", func() {
			in := validItems()
			first, err1 := c.Compose(in)
			second, err2 := c.Compose([]model.SelectableItem{in[1], in[0]})

			Convey("Then ids differ but score and proof hash match", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first.ID, ShouldNotEqual, second.ID)
				So(first.ProofHash, ShouldEqual, second.ProofHash)
				So(first.RiskScore, ShouldEqual, second.RiskScore)
				So(second.ItemIDs, ShouldResemble, []string{"b", "a"})
			})
		})

		Convey("When an item is expired", func() {
			art, err := c.Compose([]model.SelectableItem{{ID: "a", ContentHash: "x", RiskImpact: 10, Status: model.StatusExpired}})

			Convey("Then composition fails as ineligible with the validity reason", func() {
				So(errors.Is(err, compose.ErrIneligible), ShouldBeTrue)
				var ie *compose.IneligibleError
				So(errors.As(err, &ie), ShouldBeTrue)
				So(ie.Reasons, ShouldResemble, []string{"all items must be valid"})
				So(art, ShouldResemble, model.ComposedArtifact{})
			})
		})

		Convey("When the selection is empty", func() {
			_, err := c.Compose(nil)
			So(errors.Is(err, compose.ErrIneligible), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "selection must not be empty")
		})

		Convey("When an item carries out of range risk", func() {
			in := validItems()
			in[0].RiskImpact = 140
			art, err := c.Compose(in)

			Convey("Then it fails with invalid item data and no score is substituted", func() {
				So(errors.Is(err, scoring.ErrInvalidItemData), ShouldBeTrue)
				So(art.ID, ShouldBeEmpty)
			})
		})

		Convey("When an item has no content hash", func() {
			in := validItems()
			in[1].ContentHash = ""
			_, err := c.Compose(in)
			So(errors.Is(err, model.ErrInvalidItemData), ShouldBeTrue)
		})

		Convey("When ineligible and malformed at once", func() {
			_, err := c.Compose([]model.SelectableItem{{ID: "a", RiskImpact: 500, Status: model.StatusPending}})

			Convey("Then eligibility is reported first", func() {
				So(errors.Is(err, compose.ErrIneligible), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalidItemData), ShouldBeFalse)
			})
		})
	})

	Convey("Given a composer with default options", t, func() {
		c := compose.New()
		art, err := c.Compose(validItems())

		Convey("Then ids are uuids and timestamps are UTC", func() {
			So(err, ShouldBeNil)
			So(len(art.ID), ShouldEqual, 36)
			So(art.CreatedAt.Location(), ShouldEqual, time.UTC)
		})
	})
}

func TestComposeAndValidate(t *testing.T) {
	Convey("Given a composer with a cross-document validator", t, func() {
		v, err := crossref.New()
		So(err, ShouldBeNil)
		c := compose.New(compose.WithValidator(v), compose.WithIDGenerator(sequentialIDs()))
		ctx := context.Background()

		Convey("When validation finds a dangling reference", func() {
			art, err := c.ComposeAndValidate(ctx, validItems(), []model.Reference{
				{SourceID: "a", TargetID: "z", Relationship: model.RelReferences},
			})

			Convey("Then the artifact carries the validation result", func() {
				So(err, ShouldBeNil)
				So(art.Validation, ShouldNotBeNil)
				So(art.Validation.Confidence, ShouldEqual, 95)
				So(art.Validation.IsValid, ShouldBeTrue)
			})
		})

		Convey("When a declared conflict is not corroborated", func() {
			art, err := c.ComposeAndValidate(ctx, validItems(), []model.Reference{
				{SourceID: "a", TargetID: "b", Relationship: model.RelConflicts},
			})

			Convey("Then a low issue is attached and the result stays valid", func() {
				So(err, ShouldBeNil)
				So(art.ID, ShouldNotBeEmpty)
				So(art.Validation.Severities(), ShouldResemble, []string{"low"})
				So(art.Validation.IsValid, ShouldBeTrue)
			})
		})

		Convey("When the selection is ineligible", func() {
			in := append(validItems(), model.SelectableItem{ID: "old", ContentHash: "sha256:cccc", RiskImpact: 10, Status: model.StatusExpired})
			_, err := c.ComposeAndValidate(ctx, in, []model.Reference{
				{SourceID: "old", TargetID: "a", Relationship: model.RelSupersedes},
			})

			Convey("Then composition fails regardless of validation", func() {
				So(errors.Is(err, compose.ErrIneligible), ShouldBeTrue)
			})
		})

		Convey("When items share content under a declared conflict", func() {
			in := validItems()
			in[1].ContentHash = "sha256:aaaa-0011223344556677"
			in[0].ContentHash = "sha256:0011223344556677"
			art, err := c.ComposeAndValidate(ctx, in, []model.Reference{
				{SourceID: "a", TargetID: "b", Relationship: model.RelConflicts},
			})

			Convey("Then the artifact is composed but marked invalid", func() {
				So(err, ShouldBeNil)
				So(art.Validation.IsValid, ShouldBeFalse)
				So(art.Validation.Issues[0].Severity, ShouldEqual, model.SeverityHigh)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			art, err := c.ComposeAndValidate(cctx, validItems(), []model.Reference{
				{SourceID: "a", TargetID: "b", Relationship: model.RelReferences},
			})

			Convey("Then the composition still succeeds with its validation", func() {
				So(err, ShouldBeNil)
				So(art.ID, ShouldNotBeEmpty)
				So(art.Validation, ShouldNotBeNil)
				So(art.Validation.IsValid, ShouldBeTrue)
			})
		})
	})

	Convey("Given a composer without a validator", t, func() {
		c := compose.New()
		art, err := c.ComposeAndValidate(context.Background(), validItems(), nil)
		So(err, ShouldBeNil)
		So(art.Validation, ShouldBeNil)
	})
}

func TestComposeConcurrent(t *testing.T) {
	c := compose.New()
	want, err := c.Compose(validItems())
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Compose(validItems())
			if err != nil {
				errs <- err
				return
			}
			if got.ProofHash != want.ProofHash || got.RiskScore != want.RiskScore {
				errs <- fmt.Errorf("non-deterministic composition: %+v", got)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

type fixedAggregator int

func (f fixedAggregator) Aggregate([]model.SelectableItem) (int, error) { return int(f), nil }

func TestWithAggregator(t *testing.T) {
	c := compose.New(compose.WithAggregator(fixedAggregator(42)))
	art, err := c.Compose(validItems())
	if err != nil {
		t.Fatal(err)
	}
	if art.RiskScore != 42 {
		t.Fatalf("risk score = %d, want 42", art.RiskScore)
	}
}
