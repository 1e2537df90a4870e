package service_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/proofkit/internal/adapters/catalog"
	"github.com/okian/proofkit/internal/adapters/mq/queue"
	"github.com/okian/proofkit/internal/adapters/repository"
	service "github.com/okian/proofkit/internal/app"
	"github.com/okian/proofkit/internal/domain/compose"
	"github.com/okian/proofkit/internal/domain/crossref"
	"github.com/okian/proofkit/internal/domain/dedupe"
	"github.com/okian/proofkit/internal/domain/eligibility"
	"github.com/okian/proofkit/internal/domain/ledger"
	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/pkg/logger"
)

func init() {
	if err := logger.InitWithWriter(io.Discard, logger.FormatText); err != nil {
		panic(err)
	}
}

func testCatalog() *catalog.Static {
	c, err := catalog.NewStatic([]model.SelectableItem{
		{ID: "soc2", Name: "SOC 2 report", Kind: model.KindDocument, ContentHash: "sha256:aa11bb22cc33dd44", RiskImpact: 20, Status: model.StatusValid},
		{ID: "pentest", Name: "Pen test", Kind: model.KindDocument, ContentHash: "sha256:ee55ff66aa77bb88", RiskImpact: 45, Status: model.StatusValid},
		{ID: "iso-badge", Name: "ISO badge", Kind: model.KindBadge, ContentHash: "sha256:0102030405060708", RiskImpact: 10, Status: model.StatusValid},
		{ID: "old-policy", Name: "Old policy", Kind: model.KindDocument, ContentHash: "sha256:99aa99aa99aa99aa", RiskImpact: 70, Status: model.StatusExpired},
		{ID: "broken", Name: "Broken", Kind: model.KindDocument, ContentHash: "sha256:1234", RiskImpact: 140, Status: model.StatusValid},
	}, []model.Reference{
		{SourceID: "pentest", TargetID: "soc2", Relationship: model.RelReferences},
		{SourceID: "iso-badge", TargetID: "missing-doc", Relationship: model.RelReferences},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func startService(opts ...service.Option) *service.Service {
	opts = append([]service.Option{
		service.WithCatalog(testCatalog()),
		service.WithWorkerCount(4),
		service.WithQueueSize(1000),
		service.WithLogger(logger.Nop()),
	}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Operations before Start report ErrNotStarted", func() {
			_, err := svc.Compose(ctx, model.Selection{ItemIDs: []string{"x"}})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Submit(ctx, model.VerificationEvent{ArtifactID: "a"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Start and Stop are idempotent", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("and a stopped service refuses new events", func() {
				_, err := svc.Submit(ctx, model.VerificationEvent{ArtifactID: "a", ActorLabel: "x", Action: model.ActionView})
				So(errors.Is(err, queue.ErrFull), ShouldBeTrue)
			})
		})

		Convey("Invalid validator settings fail Start", func() {
			bad := service.New(
				service.WithLogger(logger.Nop()),
				service.WithCrossrefOptions(crossref.WithThreshold(101)),
			)
			So(bad.Start(ctx), ShouldNotBeNil)
		})
	})
}

func TestService_Compose(t *testing.T) {
	Convey("Given a started service over a catalog", t, func() {
		ctx := context.Background()
		svc := startService()
		defer svc.Stop(ctx)

		Convey("When composing valid items by id", func() {
			art, err := svc.Compose(ctx, model.Selection{ItemIDs: []string{"soc2", "pentest", "iso-badge"}})

			Convey("Then the artifact is scored, hashed, validated and stored", func() {
				So(err, ShouldBeNil)
				So(art.RiskScore, ShouldEqual, 25)
				So(art.ProofHash, ShouldStartWith, "sha256:")
				So(art.ItemIDs, ShouldResemble, []string{"soc2", "pentest", "iso-badge"})
				So(art.Validation, ShouldNotBeNil)
				// iso-badge -> missing-doc is dangling.
				So(art.Validation.Confidence, ShouldEqual, 95)
				So(art.Validation.IsValid, ShouldBeTrue)

				stored, err := svc.Artifact(ctx, art.ID)
				So(err, ShouldBeNil)
				So(stored.ProofHash, ShouldEqual, art.ProofHash)
			})

			Convey("And composing the same items again yields a new artifact with the same proof", func() {
				again, err := svc.Compose(ctx, model.Selection{ItemIDs: []string{"iso-badge", "pentest", "soc2"}})
				So(err, ShouldBeNil)
				So(again.ID, ShouldNotEqual, art.ID)
				So(again.ProofHash, ShouldEqual, art.ProofHash)
				So(again.RiskScore, ShouldEqual, art.RiskScore)

				list, err := svc.Artifacts(ctx, 10)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 2)
				So(list[0].ID, ShouldEqual, again.ID)
			})
		})

		Convey("When the selection contains an expired item", func() {
			_, err := svc.Compose(ctx, model.Selection{ItemIDs: []string{"soc2", "old-policy"}})

			Convey("Then composition is refused with the reason", func() {
				var inel *compose.IneligibleError
				So(errors.As(err, &inel), ShouldBeTrue)
				So(inel.Reasons, ShouldContain, eligibility.ReasonNotAllValid)
				So(svc.GetStats()["artifacts_stored"], ShouldEqual, 0)
			})
		})

		Convey("When an item has out of range risk", func() {
			_, err := svc.Compose(ctx, model.Selection{ItemIDs: []string{"broken"}})
			So(errors.Is(err, model.ErrInvalidItemData), ShouldBeTrue)
		})

		Convey("When an id is unknown", func() {
			_, err := svc.Compose(ctx, model.Selection{ItemIDs: []string{"soc2", "nope", "nada"}})
			var unk *catalog.UnknownItemError
			So(errors.As(err, &unk), ShouldBeTrue)
			So(unk.IDs, ShouldResemble, []string{"nope", "nada"})
		})

		Convey("When composing inline items", func() {
			art, err := svc.Compose(ctx, model.Selection{Items: []model.SelectableItem{
				{ID: "x", Kind: model.KindDocument, ContentHash: "h-x", RiskImpact: 1, Status: model.StatusValid},
				{ID: "y", Kind: model.KindBadge, ContentHash: "h-y", RiskImpact: 2, Status: model.StatusValid},
			}})
			So(err, ShouldBeNil)
			So(art.RiskScore, ShouldEqual, 2)
			So(art.Validation.Issues, ShouldBeEmpty)
		})

		Convey("When checking eligibility", func() {
			res, err := svc.CheckEligibility(ctx, model.Selection{})
			So(err, ShouldBeNil)
			So(res.Eligible, ShouldBeFalse)
			So(res.Reasons, ShouldResemble, []string{eligibility.ReasonEmpty})

			res, err = svc.CheckEligibility(ctx, model.Selection{ItemIDs: []string{"old-policy", "old-policy"}})
			So(err, ShouldBeNil)
			So(res.Reasons, ShouldResemble, []string{eligibility.ReasonNotAllValid, eligibility.ReasonDuplicateIDs})
		})

		Convey("When validating with explicit references", func() {
			res, err := svc.Validate(ctx, model.Selection{
				ItemIDs: []string{"soc2", "old-policy"},
				References: []model.Reference{
					{SourceID: "old-policy", TargetID: "soc2", Relationship: model.RelSupersedes},
				},
			})
			So(err, ShouldBeNil)
			So(res.IsValid, ShouldBeFalse)
			So(res.Issues, ShouldHaveLength, 1)
			So(res.Issues[0].Severity, ShouldEqual, model.SeverityCritical)
		})
	})
}

func TestService_VerifyArtifact(t *testing.T) {
	Convey("Given a stored artifact", t, func() {
		ctx := context.Background()
		cat := testCatalog()
		svc := startService(service.WithCatalog(cat))
		defer svc.Stop(ctx)

		art, err := svc.Compose(ctx, model.Selection{ItemIDs: []string{"soc2", "pentest"}})
		So(err, ShouldBeNil)

		Convey("Verification matches while the catalog is unchanged", func() {
			check, err := svc.VerifyArtifact(ctx, art.ID)
			So(err, ShouldBeNil)
			So(check.Match, ShouldBeTrue)
			So(check.Recomputed, ShouldEqual, art.ProofHash)
		})

		Convey("A status change does not affect the proof", func() {
			items, _ := cat.Items(ctx)
			soc := items["soc2"]
			soc.Status = model.StatusExpired
			So(cat.Replace([]model.SelectableItem{soc, items["pentest"]}, nil), ShouldBeNil)

			check, err := svc.VerifyArtifact(ctx, art.ID)
			So(err, ShouldBeNil)
			So(check.Match, ShouldBeTrue)
		})

		Convey("A changed risk impact breaks the proof", func() {
			items, _ := cat.Items(ctx)
			soc := items["soc2"]
			soc.RiskImpact = 21
			So(cat.Replace([]model.SelectableItem{soc, items["pentest"]}, nil), ShouldBeNil)

			check, err := svc.VerifyArtifact(ctx, art.ID)
			So(err, ShouldBeNil)
			So(check.Match, ShouldBeFalse)
		})

		Convey("An unknown artifact is not found", func() {
			_, err := svc.VerifyArtifact(ctx, "ghost")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Events(t *testing.T) {
	Convey("Given a started service with an artifact", t, func() {
		ctx := context.Background()
		svc := startService()
		art, err := svc.Compose(ctx, model.Selection{ItemIDs: []string{"soc2"}})
		So(err, ShouldBeNil)

		base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
		events := []model.VerificationEvent{
			{ID: "e1", ArtifactID: art.ID, ActorLabel: "bank", Action: model.ActionView, Timestamp: base},
			{ID: "e2", ArtifactID: art.ID, ActorLabel: "bank", Action: model.ActionDownload, Timestamp: base.Add(time.Minute)},
			{ID: "e3", ArtifactID: art.ID, ActorLabel: "insurer", Action: model.ActionVerify, Timestamp: base.Add(2 * time.Minute)},
		}
		for _, ev := range events {
			So(svc.SeenAndRecord(ctx, dedupe.Key(art.ID, ev.ID)), ShouldBeFalse)
			_, err := svc.Submit(ctx, ev)
			So(err, ShouldBeNil)
		}
		So(svc.SeenAndRecord(ctx, dedupe.Key(art.ID, "e1")), ShouldBeTrue)

		// Earlier than e3: refused before it is queued.
		_, lateErr := svc.Submit(ctx, model.VerificationEvent{ID: "e4", ArtifactID: art.ID, ActorLabel: "late", Action: model.ActionView, Timestamp: base})

		// Passes the order check but the ledger refuses it.
		So(svc.SeenAndRecord(ctx, dedupe.Key(art.ID, "e5")), ShouldBeFalse)
		_, err = svc.Submit(ctx, model.VerificationEvent{ID: "e5", ArtifactID: art.ID, Action: model.ActionView, Timestamp: base.Add(3 * time.Minute)})
		So(err, ShouldBeNil)
		So(svc.Stop(ctx), ShouldBeNil)

		Convey("Then an out of order event is refused on submission", func() {
			So(errors.Is(lateErr, ledger.ErrOutOfOrderEvent), ShouldBeTrue)
			var ooe *ledger.OutOfOrderEventError
			So(errors.As(lateErr, &ooe), ShouldBeTrue)
			So(ooe.LastTime.Equal(base.Add(2*time.Minute)), ShouldBeTrue)
		})

		Convey("Then the ledger holds the accepted events in order", func() {
			st, err := svc.LedgerStats(ctx, art.ID)
			So(err, ShouldBeNil)
			So(st.Total, ShouldEqual, 3)
			So(st.UniqueVerifiers, ShouldEqual, 2)
			So(st.ByAction[model.ActionVerify], ShouldEqual, 1)
			So(st.LastEventAt.Equal(base.Add(2*time.Minute)), ShouldBeTrue)

			recent, err := svc.RecentEvents(ctx, art.ID, 2)
			So(err, ShouldBeNil)
			So(recent, ShouldHaveLength, 2)
			So(recent[0].ID, ShouldEqual, "e3")
			So(recent[1].ID, ShouldEqual, "e2")
		})

		Convey("And an event the ledger refused can be submitted again", func() {
			So(svc.SeenAndRecord(ctx, dedupe.Key(art.ID, "e5")), ShouldBeFalse)
		})

		Convey("And event ids are scoped to their artifact", func() {
			So(svc.SeenAndRecord(ctx, dedupe.Key("other", "e1")), ShouldBeFalse)
		})

		Convey("And unknown artifacts are reported", func() {
			_, err := svc.LedgerStats(ctx, "ghost")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = svc.RecentEvents(ctx, art.ID, 0)
			So(err, ShouldNotBeNil)
		})
	})
}
