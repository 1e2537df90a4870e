package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/proofkit/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 70)
			convey.So(cfg.MinConflictOverlap, convey.ShouldEqual, 8)
			convey.So(cfg.SeverityWeights["critical"], convey.ShouldEqual, 30)
			convey.So(cfg.DataDir, convey.ShouldBeEmpty)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the queue size is zero", func() {
			cfg.EventQueueSize = 0
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the threshold is above 100", func() {
			cfg.ConfidenceThreshold = 101
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the log format is unknown", func() {
			cfg.LogFormat = "xml"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When severity weights decrease", func() {
			cfg.SeverityWeights["high"] = 1
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "high")
		})

		convey.Convey("When a severity weight is missing", func() {
			delete(cfg.SeverityWeights, "low")
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
