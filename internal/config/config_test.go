package config_test

import (
	"runtime"
	"testing"

	"github.com/inkhq/quill/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.EventStorePath, convey.ShouldBeEmpty)
			convey.So(cfg.ProjectionCachePath, convey.ShouldBeEmpty)
			convey.So(cfg.DefaultTimezone, convey.ShouldEqual, "UTC")
			convey.So(cfg.StrictInvariants, convey.ShouldBeFalse)
			convey.So(cfg.RecomputeQueueSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 500_000)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
		})
	})
}
