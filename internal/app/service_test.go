package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/inkhq/quill/internal/app"
	"github.com/inkhq/quill/internal/domain/event"
	"github.com/inkhq/quill/internal/domain/streak"
	"github.com/inkhq/quill/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50_000),
			service.WithDedupeSize(25_000),
			service.WithDefaultTimezone("Asia/Tokyo"),
			service.WithStrictInvariants(true),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["rulesVersion"], ShouldEqual, streak.RulesVersion)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := svc.Start(ctx)
		So(err, ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_SeenAndRecord(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := svc.Start(ctx)
		So(err, ShouldBeNil)
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When checking a new event ID", func() {
			eventID := "event-123"
			seen := svc.SeenAndRecord(ctx, eventID)

			Convey("Then it should not have been seen before", func() {
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When checking the same event ID again", func() {
			eventID := "event-456"
			svc.SeenAndRecord(ctx, eventID)         // First time
			seen := svc.SeenAndRecord(ctx, eventID) // Second time

			Convey("Then it should have been seen before", func() {
				So(seen, ShouldBeTrue)
			})
		})

		Convey("When unrecording an event ID", func() {
			eventID := "event-789"
			svc.SeenAndRecord(ctx, eventID)
			svc.Unrecord(ctx, eventID)
			seen := svc.SeenAndRecord(ctx, eventID)

			Convey("Then it can be recorded again", func() {
				So(seen, ShouldBeFalse)
			})
		})
	})
}

func TestService_AppendEvent(t *testing.T) {
	Convey("Given a service that is not started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("When appending an event", func() {
			_, err := svc.AppendEvent(ctx, "user-1", event.Event{Kind: event.KindPostCreated})

			Convey("Then it should fail with ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})

	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When appending a post without a post ID", func() {
			occurredAt := time.Date(2025, 10, 13, 9, 30, 0, 0, time.UTC)
			stored, err := svc.AppendEvent(ctx, "user-1", event.Event{
				Kind:       event.KindPostCreated,
				OccurredAt: occurredAt,
			})

			Convey("Then storage assigns seq, day key and a post ID", func() {
				So(err, ShouldBeNil)
				So(stored.Seq, ShouldEqual, 1)
				So(stored.DayKey, ShouldEqual, "2025-10-13")
				So(stored.PostID, ShouldNotBeEmpty)
			})
		})

		Convey("When appending a synthetic kind", func() {
			_, err := svc.AppendEvent(ctx, "user-1", event.NewVirtualClosure("2025-10-13", time.Now()))

			Convey("Then it should be rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a started service with a non-UTC default timezone", t, func() {
		svc := service.New(service.WithDefaultTimezone("Asia/Tokyo"))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a post lands late in the UTC evening", func() {
			occurredAt := time.Date(2025, 10, 13, 23, 30, 0, 0, time.UTC)
			stored, err := svc.AppendPost(ctx, "user-1", occurredAt, "post-1", "board-1", 120)

			Convey("Then the day key is the user's local date", func() {
				So(err, ShouldBeNil)
				So(stored.DayKey, ShouldEqual, "2025-10-14")
			})
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("When getting stats before starting", func() {
			stats := svc.GetStats()

			Convey("Then it should return basic stats", func() {
				So(stats, ShouldNotBeNil)
				So(stats["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When getting stats", func() {
			stats := svc.GetStats()

			Convey("Then runtime counters are included", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats, ShouldContainKey, "queueLength")
				So(stats, ShouldContainKey, "trackedUsers")
			})
		})
	})
}

func TestService_ProjectionRequiresStart(t *testing.T) {
	Convey("Given a service that is not started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("When reading a projection", func() {
			_, err := svc.Projection(ctx, "user-1")

			Convey("Then it should fail with ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}
