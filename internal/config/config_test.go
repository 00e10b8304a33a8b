package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/applicantpool/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.MaxBatchRows, convey.ShouldEqual, 50_000)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
			convey.So(cfg.RedisAddr, convey.ShouldBeEmpty)
			convey.So(cfg.DateDayFirst, convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then durations are derived from milliseconds", func() {
			convey.So(cfg.LockTTL(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.LockWait(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.ShutdownTimeout(), convey.ShouldEqual, 10*time.Second)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		cases := map[string]func(*config.Config){
			"empty addr":           func(c *config.Config) { c.Addr = "" },
			"zero queue":           func(c *config.Config) { c.QueueSize = 0 },
			"zero batch rows":      func(c *config.Config) { c.MaxBatchRows = 0 },
			"zero body bytes":      func(c *config.Config) { c.MaxBodyBytes = 0 },
			"zero list limit":      func(c *config.Config) { c.MaxListLimit = 0 },
			"zero lock ttl":        func(c *config.Config) { c.LockTTLMS = 0 },
			"negative lock wait":   func(c *config.Config) { c.LockWaitMS = -1 },
			"unknown driver":       func(c *config.Config) { c.StoreDriver = "mongo" },
			"postgres without dsn": func(c *config.Config) { c.StoreDriver = config.StorePostgres },
		}
		for name, mutate := range cases {
			convey.Convey("When it has "+name, func() {
				mutate(cfg)

				convey.Convey("Then validation fails", func() {
					convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When the driver is spelled loosely", func() {
			cfg.StoreDriver = " Memory "

			convey.Convey("Then it is normalized", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			})
		})

		convey.Convey("When a zero lock wait is set", func() {
			cfg.LockWaitMS = 0

			convey.Convey("Then a single attempt is allowed", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
