package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/okian/applicantpool/internal/adapters/lock"
	"github.com/okian/applicantpool/internal/adapters/repository"
	service "github.com/okian/applicantpool/internal/app"
	"github.com/okian/applicantpool/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service backed by sqlite", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		path := filepath.Join(t.TempDir(), "pool.db")
		store, err := repository.OpenSQL(ctx, repository.DialectSQLite, path)
		So(err, ShouldBeNil)

		svc := service.New(service.WithStore(store), service.WithQueueSize(32))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When monthly exports are merged in order", func() {
			jan, err := svc.Submit(ctx, model.Batch{ID: "2024-01", SourceFile: "jan.xlsx", Rows: []model.Row{
				{Fields: map[string]string{"ስልክ/ሞባይል": "0911223344", "ሙሉ ስም": "አበበ ከበደ", "የስራ መደብ": "Driver"}},
				{Fields: map[string]string{"labor_id": "lb-77", "full_name": "Sara Tesfaye"}},
				{Fields: map[string]string{"full_name": "Hana Girma", "position": "Cook"}},
			}})
			So(err, ShouldBeNil)
			feb, err := svc.Submit(ctx, model.Batch{ID: "2024-02", SourceFile: "feb.xlsx", Rows: []model.Row{
				{Fields: map[string]string{"phone": "+251 911 22 33 44", "application_date": "2024-02-03"}},
				{Fields: map[string]string{"labor_id": "LB-77", "phone": "0922000000"}},
				{Fields: map[string]string{"full_name": "hana  girma", "position": "Head Cook"}},
			}})
			So(err, ShouldBeNil)

			Convey("Then every later row lands on an existing record", func() {
				So(jan.Summary, ShouldResemble, model.Summary{Rows: 3, Created: 3})
				So(feb.Summary, ShouldResemble, model.Summary{Rows: 3, Updated: 3})
				So(feb.PoolSize, ShouldEqual, 3)
				So(feb.Outcomes[0].MatchedBy, ShouldEqual, model.MatchPhone)
				So(feb.Outcomes[1].MatchedBy, ShouldEqual, model.MatchLaborID)
				So(feb.Outcomes[2].MatchedBy, ShouldEqual, model.MatchName)
			})

			Convey("Then the merged records are persisted", func() {
				svc.Stop()

				reopened, err := repository.OpenSQL(ctx, repository.DialectSQLite, path)
				So(err, ShouldBeNil)
				defer reopened.Close()

				recs, err := reopened.Load(ctx)
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 3)

				byID := map[string]model.ApplicantRecord{}
				for _, r := range recs {
					byID[r.PoolID] = r
				}
				driver := byID[jan.Outcomes[0].PoolID]
				So(driver.ApplicationDate, ShouldEqual, "2024-02-03")
				So(driver.SourceBatches, ShouldResemble, []string{"2024-01", "2024-02"})
				So(driver.Extra[model.ColumnSourceFile], ShouldEqual, "feb.xlsx")

				labor := byID[jan.Outcomes[1].PoolID]
				So(labor.Phone, ShouldEqual, "922000000")
			})

			Convey("Then a restarted service picks up the same pool", func() {
				svc.Stop()

				again := service.New(service.WithStore(store))
				So(again.Start(ctx), ShouldBeNil)
				defer again.Stop()

				So(again.Snapshot().Len(), ShouldEqual, 3)
				res, err := again.Submit(ctx, model.Batch{ID: "2024-03", Rows: []model.Row{
					{Fields: map[string]string{"phone": "0911223344"}},
				}})
				So(err, ShouldBeNil)
				So(res.Outcomes[0].PoolID, ShouldEqual, jan.Outcomes[0].PoolID)
			})
		})

		Reset(func() {
			_ = svc.Close()
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given two services sharing a store and a redis writer lock", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		store := repository.NewMemoryStore()
		newService := func() *service.Service {
			svc := service.New(
				service.WithStore(store),
				service.WithQueueSize(64),
				service.WithLocker(lock.NewRedisLocker(client, lock.WithRetryInterval(5*time.Millisecond))),
			)
			So(svc.Start(ctx), ShouldBeNil)
			return svc
		}
		a, b := newService(), newService()
		defer a.Stop()
		defer b.Stop()

		Convey("When overlapping batches are submitted to both concurrently", func() {
			const batches = 10
			var wg sync.WaitGroup
			errs := make(chan error, 2*batches)
			for i := 0; i < batches; i++ {
				for j, svc := range []*service.Service{a, b} {
					wg.Add(1)
					go func(i, j int, svc *service.Service) {
						defer wg.Done()
						// Every batch repeats the same five phones.
						rows := make([]model.Row, 0, 5)
						for k := 0; k < 5; k++ {
							rows = append(rows, model.Row{Fields: map[string]string{"phone": fmt.Sprintf("09110000%02d", k)}})
						}
						_, err := svc.Submit(ctx, model.Batch{ID: fmt.Sprintf("b-%d-%d", j, i), Rows: rows})
						errs <- err
					}(i, j, svc)
				}
			}
			wg.Wait()
			close(errs)

			Convey("Then every batch succeeds", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
			})

			Convey("Then the shared pool holds each phone once", func() {
				recs, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 5)

				total := 0
				for _, r := range recs {
					total += len(r.SourceBatches)
				}
				So(total, ShouldEqual, 5*2*batches)
			})
		})

		Convey("When many goroutines read while batches merge", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for k := 0; k < 50; k++ {
						_ = a.Snapshot().Stats()
						_ = a.Positions(ctx)
					}
				}()
			}
			_, err := a.Submit(ctx, model.Batch{ID: "x", Rows: []model.Row{{Fields: map[string]string{"phone": "0911000099", "position": "Guard"}}}})
			wg.Wait()

			Convey("Then reads never block the writer", func() {
				So(err, ShouldBeNil)
				So(a.Positions(ctx), ShouldResemble, []string{"Guard"})
			})
		})
	})
}
