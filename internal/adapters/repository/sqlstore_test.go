package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/applicantpool/internal/adapters/repository"
	"github.com/okian/applicantpool/internal/domain/model"
)

var (
	t0 = time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	t1 = time.Date(2024, 3, 2, 9, 45, 15, 500, time.UTC)
)

func sampleRecords() []model.ApplicantRecord {
	return []model.ApplicantRecord{
		{
			PoolID:          "p-1",
			Phone:           "911223344",
			FullName:        "አበበ ከበደ",
			NameKey:         "አበበ ከበደ",
			Position:        "Driver",
			ApplicationDate: "2024-03-01",
			Extra:           map[string]string{"Region": "Amhara"},
			FirstSeenAt:     t0,
			LastUpdatedAt:   t1,
			SourceBatches:   []string{"b1", "b2"},
		},
		{
			PoolID:        "p-2",
			LaborID:       "LA-7",
			FirstSeenAt:   t0,
			LastUpdatedAt: t0,
			SourceBatches: []string{"b1"},
		},
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sqlite store in a temp dir", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "pool.db")
		s, err := repository.OpenSQL(ctx, repository.DialectSQLite, path)
		So(err, ShouldBeNil)
		Reset(func() { _ = s.Close() })

		Convey("When nothing was saved", func() {
			recs, err := s.Load(ctx)

			Convey("Then load returns an empty pool", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldBeEmpty)
			})
		})

		Convey("When a pool is saved", func() {
			So(s.Save(ctx, sampleRecords()), ShouldBeNil)

			Convey("Then it loads back in order", func() {
				recs, err := s.Load(ctx)
				So(err, ShouldBeNil)
				So(recs, ShouldResemble, sampleRecords())
			})

			Convey("Then it survives reopening the file", func() {
				So(s.Close(), ShouldBeNil)
				again, err := repository.OpenSQL(ctx, repository.DialectSQLite, path)
				So(err, ShouldBeNil)
				defer func() { _ = again.Close() }()

				recs, err := again.Load(ctx)
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
				So(recs[0].PoolID, ShouldEqual, "p-1")
			})

			Convey("And a smaller pool is saved", func() {
				So(s.Save(ctx, sampleRecords()[1:]), ShouldBeNil)

				Convey("Then it replaces the previous state", func() {
					recs, err := s.Load(ctx)
					So(err, ShouldBeNil)
					So(len(recs), ShouldEqual, 1)
					So(recs[0].PoolID, ShouldEqual, "p-2")
				})
			})

			Convey("And a pool with a duplicate phone is saved", func() {
				bad := sampleRecords()
				bad[1].Phone = bad[0].Phone
				err := s.Save(ctx, bad)

				Convey("Then the save fails and the previous state remains", func() {
					So(errors.Is(err, repository.ErrSave), ShouldBeTrue)
					recs, err := s.Load(ctx)
					So(err, ShouldBeNil)
					So(recs, ShouldResemble, sampleRecords())
				})
			})
		})
	})
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a postgres store over sqlmock", t, func() {
		db, mock, err := sqlmock.New()
		So(err, ShouldBeNil)
		Reset(func() { _ = db.Close() })
		s := repository.NewSQLStore(db, repository.WithDialect(repository.DialectPostgres))

		Convey("When migrating", func() {
			mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS applicants")).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(regexp.QuoteMeta("CREATE UNIQUE INDEX IF NOT EXISTS applicants_phone_uq")).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(regexp.QuoteMeta("CREATE UNIQUE INDEX IF NOT EXISTS applicants_labor_id_uq")).
				WillReturnResult(sqlmock.NewResult(0, 0))

			Convey("Then the table and partial indexes are created", func() {
				So(s.Migrate(ctx), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When saving", func() {
			recs := sampleRecords()
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applicants")).
				WillReturnResult(sqlmock.NewResult(0, 3))
			prep := mock.ExpectPrepare(`INSERT INTO applicants .* VALUES \(\$1, \$2, \$3, .*\$12\)`)
			prep.ExpectExec().
				WithArgs(0, "p-1", "911223344", "", "አበበ ከበደ", "አበበ ከበደ", "Driver", "2024-03-01",
					`{"Region":"Amhara"}`, "2024-03-01T08:30:00Z", "2024-03-02T09:45:15.0000005Z", `["b1","b2"]`).
				WillReturnResult(sqlmock.NewResult(1, 1))
			prep.ExpectExec().
				WithArgs(1, "p-2", "", "LA-7", "", "", "", "", "null",
					sqlmock.AnyArg(), sqlmock.AnyArg(), `["b1"]`).
				WillReturnResult(sqlmock.NewResult(2, 1))
			mock.ExpectCommit()

			Convey("Then every record is written with numbered placeholders", func() {
				So(s.Save(ctx, recs), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When an insert fails", func() {
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applicants")).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectPrepare(`INSERT INTO applicants`).
				ExpectExec().
				WillReturnError(errors.New("duplicate key value violates unique constraint"))
			mock.ExpectRollback()

			Convey("Then the transaction is rolled back", func() {
				err := s.Save(ctx, sampleRecords()[:1])
				So(errors.Is(err, repository.ErrSave), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "p-1")
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When loading", func() {
			cols := []string{"pool_id", "phone", "labor_id", "full_name", "name_key", "position",
				"application_date", "extra", "first_seen_at", "last_updated_at", "source_batches"}
			mock.ExpectQuery(`SELECT .* FROM applicants ORDER BY seq`).
				WillReturnRows(sqlmock.NewRows(cols).
					AddRow("p-2", "", "LA-7", "", "", "", "", "null",
						"2024-03-01T08:30:00Z", "2024-03-01T08:30:00Z", `["b1"]`))

			Convey("Then rows decode into records", func() {
				recs, err := s.Load(ctx)
				So(err, ShouldBeNil)
				So(recs, ShouldResemble, sampleRecords()[1:])
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When a stored row is corrupt", func() {
			cols := []string{"pool_id", "phone", "labor_id", "full_name", "name_key", "position",
				"application_date", "extra", "first_seen_at", "last_updated_at", "source_batches"}
			mock.ExpectQuery(`SELECT .* FROM applicants`).
				WillReturnRows(sqlmock.NewRows(cols).
					AddRow("p-9", "", "", "", "", "", "", "{", "x", "x", "[]"))

			Convey("Then load fails with ErrLoad", func() {
				_, err := s.Load(ctx)
				So(errors.Is(err, repository.ErrLoad), ShouldBeTrue)
			})
		})
	})
}

func TestParseDialect(t *testing.T) {
	Convey("Given dialect names from configuration", t, func() {
		d, err := repository.ParseDialect(" Postgres ")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, repository.DialectPostgres)

		_, err = repository.ParseDialect("mysql")
		So(errors.Is(err, repository.ErrUnknownDialect), ShouldBeTrue)
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory store", t, func() {
		s := repository.NewMemoryStore()

		Convey("When records are saved and then mutated by the caller", func() {
			recs := sampleRecords()
			So(s.Save(ctx, recs), ShouldBeNil)
			recs[0].Extra["Region"] = "changed"

			Convey("Then the stored copy is unaffected", func() {
				got, err := s.Load(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, sampleRecords())
			})
		})

		Convey("When the store is closed", func() {
			So(s.Close(), ShouldBeNil)

			Convey("Then further calls fail", func() {
				_, err := s.Load(ctx)
				So(err, ShouldEqual, repository.ErrClosed)
				So(s.Save(ctx, nil), ShouldEqual, repository.ErrClosed)
			})
		})
	})
}
