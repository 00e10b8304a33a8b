package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/applicantpool/internal/adapters/http/api"
	"github.com/okian/applicantpool/internal/adapters/repository"
	service "github.com/okian/applicantpool/internal/app"
	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(baseURL string, files ...string) *Config {
	return &Config{
		BaseURL:   baseURL,
		Files:     files,
		Separator: ',',
		Timeout:   5 * time.Second,
		Retries:   3,
		Backoff:   time.Millisecond,
	}
}

func TestReadRows(t *testing.T) {
	Convey("Given a CSV export", t, func() {
		Convey("When it starts with a byte order mark", func() {
			rows, err := ReadRows(strings.NewReader("\ufeffphone,full_name\n0911223344,Abebe\n"), ',', "jan.csv")

			Convey("Then the first header is clean", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].Fields["phone"], ShouldEqual, "0911223344")
				So(rows[0].Ref, ShouldEqual, "jan.csv:2")
			})
		})

		Convey("When it uses semicolons and blank lines", func() {
			in := "phone; full_name ;position\n0911223344;Abebe;Driver\n;;\n\n0922334455;Hana;Cook\n"
			rows, err := ReadRows(strings.NewReader(in), ';', "feb.csv")

			Convey("Then blank rows are dropped and refs keep source lines", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].Fields["full_name"], ShouldEqual, "Abebe")
				So(rows[1].Fields["position"], ShouldEqual, "Cook")
				So(rows[1].Ref, ShouldEqual, "feb.csv:5")
			})
		})

		Convey("When a line is shorter than the header", func() {
			rows, err := ReadRows(strings.NewReader("phone,full_name,position\n0911223344\n"), ',', "x.csv")

			Convey("Then missing cells are left out", func() {
				So(err, ShouldBeNil)
				So(rows[0].Fields, ShouldResemble, map[string]string{"phone": "0911223344"})
			})
		})

		Convey("When the file is empty", func() {
			_, err := ReadRows(strings.NewReader(""), ',', "empty.csv")

			Convey("Then no header is reported", func() {
				So(errors.Is(err, ErrNoHeader), ShouldBeTrue)
			})
		})
	})
}

func TestParseSeparator(t *testing.T) {
	Convey("Given separator names", t, func() {
		for in, want := range map[string]rune{"": ',', "comma": ',', ";": ';', "Semicolon": ';', "tab": '\t'} {
			got, err := ParseSeparator(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}
		_, err := ParseSeparator("pipe")
		So(err, ShouldNotBeNil)
	})
}

func TestChunk(t *testing.T) {
	Convey("Given five rows", t, func() {
		rows := make([]model.Row, 5)

		Convey("Then a zero size keeps one batch", func() {
			So(chunk(rows, 0), ShouldHaveLength, 1)
		})

		Convey("Then a size of two makes three batches", func() {
			parts := chunk(rows, 2)
			So(parts, ShouldHaveLength, 3)
			So(parts[2], ShouldHaveLength, 1)
		})
	})
}

func TestBatchBase(t *testing.T) {
	Convey("Given file names", t, func() {
		So(batchBase("", "jan-2024.csv"), ShouldEqual, "jan-2024")
		So(batchBase("import", "jan.csv"), ShouldEqual, "import-jan")
	})
}

func TestClient_Submit(t *testing.T) {
	Convey("Given a service that defers the first attempts", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"code":"backpressure","message":"queue full"}`))
				return
			}
			var req batchRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(model.BatchResult{BatchID: req.BatchID, PoolSize: len(req.Rows)})
		}))
		defer srv.Close()

		client := newClient(testConfig(srv.URL))
		req := newBatchRequest("jan", "jan.csv", []model.Row{{Ref: "jan.csv:2", Fields: map[string]string{"phone": "0911223344"}}})

		Convey("When a batch is submitted", func() {
			res, err := client.Submit(context.Background(), req)

			Convey("Then it is retried until accepted", func() {
				So(err, ShouldBeNil)
				So(calls.Load(), ShouldEqual, 3)
				So(res.BatchID, ShouldEqual, "jan")
				So(res.PoolSize, ShouldEqual, 1)
			})
		})

		Convey("When retries are exhausted", func() {
			cfg := testConfig(srv.URL)
			cfg.Retries = 1
			_, err := newClient(cfg).Submit(context.Background(), req)

			Convey("Then the retry limit is reported", func() {
				So(errors.Is(err, ErrRetryLimit), ShouldBeTrue)
				So(errors.Is(err, ErrRejected), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service that rejects the batch", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"bad_request","message":"missing rows"}`))
		}))
		defer srv.Close()

		_, err := newClient(testConfig(srv.URL)).Submit(context.Background(), batchRequest{BatchID: "x"})

		Convey("Then the error is not retried", func() {
			So(errors.Is(err, ErrRejected), ShouldBeTrue)
			So(errors.Is(err, ErrRetryLimit), ShouldBeFalse)
			So(err.Error(), ShouldContainSubstring, "missing rows")
		})
	})

	Convey("Given a request with row references", t, func() {
		req := newBatchRequest("b", "f.csv", []model.Row{{Ref: "f.csv:2", Fields: map[string]string{"phone": "1"}}})

		Convey("Then the reference travels as the _ref member", func() {
			So(req.Rows[0], ShouldResemble, map[string]string{"phone": "1", "_ref": "f.csv:2"})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running applicant pool service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		svc := service.New(service.WithStore(repository.NewMemoryStore()))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		jan := writeCSV(t, "jan.csv", "phone,full_name,position\n0911223344,Abebe Kebede,Driver\n0922334455,Hana Girma,Cook\n")
		feb := writeCSV(t, "feb.csv", "phone,full_name,position\n0911223344,Abebe Kebede,Guard\n0933445566,Sara Tesfaye,Cook\n,,\n")

		Convey("When both exports are uploaded in chunks", func() {
			cfg := testConfig(srv.URL, jan, feb)
			cfg.ChunkRows = 1
			cfg.Verbose = true
			stats, err := Run(ctx, cfg)

			Convey("Then every row is merged into the pool", func() {
				So(err, ShouldBeNil)
				So(stats.Files, ShouldEqual, 2)
				So(stats.Batches, ShouldEqual, 4)
				So(stats.Rows, ShouldEqual, 4)
				So(stats.Created, ShouldEqual, 3)
				So(stats.Updated, ShouldEqual, 1)
				So(stats.PoolSize, ShouldEqual, 3)
				So(svc.Snapshot().Len(), ShouldEqual, 3)
			})

			Convey("Then batch IDs follow the file names", func() {
				rec := svc.Applicants(ctx, api.Query{Position: "Guard", Limit: 10})
				So(rec, ShouldHaveLength, 1)
				So(rec[0].SourceBatches, ShouldContain, "jan-001")
				So(rec[0].SourceBatches, ShouldContain, "feb-001")
			})
		})

		Convey("When a file does not exist", func() {
			_, err := Run(ctx, testConfig(srv.URL, filepath.Join(t.TempDir(), "missing.csv")))

			Convey("Then the run fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "missing.csv")
			})
		})
	})

	Convey("Given no service is listening", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := Run(context.Background(), testConfig(url))

		Convey("Then the health check fails", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}
