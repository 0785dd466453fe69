package sqlwarehouse

import (
	"context"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"

	"github.com/kbukum/etlflow/database"
	apperrors "github.com/kbukum/etlflow/errors"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/storage/local"
	"github.com/kbukum/etlflow/warehouse"
)

const productsCSV = `product_id,name,price,in_stock
1,Widget,9.99,true
2,Gadget,,false
3,Doohickey,4,true
`

type fixture struct {
	loader  *Loader
	db      *database.DB
	objects *local.Storage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := database.Config{Enabled: true, DSN: ":memory:", LogLevel: "silent"}
	cfg.ApplyDefaults()
	db, err := database.NewWithContext(context.Background(), sqlite.Open(cfg.DSN), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	objects, err := local.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	return &fixture{loader: New(db, objects, logger.Nop()), db: db, objects: objects}
}

func (f *fixture) put(t *testing.T, name, body string) string {
	t.Helper()
	if err := f.objects.Upload(context.Background(), name, strings.NewReader(body)); err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return "gs://bucket/" + name
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	if err := f.db.GormDB.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func productsJob(uri string, disposition warehouse.WriteDisposition) warehouse.LoadJob {
	return warehouse.LoadJob{
		SourceURIs:       []string{uri},
		Destination:      warehouse.TableRef{ProjectID: "proj", DatasetID: "demo_etl", TableID: "products_cleaned"},
		SourceFormat:     warehouse.FormatCSV,
		Autodetect:       true,
		SkipLeadingRows:  1,
		WriteDisposition: disposition,
	}
}

func TestLoad_CSVAutodetect(t *testing.T) {
	f := newFixture(t)
	uri := f.put(t, "products_cleaned.csv", productsCSV)

	res, err := f.loader.Load(context.Background(), productsJob(uri, warehouse.WriteTruncate))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RowsLoaded != 3 {
		t.Errorf("RowsLoaded = %d, want 3", res.RowsLoaded)
	}
	if !strings.HasPrefix(res.JobID, "sql_") {
		t.Errorf("JobID = %q", res.JobID)
	}

	table := TableName(res.Destination)
	if table != "demo_etl__products_cleaned" {
		t.Errorf("TableName = %q", table)
	}

	var rows []struct {
		ProductID int64
		Name      string
		Price     *float64
		InStock   bool
	}
	err = f.db.GormDB.Table(table).Order("product_id").Scan(&rows).Error
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[1].Price != nil {
		t.Errorf("empty price should load as NULL, got %v", *rows[1].Price)
	}
	if rows[2].Price == nil || *rows[2].Price != 4 {
		t.Errorf("price widened to REAL expected 4, got %v", rows[2].Price)
	}
	if !rows[0].InStock || rows[1].InStock {
		t.Errorf("in_stock = %v/%v", rows[0].InStock, rows[1].InStock)
	}
}

func TestLoad_WriteTruncateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	uri := f.put(t, "products_cleaned.csv", productsCSV)
	job := productsJob(uri, warehouse.WriteTruncate)

	for i := 0; i < 2; i++ {
		if _, err := f.loader.Load(context.Background(), job); err != nil {
			t.Fatalf("Load #%d: %v", i+1, err)
		}
	}
	if n := f.count(t, "demo_etl__products_cleaned"); n != 3 {
		t.Errorf("rows after two truncating loads = %d, want 3", n)
	}
}

func TestLoad_WriteAppend(t *testing.T) {
	f := newFixture(t)
	uri := f.put(t, "products_cleaned.csv", productsCSV)
	job := productsJob(uri, warehouse.WriteAppend)

	for i := 0; i < 2; i++ {
		if _, err := f.loader.Load(context.Background(), job); err != nil {
			t.Fatalf("Load #%d: %v", i+1, err)
		}
	}
	if n := f.count(t, "demo_etl__products_cleaned"); n != 6 {
		t.Errorf("rows after two appends = %d, want 6", n)
	}
}

func TestLoad_WriteEmptyRejectsNonEmptyTable(t *testing.T) {
	f := newFixture(t)
	uri := f.put(t, "products_cleaned.csv", productsCSV)

	if _, err := f.loader.Load(context.Background(), productsJob(uri, warehouse.WriteEmpty)); err != nil {
		t.Fatalf("first load into empty table: %v", err)
	}
	_, err := f.loader.Load(context.Background(), productsJob(uri, warehouse.WriteEmpty))
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if n := f.count(t, "demo_etl__products_cleaned"); n != 3 {
		t.Errorf("failed load changed the table: %d rows", n)
	}
}

func TestLoad_CreateNever(t *testing.T) {
	f := newFixture(t)
	uri := f.put(t, "products_cleaned.csv", productsCSV)
	job := productsJob(uri, warehouse.WriteAppend)
	job.CreateDisposition = warehouse.CreateNever

	_, err := f.loader.Load(context.Background(), job)
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestLoad_MissingSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.loader.Load(context.Background(), productsJob("gs://bucket/nope.csv", warehouse.WriteTruncate))
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestLoad_InvalidJob(t *testing.T) {
	f := newFixture(t)
	job := productsJob("http://bucket/x.csv", warehouse.WriteTruncate)
	if _, err := f.loader.Load(context.Background(), job); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_NoHeaderUsesGeneratedNames(t *testing.T) {
	f := newFixture(t)
	uri := f.put(t, "raw.csv", "1,a\n2,b\n")
	job := productsJob(uri, warehouse.WriteTruncate)
	job.SkipLeadingRows = 0

	if _, err := f.loader.Load(context.Background(), job); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var names []string
	err := f.db.GormDB.Table("demo_etl__products_cleaned").Order("string_field_0").Pluck("string_field_1", &names).Error
	if err != nil {
		t.Fatalf("pluck: %v", err)
	}
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("names = %v", names)
	}
}

func TestLoad_NDJSON(t *testing.T) {
	f := newFixture(t)
	uri := f.put(t, "rows.json", `{"id": 1, "name": "x"}
{"id": 2, "name": "y", "extra": true}

`)
	job := productsJob(uri, warehouse.WriteTruncate)
	job.SourceFormat = warehouse.FormatJSON
	job.SkipLeadingRows = 0

	res, err := f.loader.Load(context.Background(), job)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RowsLoaded != 2 {
		t.Errorf("RowsLoaded = %d, want 2", res.RowsLoaded)
	}
	var extras int64
	f.db.GormDB.Table("demo_etl__products_cleaned").Where("extra IS NULL").Count(&extras)
	if extras != 1 {
		t.Errorf("rows missing extra = %d, want 1", extras)
	}
}

func TestLoad_SchemaMismatchAcrossSources(t *testing.T) {
	f := newFixture(t)
	a := f.put(t, "a.csv", "id,name\n1,x\n")
	b := f.put(t, "b.csv", "id,title\n2,y\n")
	job := productsJob(a, warehouse.WriteTruncate)
	job.SourceURIs = append(job.SourceURIs, b)

	_, err := f.loader.Load(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "schema mismatch") {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestInferTypes(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"integers", []string{"1", "-2", "30"}, TypeInteger},
		{"reals", []string{"1.5", "2"}, TypeReal},
		{"booleans", []string{"true", "FALSE"}, TypeBoolean},
		{"zero and one stay integer", []string{"0", "1"}, TypeInteger},
		{"mixed", []string{"1", "abc"}, TypeText},
		{"all null", []string{""}, TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := decodeCSV(strings.NewReader("v\n"+strings.Join(tt.values, "\n")+"\n"), 1, true)
			if err != nil {
				t.Fatalf("decodeCSV: %v", err)
			}
			data.inferTypes(true)
			if got := data.columns[0].typ; got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeCSV_RaggedRow(t *testing.T) {
	_, err := decodeCSV(strings.NewReader("a,b\n1,2\n3\n"), 1, true)
	if err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestFactory(t *testing.T) {
	_, err := warehouse.New(context.Background(), warehouse.Config{Provider: warehouse.ProviderSQL}, warehouse.Deps{}, logger.Nop())
	if err == nil || !strings.Contains(err.Error(), "database is not available") {
		t.Fatalf("expected missing database error, got %v", err)
	}
}
