package grid_world

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
	_ "modernc.org/sqlite"
)

// The dataset is an object of resource name to record. Coordinates may be numbers or
// numeric strings; other record fields are carried by the source data but unused here.
const recordsSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {
		"type": "object",
		"required": ["x_coordinate", "y_coordinate"],
		"properties": {
			"x_coordinate": {"$ref": "#/$defs/numeric"},
			"y_coordinate": {"$ref": "#/$defs/numeric"}
		}
	},
	"$defs": {
		"numeric": {"type": ["number", "string"]}
	}
}`

var recordsValidator = jsonschema.MustCompileString("records.schema.json", recordsSchema)

type rawRecord struct {
	X json.RawMessage `json:"x_coordinate"`
	Y json.RawMessage `json:"y_coordinate"`
}

// DecodeRecords reads a JSON dataset of the form {name: {x_coordinate, y_coordinate, ...}}.
// The records are returned in document order.
func DecodeRecords(r io.Reader) ([]ResourceRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: dataset is not valid json: %v", ErrInvalidInput, err)
	}
	if err = recordsValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: dataset: %v", ErrInvalidInput, err)
	}

	// Go maps do not keep key order, so walk the object with the token api instead.
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err = dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: dataset: %v", ErrInvalidInput, err)
	}

	records := []ResourceRecord{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: dataset: %v", ErrInvalidInput, err)
		}
		name := tok.(string)

		var raw rawRecord
		if err = dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: resource %q: %v", ErrInvalidInput, name, err)
		}
		rec := ResourceRecord{Name: name}
		if rec.XRaw, err = parseNumeric(raw.X); err != nil {
			return nil, fmt.Errorf("%w: resource %q x_coordinate: %v", ErrInvalidInput, name, err)
		}
		if rec.YRaw, err = parseNumeric(raw.Y); err != nil {
			return nil, fmt.Errorf("%w: resource %q y_coordinate: %v", ErrInvalidInput, name, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseNumeric(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

// LoadRecordsFile reads a JSON dataset from disk. Files ending in .zst are zstd-decompressed.
func LoadRecordsFile(path string) ([]ResourceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}

	records, err := DecodeRecords(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadRecordsSQLite reads records from a SQLite table with name, x_coordinate and
// y_coordinate columns, in insertion order. Coordinates may be stored as REAL, INTEGER or TEXT.
func LoadRecordsSQLite(ctx context.Context, dsn, table string) ([]ResourceRecord, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: bad table name %q", ErrInvalidInput, table)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT name, x_coordinate, y_coordinate FROM "+table+" ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []ResourceRecord{}
	for rows.Next() {
		var name string
		var x, y interface{}
		if err = rows.Scan(&name, &x, &y); err != nil {
			return nil, err
		}
		rec := ResourceRecord{Name: name}
		if rec.XRaw, err = toFloat(x); err != nil {
			return nil, fmt.Errorf("%w: resource %q x_coordinate: %v", ErrInvalidInput, name, err)
		}
		if rec.YRaw, err = toFloat(y); err != nil {
			return nil, fmt.Errorf("%w: resource %q y_coordinate: %v", ErrInvalidInput, name, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
