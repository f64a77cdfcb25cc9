package delta

import (
	"bytes"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"awardarchive/internal/core/tabular"
	perr "awardarchive/internal/platform/errors"
)

const readBatchSize = 256

// nodeFor maps a cell value onto an optional parquet node.
// Every column is optional so sparse batches stay writable
func nodeFor(v any) (parquet.Node, bool) {
	switch v.(type) {
	case string, *string:
		return parquet.Optional(parquet.String()), true
	case bool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType)), true
	case int, int64:
		return parquet.Optional(parquet.Int(64)), true
	case float64:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType)), true
	case time.Time:
		return parquet.Optional(parquet.String()), true
	default:
		return nil, false
	}
}

// schemaFor infers a parquet schema from the batch: one optional field per
// column, typed by the first non-null cell. Columns that are null in every
// row land as optional strings
func schemaFor(name string, rows tabular.Batch) (*parquet.Schema, error) {
	fields := map[string]parquet.Node{}
	for _, col := range rows.Columns() {
		for _, r := range rows {
			v, ok := r[col]
			if !ok || v == nil {
				continue
			}
			node, supported := nodeFor(v)
			if !supported {
				return nil, perr.InvalidArgf("column %s has unsupported type %T", col, v)
			}
			fields[col] = node
			break
		}
		if _, ok := fields[col]; !ok {
			fields[col] = parquet.Optional(parquet.String())
		}
	}
	return parquet.NewSchema(name, parquet.Group(fields)), nil
}

// storageCell normalizes a value for the parquet writer.
// ok=false means null: the cell is omitted from the row map
func storageCell(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case *string:
		if x == nil {
			return nil, false
		}
		return *x, true
	case int:
		return int64(x), true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	default:
		return x, true
	}
}

// writeParquet serializes the batch with the given schema
func writeParquet(rows tabular.Batch, schema *parquet.Schema) ([]byte, error) {
	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[map[string]any](&buf, schema, parquet.Compression(&parquet.Zstd))

	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]any, len(r))
		for col, v := range r {
			if cell, ok := storageCell(v); ok {
				m[col] = cell
			}
		}
		out = append(out, m)
	}
	if len(out) > 0 {
		if _, err := pw.Write(out); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "write parquet rows")
		}
	}
	if err := pw.Close(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "close parquet writer")
	}
	return buf.Bytes(), nil
}

// readParquet deserializes a data file back into a batch
func readParquet(data []byte) (tabular.Batch, error) {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "open parquet file")
	}
	reader := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer reader.Close()

	var out tabular.Batch
	buf := make([]map[string]any, readBatchSize)
	for {
		for i := range buf {
			buf[i] = make(map[string]any)
		}
		n, rerr := reader.Read(buf)
		for _, m := range buf[:n] {
			rec := make(tabular.Record, len(m))
			for k, v := range m {
				if v == nil {
					continue
				}
				rec[k] = v
			}
			out = append(out, rec)
		}
		if rerr != nil {
			if rerr == io.EOF {
				return out, nil
			}
			return nil, perr.Wrap(rerr, perr.ErrorCodeDB, "read parquet rows")
		}
		if n == 0 {
			return out, nil
		}
	}
}
