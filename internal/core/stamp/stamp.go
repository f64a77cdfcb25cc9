// Package stamp adds content-address metadata to records before merging.
// The hash makes re-ingested unchanged rows detectable so merges can skip
// rewriting them; the timestamp records when a row version first landed
package stamp

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"awardarchive/internal/core/tabular"
)

const (
	// HashColumn holds the truncated content hash
	HashColumn = "content_hash"

	// TimestampColumn holds the RFC3339 UTC ingestion time
	TimestampColumn = "ingestion_timestamp"

	// hashLen is the number of hex chars kept from the sha256 digest
	hashLen = 16

	// nullToken is the fixed sentinel for null cells so nil and typed-nil
	// hash identically
	nullToken = "null"

	// fieldSep separates rendered columns in the canonical form
	fieldSep = '\x1e'
)

// Hash computes the content hash of a record: sha256 over the canonical
// serialization of all non-excluded columns, truncated to 16 hex chars.
// The stamp columns themselves are always excluded, so stamping is
// idempotent with respect to the hash
func Hash(r tabular.Record, exclude []string) string {
	skip := make(map[string]struct{}, len(exclude)+2)
	skip[HashColumn] = struct{}{}
	skip[TimestampColumn] = struct{}{}
	for _, c := range exclude {
		skip[c] = struct{}{}
	}

	var b strings.Builder
	for _, col := range r.Columns() {
		if _, ok := skip[col]; ok {
			continue
		}
		b.WriteString(col)
		b.WriteByte('=')
		b.WriteString(render(r[col]))
		b.WriteByte(fieldSep)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// render produces a stable, type-tagged text form for each supported cell value
// strings are quoted so "1" and 1 hash differently
func render(v any) string {
	switch x := v.(type) {
	case nil:
		return nullToken
	case *string:
		if x == nil {
			return nullToken
		}
		return strconv.Quote(*x)
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Stamp returns a copy of r with content_hash and ingestion_timestamp set.
// exclude lists extra columns (beyond the stamp columns) that must not
// influence the hash
func Stamp(r tabular.Record, exclude []string, now time.Time) tabular.Record {
	out := r.Clone()
	out[HashColumn] = Hash(r, exclude)
	out[TimestampColumn] = now.UTC().Format(time.RFC3339)
	return out
}

// StampAll stamps every record of the batch with the same clock reading
func StampAll(b tabular.Batch, exclude []string, now time.Time) tabular.Batch {
	out := make(tabular.Batch, len(b))
	for i, r := range b {
		out[i] = Stamp(r, exclude, now)
	}
	return out
}
