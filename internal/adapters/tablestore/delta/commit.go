package delta

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	perr "awardarchive/internal/platform/errors"
)

// Commit operations recorded in the log
const (
	opCreate    = "create"
	opMerge     = "merge"
	opAppend    = "append"
	opOverwrite = "overwrite"
	opOptimize  = "optimize"
)

// commitFile is one data file referenced by a commit
type commitFile struct {
	Path string `json:"path"`
	Rows int64  `json:"rows"`
}

// commit is one immutable version of a table: the full file listing plus
// the metadata the read side needs
type commit struct {
	Version     int64        `json:"version"`
	Operation   string       `json:"operation"`
	PartitionBy []string     `json:"partition_by,omitempty"`
	Columns     []string     `json:"columns,omitempty"`
	Files       []commitFile `json:"files"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (c commit) rowCount() int64 {
	var n int64
	for _, f := range c.Files {
		n += f.Rows
	}
	return n
}

func logPrefix(table string) string  { return table + "/_log/" }
func dataPrefix(table string) string { return table + "/data/" }

// commitKey pads the version so lexicographic listing is version order
func commitKey(table string, version int64) string {
	return fmt.Sprintf("%s%020d.json", logPrefix(table), version)
}

// commitVersion parses the version back out of a log key
func commitVersion(key string) (int64, bool) {
	base := key[strings.LastIndexByte(key, '/')+1:]
	base = strings.TrimSuffix(base, ".json")
	var v int64
	if _, err := fmt.Sscanf(base, "%d", &v); err != nil {
		return 0, false
	}
	return v, true
}

func encodeCommit(c commit) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "encode commit")
	}
	return data, nil
}

func decodeCommit(data []byte) (commit, error) {
	var c commit
	if err := json.Unmarshal(data, &c); err != nil {
		return commit{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode commit")
	}
	return c, nil
}

// sortedLogKeys filters and sorts log keys so the last entry is the
// latest version
func sortedLogKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
