package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const segmentExt = ".journal"

// segment is one rotation-bounded journal file.
type segment struct {
	seq     int
	path    string
	file    *os.File
	size    int64
	pending int // count of add frames in this segment not yet acked
}

// segmentPath builds the on-disk path for seq within dir.
func segmentPath(dir string, seq int) string {
	return filepath.Join(dir, fmt.Sprintf("%010d%s", seq, segmentExt))
}

// discoverSegments lists every segment file under dir in ascending seq
// order. Returns an empty slice (not an error) if dir has none yet.
func discoverSegments(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var seqs []int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), segmentExt) {
			continue
		}
		base := strings.TrimSuffix(e.Name(), segmentExt)
		seq, err := strconv.Atoi(base)
		if err != nil {
			continue // not one of ours; ignore stray files
		}
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	return seqs, nil
}

// openSegmentForAppend opens (creating if absent) the segment at seq for
// appending, and reports its current size for rotation accounting.
func openSegmentForAppend(dir string, seq int) (*segment, error) {
	path := segmentPath(dir, seq)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{seq: seq, path: path, file: f, size: info.Size()}, nil
}

// nameFromQueueDir returns dir's path relative to root (or, if no
// relative path can be formed, dir's last element) as a queue realName.
func nameFromQueueDir(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return filepath.Base(dir)
	}
	return rel
}
