package engine

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"
)

// --- 1. FAST ZERO-ALLOC PARSERS ---

func unsafeToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// coerceCount parses the leading digit run of a count field.
// Anything unparseable (empty, negative, text) coerces to zero; a trailing
// fractional part like "123.0" is ignored.
func coerceCount(b []byte) int64 {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '"') {
		i++
	}
	var n int64
	start := i
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		n = n*10 + int64(b[i]-'0')
		i++
	}
	if i == start {
		return 0
	}
	return n
}

func digits(b []byte) (int32, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n int32
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int32(c-'0')
	}
	return n, true
}

// parseDate parses "2020-03-01" or "01/03/20" (also "01/03/2020") -> 20200301.
// Returns 0 when the field is not a date; the row is then dropped.
func parseDate(b []byte) int32 {
	b = bytes.TrimSpace(b)
	if len(b) >= 10 && b[4] == '-' && b[7] == '-' {
		y, ok1 := digits(b[0:4])
		m, ok2 := digits(b[5:7])
		d, ok3 := digits(b[8:10])
		if ok1 && ok2 && ok3 && m >= 1 && m <= 12 && d >= 1 && d <= 31 {
			return y*10000 + m*100 + d
		}
		return 0
	}
	p1, rest, found := bytes.Cut(b, []byte{'/'})
	if !found {
		return 0
	}
	p2, p3, found := bytes.Cut(rest, []byte{'/'})
	if !found {
		return 0
	}
	d, ok1 := digits(p1)
	m, ok2 := digits(p2)
	y, ok3 := digits(p3)
	if !ok1 || !ok2 || !ok3 || m < 1 || m > 12 || d < 1 || d > 31 {
		return 0
	}
	if y < 100 {
		y += 2000
	}
	return y*10000 + m*100 + d
}

// --- 2. HEADER MAPPING ---

// columnMap holds the positions of the five columns the store keeps.
// The input may carry any number of extra columns (serial numbers, report
// times, per-nationality splits); they are hopped over in the hot loop.
type columnMap struct {
	region    int
	date      int
	confirmed int
	deaths    int
	recovered int
	last      int // highest index we must scan to
}

func normalizeHeader(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	f = strings.Trim(f, `"`)
	f = strings.NewReplacer(" ", "", "_", "", "/", "").Replace(f)
	return f
}

func mapHeader(header []byte) (columnMap, error) {
	cm := columnMap{region: -1, date: -1, confirmed: -1, deaths: -1, recovered: -1}
	fields := strings.Split(string(bytes.TrimRight(header, "\r")), ",")
	for i, f := range fields {
		key := normalizeHeader(f)
		switch {
		case cm.date < 0 && key == "date":
			cm.date = i
		case cm.region < 0 && (strings.Contains(key, "state") || strings.Contains(key, "region") || strings.Contains(key, "province")):
			cm.region = i
		case cm.confirmed < 0 && key == "confirmed":
			cm.confirmed = i
		case cm.deaths < 0 && (key == "deaths" || key == "death"):
			cm.deaths = i
		case cm.recovered < 0 && (key == "cured" || key == "recovered" || key == "recoveries"):
			cm.recovered = i
		}
	}
	switch {
	case cm.region < 0:
		return cm, fmt.Errorf("header: no region/state column")
	case cm.date < 0:
		return cm, fmt.Errorf("header: no date column")
	case cm.confirmed < 0:
		return cm, fmt.Errorf("header: no confirmed column")
	case cm.deaths < 0:
		return cm, fmt.Errorf("header: no deaths column")
	case cm.recovered < 0:
		return cm, fmt.Errorf("header: no cured/recovered column")
	}
	for _, i := range []int{cm.region, cm.date, cm.confirmed, cm.deaths, cm.recovered} {
		if i > cm.last {
			cm.last = i
		}
	}
	return cm, nil
}

// --- 3. MAIN LOADER ---

// workerRows is one chunk's parse output. Rows with unparseable dates are
// dropped, so workers append instead of writing into a preallocated store.
type workerRows struct {
	dates     []int32
	confirmed []int64
	deaths    []int64
	recovered []int64
	regionIDs []int32

	dict    []string
	dictMap map[string]int32
	dropped int
}

// Load reads the dataset into a ColumnStore (Parallel, byte-level scan).
// A missing or unreadable file is the one fatal condition; per-row anomalies
// are coerced or dropped, never propagated.
func Load(path string, log *zap.Logger) (*ColumnStore, error) {
	start := time.Now()
	log.Info("loading dataset", zap.String("path", path))

	// A. Read File
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})

	// B. Split off and map the header row
	var header []byte
	if idx := bytes.IndexByte(content, '\n'); idx != -1 {
		header = content[:idx]
		content = content[idx+1:]
	} else {
		header = content
		content = nil
	}
	cm, err := mapHeader(header)
	if err != nil {
		return nil, fmt.Errorf("map dataset columns: %w", err)
	}

	numWorkers := runtime.NumCPU()
	if len(content)/numWorkers == 0 {
		numWorkers = 1
	}
	chunkSize := len(content) / numWorkers

	// C. Count Rows (Parallel) for capacity hints
	rowCounts := make([]int, numWorkers)
	var countWg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		countWg.Add(1)
		go func(idx, start, end int) {
			defer countWg.Done()
			// Align to newlines
			if start > 0 {
				if i := bytes.IndexByte(content[start:], '\n'); i != -1 {
					start += i + 1
				}
			}
			if end < len(content) {
				if i := bytes.IndexByte(content[end:], '\n'); i != -1 {
					end += i + 1
				} else {
					end = len(content)
				}
			}
			if idx == numWorkers-1 {
				end = len(content)
			}
			if start < end {
				rowCounts[idx] = bytes.Count(content[start:end], []byte{'\n'}) + 1
			}
		}(i, i*chunkSize, (i+1)*chunkSize)
	}
	countWg.Wait()

	// D. Parallel Parsing
	workers := make([]*workerRows, numWorkers)
	sep := []byte{','}

	var parseWg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		parseWg.Add(1)
		go func(idx, start, end int) {
			defer parseWg.Done()

			hint := rowCounts[idx]
			w := &workerRows{
				dates:     make([]int32, 0, hint),
				confirmed: make([]int64, 0, hint),
				deaths:    make([]int64, 0, hint),
				recovered: make([]int64, 0, hint),
				regionIDs: make([]int32, 0, hint),
				dictMap:   make(map[string]int32),
			}
			workers[idx] = w

			// Align chunk to newlines, same rule as the count pass
			if start > 0 {
				if i := bytes.IndexByte(content[start:], '\n'); i != -1 {
					start += i + 1
				}
			}
			if end < len(content) {
				if i := bytes.IndexByte(content[end:], '\n'); i != -1 {
					end += i + 1
				} else {
					end = len(content)
				}
			}
			if idx == numWorkers-1 {
				end = len(content)
			}
			if start >= end {
				return
			}

			chunk := content[start:end]
			pos := 0

			// HOT LOOP: byte-level field scan, hopping unmapped columns
			for pos < len(chunk) {
				nextPos := len(chunk)
				if i := bytes.IndexByte(chunk[pos:], '\n'); i != -1 {
					nextPos = pos + i
				}
				line := chunk[pos:nextPos]
				pos = nextPos + 1

				line = bytes.TrimSuffix(line, []byte{'\r'})
				if len(line) == 0 {
					continue
				}

				var regionF, dateF, confF, deathF, recF []byte
				rest := line
				for col := 0; ; col++ {
					field, next, found := bytes.Cut(rest, sep)
					switch col {
					case cm.region:
						regionF = field
					case cm.date:
						dateF = field
					case cm.confirmed:
						confF = field
					case cm.deaths:
						deathF = field
					case cm.recovered:
						recF = field
					}
					if !found || col == cm.last {
						break
					}
					rest = next
				}

				date := parseDate(dateF)
				if date == 0 {
					w.dropped++
					continue
				}

				name := bytes.TrimSpace(regionF)
				s := unsafeToString(name)
				id, ok := w.dictMap[s]
				if !ok {
					id = int32(len(w.dict))
					str := string(name) // Allocate string for dict
					w.dict = append(w.dict, str)
					w.dictMap[str] = id
				}

				w.dates = append(w.dates, date)
				w.regionIDs = append(w.regionIDs, id)
				w.confirmed = append(w.confirmed, coerceCount(confF))
				w.deaths = append(w.deaths, coerceCount(deathF))
				w.recovered = append(w.recovered, coerceCount(recF))
			}
		}(i, i*chunkSize, (i+1)*chunkSize)
	}
	parseWg.Wait()

	// E. Merge worker chunks, remapping local dictionary IDs to global ones
	total := 0
	for _, w := range workers {
		total += len(w.dates)
	}
	store := &ColumnStore{
		Dates:     make([]int32, 0, total),
		Confirmed: make([]int64, 0, total),
		Deaths:    make([]int64, 0, total),
		Recovered: make([]int64, 0, total),
		RegionIDs: make([]int32, 0, total),
	}
	gMap := make(map[string]int32)
	for _, w := range workers {
		remap := make([]int32, len(w.dict))
		for lid, s := range w.dict {
			gid, exists := gMap[s]
			if !exists {
				gid = int32(len(store.RegionDict))
				store.RegionDict = append(store.RegionDict, s)
				gMap[s] = gid
			}
			remap[lid] = gid
		}
		for _, id := range w.regionIDs {
			store.RegionIDs = append(store.RegionIDs, remap[id])
		}
		store.Dates = append(store.Dates, w.dates...)
		store.Confirmed = append(store.Confirmed, w.confirmed...)
		store.Deaths = append(store.Deaths, w.deaths...)
		store.Recovered = append(store.Recovered, w.recovered...)
		store.DroppedRows += w.dropped
	}

	log.Info("load complete",
		zap.Int("rows", store.Len()),
		zap.Int("regions", len(store.RegionDict)),
		zap.Int("dropped_rows", store.DroppedRows),
		zap.Duration("elapsed", time.Since(start)))
	return store, nil
}
