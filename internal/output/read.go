package output

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	separatorRe = regexp.MustCompile(`^--- Unit (\d+) ---$`)
	errorRe     = regexp.MustCompile(`^\[ERROR: Unit (\d+) failed after (\d+) retries - (.*)\]$`)
)

// Entry is one record of the artifact, in file order.
type Entry struct {
	Unit    int    `json:"unit"`
	Text    string `json:"text,omitempty"`
	Failed  bool   `json:"failed,omitempty"`
	Retries int    `json:"retries,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Read parses an artifact back into its entries.
func Read(path string) ([]Entry, error) {
	_, entries, err := readFile(path)
	return entries, err
}

// readFile returns the header text before the first entry and the entries
// in file order.
func readFile(path string) (string, []Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	var (
		header  []string
		entries []Entry
		cur     *Entry
		body    []string
		started bool
	)
	closeEntry := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(strings.Join(body, "\n"))
		entries = append(entries, *cur)
		cur, body = nil, nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := separatorRe.FindStringSubmatch(line); m != nil {
			closeEntry()
			started = true
			n, _ := strconv.Atoi(m[1])
			cur = &Entry{Unit: n}
			continue
		}
		if m := errorRe.FindStringSubmatch(line); m != nil {
			closeEntry()
			started = true
			n, _ := strconv.Atoi(m[1])
			retries, _ := strconv.Atoi(m[2])
			entries = append(entries, Entry{Unit: n, Failed: true, Retries: retries, Error: m[3]})
			continue
		}
		switch {
		case cur != nil:
			body = append(body, line)
		case !started:
			header = append(header, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("failed to read output: %w", err)
	}
	closeEntry()
	return strings.Join(header, "\n"), entries, nil
}

// Ordered returns one entry per unit in unit order: the latest success, or
// the latest error marker for a unit that never succeeded. Resumed runs
// append retried units after later ones, so file order is not unit order
// until the artifact is compacted.
func Ordered(entries []Entry) []Entry {
	latest := make(map[int]Entry)
	for _, e := range entries {
		if prev, ok := latest[e.Unit]; ok && !prev.Failed && e.Failed {
			continue
		}
		latest[e.Unit] = e
	}
	out := make([]Entry, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out
}
