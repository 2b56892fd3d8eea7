// Package csvproc parses delimited exports and slices them into
// token-bounded batches ready to be sent to an LLM backend.
package csvproc

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Record maps a column name to its cell value. Only selected columns are
// retained during parsing.
type Record map[string]string

// Batch is an ordered run of records whose combined estimated token cost
// stays under the processor's limit.
type Batch []Record

// Stats summarizes how the batcher would slice a record set. Diagnostic only.
type Stats struct {
	TotalRecords            int     `json:"totalRecords"`
	BatchCount              int     `json:"batchCount"`
	AvgBatchSize            float64 `json:"avgBatchSize"`
	EstimatedTokensPerBatch int     `json:"estimatedTokensPerBatch"`
}

const (
	// DefaultTokenLimit bounds the estimated token cost of one batch.
	DefaultTokenLimit = 3000

	// charsPerToken is the length heuristic: one token per ~4 characters.
	charsPerToken = 4
)

type Processor struct {
	tokenLimit int
}

func NewProcessor(tokenLimit int) *Processor {
	if tokenLimit <= 0 {
		tokenLimit = DefaultTokenLimit
	}
	return &Processor{tokenLimit: tokenLimit}
}

func (p *Processor) TokenLimit() int {
	return p.tokenLimit
}

// newReader configures csv parsing the lenient way: quoted fields and
// embedded delimiters honored, variable-width rows allowed.
func newReader(raw string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(raw))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return r
}

// Headers returns the header row exactly as parsed, in order and with
// duplicates intact. Deduplication is the caller's concern.
func (p *Processor) Headers(raw string) ([]string, error) {
	reader := newReader(raw)
	row, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}
	headers := make([]string, len(row))
	for i, h := range row {
		headers[i] = strings.TrimSpace(h)
	}
	return headers, nil
}

// Parse splits raw CSV content into records restricted to selectedFields.
// It returns the records plus the selected columns in header order, which
// callers use to keep formatted output deterministic. Rows whose selected
// cells are all blank are dropped; rows that fail to parse are skipped.
func (p *Processor) Parse(raw string, selectedFields []string) ([]Record, []string, error) {
	reader := newReader(raw)

	headerRow, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header row: %w", err)
	}

	selected := make(map[string]bool, len(selectedFields))
	for _, f := range selectedFields {
		selected[f] = true
	}

	// Selected columns in header order, first occurrence wins for duplicates.
	var columns []string
	colIndex := map[string]int{}
	for i, h := range headerRow {
		name := strings.TrimSpace(h)
		if selected[name] {
			if _, dup := colIndex[name]; !dup {
				columns = append(columns, name)
				colIndex[name] = i
			}
		}
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row is skipped, never fatal to the whole parse.
			continue
		}

		rec := make(Record, len(columns))
		blank := true
		for _, col := range columns {
			idx := colIndex[col]
			val := ""
			if idx < len(row) {
				val = strings.TrimSpace(row[idx])
			}
			rec[col] = val
			if val != "" {
				blank = false
			}
		}
		if !blank {
			records = append(records, rec)
		}
	}

	return records, columns, nil
}

// CreateBatches greedily accumulates records until the projected token cost
// would exceed the limit. A single record over the limit still closes its
// own batch, so progress is always guaranteed.
func (p *Processor) CreateBatches(records []Record, columns []string) []Batch {
	var batches []Batch
	var current Batch
	currentTokens := 0

	for _, rec := range records {
		cost := p.recordCost(rec, columns)
		if len(current) > 0 && currentTokens+cost > p.tokenLimit {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, rec)
		currentTokens += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}

// FormatBatch renders a batch as the labeled item blocks the summarization
// prompt embeds:
//
//	Item 1:
//	- Summary: Fixed login timeout
//	- Status: Done
func (p *Processor) FormatBatch(batch Batch, columns []string) string {
	var b strings.Builder
	for i, rec := range batch {
		fmt.Fprintf(&b, "Item %d:\n", i+1)
		b.WriteString(recordLines(rec, columns))
		b.WriteString("\n")
	}
	return b.String()
}

// Stats reports how the batching algorithm slices the given records.
func (p *Processor) Stats(records []Record, columns []string) Stats {
	batches := p.CreateBatches(records, columns)

	stats := Stats{
		TotalRecords: len(records),
		BatchCount:   len(batches),
	}
	if len(batches) == 0 {
		return stats
	}

	totalTokens := 0
	for _, batch := range batches {
		for _, rec := range batch {
			totalTokens += p.recordCost(rec, columns)
		}
	}
	stats.AvgBatchSize = float64(len(records)) / float64(len(batches))
	stats.EstimatedTokensPerBatch = totalTokens / len(batches)
	return stats
}

func (p *Processor) recordCost(rec Record, columns []string) int {
	return EstimateTokens("Item 0:\n" + recordLines(rec, columns) + "\n")
}

func recordLines(rec Record, columns []string) string {
	var b strings.Builder
	for _, col := range columns {
		if val := rec[col]; val != "" {
			fmt.Fprintf(&b, "- %s: %s\n", col, val)
		}
	}
	return b.String()
}

// EstimateTokens returns a deterministic length-based token estimate:
// ceil(character count / 4).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}
