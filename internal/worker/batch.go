package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Warmer resolves a title and fills the caches for it
type Warmer interface {
	Warm(ctx context.Context, title string) (bool, error)
}

// WarmJob warms the caches for one title
type WarmJob struct {
	Title  string
	Warmer Warmer
}

// Execute executes the warm job
func (j *WarmJob) Execute(ctx context.Context) Result {
	mirrored, err := j.Warmer.Warm(ctx, j.Title)
	return &WarmResult{
		Title:    j.Title,
		Mirrored: mirrored,
		Error:    err,
	}
}

// WarmResult represents the result of a warm job
type WarmResult struct {
	Title    string
	Mirrored bool
	Error    error
}

// GetError returns the error from the warm result
func (r *WarmResult) GetError() error {
	return r.Error
}

// BatchProcessor warms many titles concurrently
type BatchProcessor struct {
	warmer      Warmer
	concurrency int
	progress    func(*WarmResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(warmer Warmer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		warmer:      warmer,
		concurrency: concurrency,
	}
}

// OnProgress registers a callback invoked as each title completes
func (b *BatchProcessor) OnProgress(fn func(*WarmResult)) {
	b.progress = fn
}

// ProcessTitles warms titles concurrently
func (b *BatchProcessor) ProcessTitles(ctx context.Context, titles []string) []*WarmResult {
	if len(titles) == 0 {
		return []*WarmResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	if b.progress != nil {
		pool.OnResult(func(r Result) { b.progress(r.(*WarmResult)) })
	}
	pool.Start()

	for _, title := range titles {
		if !pool.Submit(&WarmJob{Title: title, Warmer: b.warmer}) {
			break
		}
	}

	results := pool.Wait()

	warmResults := make([]*WarmResult, len(results))
	for i, result := range results {
		warmResults[i] = result.(*WarmResult)
	}

	return warmResults
}

// ProcessFile reads titles from a file and warms them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*WarmResult, error) {
	titles, err := ReadTitlesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read titles: %w", err)
	}

	return b.ProcessTitles(ctx, titles), nil
}

// ReadTitlesFromFile reads titles from a file (one per line), skipping blank
// lines, comments and duplicates
func ReadTitlesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var titles []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			titles = append(titles, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return titles, nil
}
