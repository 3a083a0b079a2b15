package experiment

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grobbelaar/cdntest/trial"
)

type recordingRunner struct {
	warmups []string
	trials  []string
}

func (r *recordingRunner) Run(
	ctx context.Context,
	runID uuid.UUID,
	pageID string,
	variant trial.Variant,
	runIndex int,
	url string,
) trial.Trial {
	r.trials = append(r.trials, fmt.Sprintf("%s/%s/%d", pageID, variant, runIndex))

	return trial.Trial{
		ID:       uuid.New(),
		RunID:    runID,
		PageID:   pageID,
		Variant:  variant,
		RunIndex: runIndex,
	}
}

func (r *recordingRunner) Warmup(ctx context.Context, url string) error {
	r.warmups = append(r.warmups, url)
	return nil
}

func pages() []PageSpec {
	return []PageSpec{
		{ID: "home", OriginURL: "https://origin.example.com/", CDNURL: "https://cdn.example.com/"},
		{ID: "gallery", OriginURL: "https://origin.example.com/gallery", CDNURL: "https://cdn.example.com/gallery"},
	}
}

func TestExecuteProducesEveryTriple(t *testing.T) {
	assert := assert.New(t)

	runner := &recordingRunner{}
	orchestrator, err := New(runner, Config{Pages: pages(), Repeats: 3, Seed: 1})
	require.NoError(t, err)

	runID, records := orchestrator.Execute(context.Background())

	assert.Len(records, 12)

	// every (page, variant, repeat) triple appears exactly once
	seen := map[string]int{}
	for _, record := range records {
		assert.Equal(runID, record.RunID)
		seen[fmt.Sprintf("%s/%s/%d", record.PageID, record.Variant, record.RunIndex)]++
	}

	assert.Len(seen, 12)
	for triple, count := range seen {
		assert.Equal(1, count, "triple %s duplicated", triple)
	}
}

func TestExecuteOrderIsPageMajorRepeatMinor(t *testing.T) {
	assert := assert.New(t)

	runner := &recordingRunner{}
	orchestrator, err := New(runner, Config{Pages: pages(), Repeats: 2, Seed: 42})
	require.NoError(t, err)

	_, records := orchestrator.Execute(context.Background())

	// both variants of a repeat are adjacent, repeats ascend within a page
	for i := 0; i < len(records); i += 2 {
		assert.Equal(records[i].PageID, records[i+1].PageID)
		assert.Equal(records[i].RunIndex, records[i+1].RunIndex)
		assert.NotEqual(records[i].Variant, records[i+1].Variant)
	}

	assert.Equal("home", records[0].PageID)
	assert.Equal("gallery", records[4].PageID)
	assert.Equal(0, records[0].RunIndex)
	assert.Equal(1, records[2].RunIndex)
}

func TestExecuteShufflesDeterministicallyWithSeed(t *testing.T) {
	assert := assert.New(t)

	first := &recordingRunner{}
	second := &recordingRunner{}

	o1, err := New(first, Config{Pages: pages(), Repeats: 5, Seed: 7})
	require.NoError(t, err)
	o2, err := New(second, Config{Pages: pages(), Repeats: 5, Seed: 7})
	require.NoError(t, err)

	o1.Execute(context.Background())
	o2.Execute(context.Background())

	assert.Equal(first.trials, second.trials)
}

func TestWarmupCoversEveryCombination(t *testing.T) {
	assert := assert.New(t)

	runner := &recordingRunner{}
	orchestrator, err := New(runner, Config{Pages: pages(), Repeats: 1, WarmupPasses: 2, Seed: 1})
	require.NoError(t, err)

	orchestrator.Execute(context.Background())

	// 2 passes x 2 pages x 2 variants
	assert.Len(runner.warmups, 8)
	assert.Contains(runner.warmups, "https://origin.example.com/gallery")
	assert.Contains(runner.warmups, "https://cdn.example.com/")
}

func TestNewRequiresPages(t *testing.T) {
	_, err := New(&recordingRunner{}, Config{})
	assert.Error(t, err)
}
