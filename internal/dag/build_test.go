package dag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/newsdag/internal/config"
	"github.com/vk/newsdag/internal/task"
)

func testWorkflow() *config.Workflow {
	return &config.Workflow{
		ID:       "newsapi_to_gcs",
		Defaults: config.Defaults{Retries: 0, RetryDelay: 5 * time.Minute},
		Tasks: []*config.Task{
			{Name: "fetch", Action: config.ActionFetch},
			{Name: "ensure", Action: config.ActionSQL, SQL: "CREATE TABLE IF NOT EXISTS t", DependsOn: []string{"fetch"}},
			{Name: "load", Action: config.ActionSQL, SQL: "COPY INTO t", DependsOn: []string{"ensure"}},
		},
	}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("builds tasks, actions and edges", func(t *testing.T) {
		g, err := Build(ctx, testWorkflow())
		require.NoError(t, err)

		assert.Equal(t, "newsapi_to_gcs", g.ID())
		assert.Equal(t, []string{"fetch", "ensure", "load"}, g.TopologicalOrder())

		fetch, ok := g.Task("fetch")
		require.True(t, ok)
		assert.Equal(t, task.InvokeFetch{}, fetch.Action())

		load, ok := g.Task("load")
		require.True(t, ok)
		assert.Equal(t, task.ExecuteStatement{SQL: "COPY INTO t"}, load.Action())
		assert.Equal(t, 5*time.Minute, load.Policy().RetryDelay)
	})

	t.Run("task overrides win over defaults", func(t *testing.T) {
		wf := testWorkflow()
		retries := 2
		delay := time.Second
		wf.Tasks[2].Retries = &retries
		wf.Tasks[2].RetryDelay = &delay

		g, err := Build(ctx, wf)
		require.NoError(t, err)
		load, _ := g.Task("load")
		assert.Equal(t, 2, load.Policy().Retries)
		assert.Equal(t, time.Second, load.Policy().RetryDelay)

		fetch, _ := g.Task("fetch")
		assert.Equal(t, 0, fetch.Policy().Retries)
	})

	t.Run("definition errors", func(t *testing.T) {
		wf := testWorkflow()
		wf.Tasks = append(wf.Tasks, &config.Task{Name: "fetch", Action: config.ActionFetch})
		_, err := Build(ctx, wf)
		var dup *DuplicateTaskError
		assert.ErrorAs(t, err, &dup)

		wf = testWorkflow()
		wf.Tasks[1].DependsOn = []string{"missing"}
		_, err = Build(ctx, wf)
		assert.True(t, errors.Is(err, ErrUnknownTask))

		wf = testWorkflow()
		wf.Tasks[0].DependsOn = []string{"load"}
		_, err = Build(ctx, wf)
		var cycle *CycleError
		assert.ErrorAs(t, err, &cycle)

		wf = testWorkflow()
		wf.Tasks[0].Action = "python"
		_, err = Build(ctx, wf)
		assert.ErrorContains(t, err, "unknown action 'python'")

		_, err = Build(ctx, nil)
		assert.Error(t, err)
	})
}
