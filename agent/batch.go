package agent

import (
	"context"
	"maps"
	"sync"

	"github.com/aparry3/gymtext-sub007/api"
	"golang.org/x/sync/errgroup"
)

// SubAgent is a batch entry bound to a runnable agent.
type SubAgent struct {
	Agent     api.Agent
	Condition Condition
	Transform Transform
}

// RunBatches invokes the batches in order. Entries of one batch run
// concurrently; the first failing entry cancels its siblings and stops the
// run with a SubAgentBatchError. Conditions and transforms always see main,
// never the outputs of earlier batches. Entries without a transform receive
// the main response serialized as text.
//
// The returned map holds each invoked entry's response under its key and
// never contains "response".
func RunBatches(ctx context.Context, batches []map[string]SubAgent, main api.Result, parentInput string) (map[string]any, error) {
	outputs := make(map[string]any)
	if len(batches) == 0 {
		return outputs, nil
	}

	defaultInput, err := main.ResponseText()
	if err != nil {
		return nil, err
	}

	for i, batch := range batches {
		results, err := runBatch(ctx, i, batch, main, parentInput, defaultInput)
		if err != nil {
			return nil, err
		}
		maps.Copy(outputs, results)
	}
	delete(outputs, "response")
	return outputs, nil
}

func runBatch(ctx context.Context, index int, batch map[string]SubAgent, main api.Result, parentInput, defaultInput string) (map[string]any, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make(map[string]any, len(batch))

	for key, sub := range batch {
		if sub.Condition != nil && !sub.Condition(main) {
			continue
		}
		g.Go(func() error {
			input := defaultInput
			if sub.Transform != nil {
				transformed, err := sub.Transform(main, parentInput)
				if err != nil {
					return &api.SubAgentBatchError{Batch: index, Key: key, Err: err}
				}
				input = transformed
			}

			res, err := sub.Agent.Invoke(gctx, input)
			if err != nil {
				return &api.SubAgentBatchError{Batch: index, Key: key, Err: err}
			}

			mu.Lock()
			results[key] = res.Response
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
