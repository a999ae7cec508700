package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/tvarstm/stm"
	"github.com/tvarstm/stm/internal/jsonval"
)

// Snapshot is the canonical-JSON-serializable final state of every TVar a
// scenario's setup seeded, keyed by id and sorted for determinism.
type Snapshot struct {
	ScenarioName string                   `json:"scenario_name"`
	TVars        map[string]jsonval.Value `json:"tvars"`
}

func (s *Snapshot) toCanonical() jsonval.Value {
	obj := jsonval.Object{}
	for id, v := range s.TVars {
		obj[id] = v
	}

	return jsonval.Object{
		"scenario_name": jsonval.String(s.ScenarioName),
		"tvars":         obj,
	}
}

// RunWithGolden runs scenario against store and compares the final state of
// every seeded TVar against a golden file at testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, ctx context.Context, store *stm.Store, scenario *Scenario) error {
	t.Helper()

	if _, err := Run(ctx, store, scenario); err != nil {
		return err
	}

	snapshot := Snapshot{ScenarioName: scenario.Name, TVars: make(map[string]jsonval.Value)}
	for id := range scenario.Setup {
		v, err := stm.Atomically(ctx, store, func(tx *stm.Tx) (stm.Value, error) {
			return tx.ReadTVar(id)
		})
		if err != nil {
			return err
		}
		snapshot.TVars[id] = v
	}

	data, err := jsonval.MarshalCanonical(snapshot.toCanonical())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
