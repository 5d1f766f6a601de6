package httpapi

import (
	"context"
	"testing"
	"time"

	"libreplexity/internal/citation"
	"libreplexity/internal/inference"
	"libreplexity/internal/pipeline"
	"libreplexity/pkg/types"
)

type fakeSearches struct {
	runs   []pipeline.Run
	ran    []string
	cancel int
}

func (f *fakeSearches) Run(_ context.Context, q string) string { f.ran = append(f.ran, q); return "id-1" }
func (f *fakeSearches) Cancel()                               { f.cancel++ }
func (f *fakeSearches) View() types.RunView                    { return types.RunView{ID: "id-1"} }
func (f *fakeSearches) SetQuery(string)                        {}
func (f *fakeSearches) Suggest(context.Context, string) ([]string, error) {
	return []string{"s"}, nil
}

func (f *fakeSearches) Subscribe(ctx context.Context) <-chan pipeline.Run {
	ch := make(chan pipeline.Run, len(f.runs))
	for _, r := range f.runs {
		ch <- r
	}
	close(ch)
	return ch
}

func (f *fakeSearches) Resolve(r pipeline.Run) citation.Result {
	return citation.Result{Text: "resolved " + r.RawSummary}
}

type fakeModels struct {
	status   types.EngineStatus
	active   *types.ModelSpec
	switched string
}

func (f *fakeModels) Models() []types.ModelSpec {
	return []types.ModelSpec{{ID: "small-1", SizeClass: types.SizeSmall}, {ID: "large-1", SizeClass: types.SizeLarge}}
}

func (f *fakeModels) ActiveModel() (types.ModelSpec, bool) {
	if f.active == nil {
		return types.ModelSpec{}, false
	}
	return *f.active, true
}

func (f *fakeModels) Snapshot() types.EngineStatus { return f.status }
func (f *fakeModels) Ready() bool                  { return f.active != nil }

func (f *fakeModels) Subscribe(ctx context.Context) <-chan types.EngineStatus {
	ch := make(chan types.EngineStatus, 1)
	ch <- f.status
	close(ch)
	return ch
}

func (f *fakeModels) SwitchByID(id string) (string, error) {
	if id != "small-1" && id != "large-1" {
		return "", inference.ErrModelNotFound(id)
	}
	f.switched = id
	f.status.DesiredModel = id
	return "op", nil
}

func (f *fakeModels) SwitchSize(size types.SizeClass) (string, error) {
	if size != types.SizeLarge {
		return "", inference.ErrModelNotFound(string(size))
	}
	return f.SwitchByID("large-1")
}

func TestBackend_StartSearch(t *testing.T) {
	s := &fakeSearches{}
	b := &Backend{Searches: s, Models: &fakeModels{status: types.EngineStatus{State: "loading", Loading: true}}}
	id, err := b.StartSearch(context.Background(), "q")
	if err != nil || id != "id-1" { t.Fatalf("start: %q %v", id, err) }

	b.Models = &fakeModels{status: types.EngineStatus{State: string(inference.StateError), Error: "load failed"}}
	if _, err := b.StartSearch(context.Background(), "q"); !inference.IsEngineNotReady(err) { t.Fatalf("err = %v", err) }
	if len(s.ran) != 1 { t.Fatalf("ran=%v", s.ran) }
}

func TestBackend_WatchSearchResolves(t *testing.T) {
	s := &fakeSearches{runs: []pipeline.Run{
		{ID: "a", Fetching: true, RawSummary: "x"},
		{ID: "a", RawSummary: "xy"},
	}}
	b := &Backend{Searches: s, Models: &fakeModels{}}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var got []types.RunView
	for v := range b.WatchSearch(ctx) {
		got = append(got, v)
	}
	if len(got) != 2 { t.Fatalf("views=%d", len(got)) }
	if got[1].Summary != "resolved xy" || got[1].Fetching { t.Fatalf("last view=%+v", got[1]) }
}

func TestBackend_Models(t *testing.T) {
	m := &fakeModels{active: &types.ModelSpec{ID: "small-1"}}
	b := &Backend{Searches: &fakeSearches{}, Models: m}
	if res := b.ListModels(); len(res.Models) != 2 || res.Active != "small-1" { t.Fatalf("models=%+v", res) }
	if !b.Ready() { t.Fatalf("expected ready") }

	res, err := b.SwitchModel(types.SwitchRequest{Size: types.SizeLarge})
	if err != nil || res.ModelID != "large-1" || res.Op != "op" { t.Fatalf("switch by size: %+v %v", res, err) }
	res, err = b.SwitchModel(types.SwitchRequest{ID: "small-1", Size: types.SizeLarge})
	if err != nil || m.switched != "small-1" { t.Fatalf("id should win over size: %+v %v", res, err) }
	if _, err := b.SwitchModel(types.SwitchRequest{ID: "nope"}); !inference.IsModelNotFound(err) { t.Fatalf("err = %v", err) }
}

func TestBackend_WatchModelStatus(t *testing.T) {
	b := &Backend{Searches: &fakeSearches{}, Models: &fakeModels{status: types.EngineStatus{State: "ready", ActiveModel: "small-1"}}}
	var got []types.EngineStatus
	for st := range b.WatchModelStatus(context.Background()) {
		got = append(got, st)
	}
	if len(got) != 1 || got[0].ActiveModel != "small-1" { t.Fatalf("statuses=%+v", got) }
}
