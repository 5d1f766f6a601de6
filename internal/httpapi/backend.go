package httpapi

import (
	"context"

	"libreplexity/internal/citation"
	"libreplexity/internal/inference"
	"libreplexity/internal/pipeline"
	"libreplexity/pkg/types"
)

// Searches is the part of *pipeline.Pipeline the API drives.
type Searches interface {
	Run(ctx context.Context, query string) string
	Cancel()
	View() types.RunView
	Subscribe(ctx context.Context) <-chan pipeline.Run
	Resolve(r pipeline.Run) citation.Result
	SetQuery(q string)
	Suggest(ctx context.Context, q string) ([]string, error)
}

// Models is the part of *inference.Session the API drives.
type Models interface {
	Models() []types.ModelSpec
	ActiveModel() (types.ModelSpec, bool)
	Snapshot() types.EngineStatus
	Subscribe(ctx context.Context) <-chan types.EngineStatus
	Ready() bool
	SwitchByID(id string) (string, error)
	SwitchSize(size types.SizeClass) (string, error)
}

// Backend adapts a search pipeline and an inference session to Service.
type Backend struct {
	Searches Searches
	Models   Models
}

var _ Service = (*Backend)(nil)

// StartSearch refuses new runs while the engine sits in a failed state
// with nothing loaded, since the summary stage could never finish.
func (b *Backend) StartSearch(ctx context.Context, query string) (string, error) {
	st := b.Models.Snapshot()
	if st.State == string(inference.StateError) && st.ActiveModel == "" && !st.Loading {
		return "", inference.ErrEngineNotReady
	}
	return b.Searches.Run(ctx, query), nil
}

func (b *Backend) CancelSearch() { b.Searches.Cancel() }

func (b *Backend) SearchView() types.RunView { return b.Searches.View() }

// WatchSearch maps pipeline snapshots to views until ctx ends.
func (b *Backend) WatchSearch(ctx context.Context) <-chan types.RunView {
	runs := b.Searches.Subscribe(ctx)
	out := make(chan types.RunView)
	go func() {
		defer close(out)
		for r := range runs {
			select {
			case out <- pipeline.View(r, b.Searches.Resolve(r)):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (b *Backend) SetQuery(q string) { b.Searches.SetQuery(q) }

func (b *Backend) Suggest(ctx context.Context, q string) ([]string, error) {
	return b.Searches.Suggest(ctx, q)
}

func (b *Backend) ListModels() types.ModelsResponse {
	res := types.ModelsResponse{Models: b.Models.Models()}
	if m, ok := b.Models.ActiveModel(); ok {
		res.Active = m.ID
	}
	return res
}

func (b *Backend) ModelStatus() types.EngineStatus { return b.Models.Snapshot() }

func (b *Backend) WatchModelStatus(ctx context.Context) <-chan types.EngineStatus {
	return b.Models.Subscribe(ctx)
}

// SwitchModel prefers an explicit id over a size class.
func (b *Backend) SwitchModel(req types.SwitchRequest) (types.SwitchResponse, error) {
	var (
		op  string
		err error
	)
	if req.ID != "" {
		op, err = b.Models.SwitchByID(req.ID)
	} else {
		op, err = b.Models.SwitchSize(req.Size)
	}
	if err != nil {
		return types.SwitchResponse{}, err
	}
	return types.SwitchResponse{Op: op, ModelID: b.Models.Snapshot().DesiredModel}, nil
}

func (b *Backend) Ready() bool { return b.Models.Ready() }
