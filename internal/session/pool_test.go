package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/entrepeneur4lyf/chatgate/internal/llm"
)

// fakeHandler is a scriptable ChatHandler standing in for a real
// adapter. It mirrors history the way adapters do: the user and model
// turns are appended only when the scripted send succeeds.
type fakeHandler struct {
	provider llm.ProviderType
	history  []llm.Turn

	reply   string
	sendErr error
	sends   int
}

func (f *fakeHandler) StartSession(history []llm.Turn) {
	f.history = llm.CloneHistory(history)
}

func (f *fakeHandler) SendMessage(ctx context.Context, text, systemPrompt string) (string, error) {
	f.sends++
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.history = append(f.history,
		llm.NewTurn(llm.RoleUser, text),
		llm.NewTurn(llm.RoleModel, f.reply),
	)
	return f.reply, nil
}

func (f *fakeHandler) TestConnection(ctx context.Context) (bool, error) {
	return true, nil
}

func (f *fakeHandler) History() []llm.Turn {
	return llm.CloneHistory(f.history)
}

// fakeBuild returns a BuildFunc that records every construction.
func fakeBuild(built *[]*fakeHandler) BuildFunc {
	return func(provider llm.ProviderType, options llm.HandlerOptions) (llm.ChatHandler, error) {
		switch provider {
		case llm.ProviderGemini, llm.ProviderGroq, llm.ProviderQwen:
		default:
			return nil, &llm.UnsupportedProviderError{Provider: provider}
		}
		h := &fakeHandler{provider: provider, reply: fmt.Sprintf("reply from %s", provider)}
		*built = append(*built, h)
		return h, nil
	}
}

func TestPoolGetOrCreateIsIdempotent(t *testing.T) {
	var built []*fakeHandler
	pool := NewPool(fakeBuild(&built))

	first, err := pool.GetOrCreate(1, llm.ProviderGemini, "key", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := pool.GetOrCreate(1, llm.ProviderGemini, "key", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Error("same id and provider must return the same handler")
	}
	if len(built) != 1 {
		t.Errorf("expected 1 construction, got %d", len(built))
	}
	if pool.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", pool.Len())
	}
}

func TestPoolRebuildsOnProviderChange(t *testing.T) {
	var built []*fakeHandler
	pool := NewPool(fakeBuild(&built))

	history := []llm.Turn{llm.NewTurn(llm.RoleUser, "prior")}

	if _, err := pool.GetOrCreate(1, llm.ProviderGemini, "key", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	replacement, err := pool.GetOrCreate(1, llm.ProviderGroq, "key", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(built) != 2 {
		t.Fatalf("expected 2 constructions, got %d", len(built))
	}
	if replacement != built[1] {
		t.Error("provider change must return the fresh handler")
	}
	// The supplied history is replayed into the replacement.
	if got := built[1].History(); len(got) != 1 || got[0].Text() != "prior" {
		t.Errorf("history not replayed: %+v", got)
	}
	if pool.Len() != 1 {
		t.Errorf("expected the old entry to be replaced, got %d entries", pool.Len())
	}
}

func TestPoolUnknownProvider(t *testing.T) {
	var built []*fakeHandler
	pool := NewPool(fakeBuild(&built))

	_, err := pool.GetOrCreate(1, "openai", "key", nil)
	var unsupported *llm.UnsupportedProviderError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedProviderError, got %v", err)
	}
	if pool.Len() != 0 {
		t.Error("failed construction must not leave an entry")
	}
}

func TestPoolUpdateHistory(t *testing.T) {
	var built []*fakeHandler
	pool := NewPool(fakeBuild(&built))

	if _, err := pool.GetOrCreate(1, llm.ProviderQwen, "key", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turns := []llm.Turn{llm.NewTurn(llm.RoleUser, "hi"), llm.NewTurn(llm.RoleModel, "hello")}
	pool.UpdateHistory(1, turns)

	got, ok := pool.History(1)
	if !ok || len(got) != 2 {
		t.Fatalf("expected 2 stored turns, got %v (ok=%v)", got, ok)
	}

	// Unknown ids are ignored.
	pool.UpdateHistory(42, turns)
	if _, ok := pool.History(42); ok {
		t.Error("UpdateHistory must not create entries")
	}
}

func TestPoolRemoveAndClear(t *testing.T) {
	var built []*fakeHandler
	pool := NewPool(fakeBuild(&built))

	pool.GetOrCreate(1, llm.ProviderGemini, "key", nil)
	pool.GetOrCreate(2, llm.ProviderGroq, "key", nil)

	pool.Remove(1)
	if pool.Len() != 1 {
		t.Errorf("expected 1 entry after Remove, got %d", pool.Len())
	}

	pool.Clear()
	if pool.Len() != 0 {
		t.Errorf("expected 0 entries after Clear, got %d", pool.Len())
	}
}
