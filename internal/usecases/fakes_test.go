package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
)

type fakeGateway struct {
	callFn func(ctx context.Context, method, path string, params map[string]string, body any) domain.CallResult
	dualFn func(ctx context.Context, interopPath string, params map[string]string) domain.CallResult
}

func (f fakeGateway) Call(ctx context.Context, method, path string, params map[string]string, body any) domain.CallResult {
	return f.callFn(ctx, method, path, params, body)
}

func (f fakeGateway) GetDualBase(ctx context.Context, interopPath string, params map[string]string) domain.CallResult {
	return f.dualFn(ctx, interopPath, params)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fakeReportStore struct {
	mu    sync.Mutex
	saved []domain.RunReport
	err   error
}

func (f *fakeReportStore) SaveRunReport(_ context.Context, report domain.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, report)
	return nil
}

type fakeCompletionService struct {
	turns []domain.Turn
	errs  []error
	calls []domain.CompletionRequest
}

func (f *fakeCompletionService) CreateTurn(_ context.Context, req domain.CompletionRequest) (domain.Turn, error) {
	i := len(f.calls)
	f.calls = append(f.calls, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return domain.Turn{}, f.errs[i]
	}
	if i >= len(f.turns) {
		return domain.Turn{Role: domain.ChatRole_Assistant}, nil
	}
	return f.turns[i], nil
}

type toolCallRecord struct {
	name      string
	arguments map[string]any
}

type fakeToolChannel struct {
	catalog []domain.ToolDescriptor
	listErr error
	callFn  func(name string, arguments map[string]any) (string, error)
	calls   []toolCallRecord
}

func (f *fakeToolChannel) ListTools(context.Context) ([]domain.ToolDescriptor, error) {
	return f.catalog, f.listErr
}

func (f *fakeToolChannel) CallTool(_ context.Context, name string, arguments map[string]any) (string, error) {
	f.calls = append(f.calls, toolCallRecord{name: name, arguments: arguments})
	if f.callFn != nil {
		return f.callFn(name, arguments)
	}
	return "ok", nil
}
