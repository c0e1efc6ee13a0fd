package suggest

import (
	"context"
	"sync"

	"github.com/kwestin/tally/internal/llm"
	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/service"
)

// mockClient is a scripted llm.Client that counts classification calls.
type mockClient struct {
	classifyFn func(req llm.ClassifyRequest) (llm.ClassificationResult, error)
	calls      int
	mu         sync.Mutex
}

func (m *mockClient) Classify(_ context.Context, req llm.ClassifyRequest) (llm.ClassificationResult, error) {
	m.mu.Lock()
	m.calls++
	fn := m.classifyFn
	m.mu.Unlock()

	if fn == nil {
		return llm.ClassificationResult{}, llm.NewError(llm.ErrConnection, "not scripted", nil)
	}
	return fn(req)
}

func (m *mockClient) Summarize(_ context.Context, _ llm.SummaryRequest) (llm.SummaryResult, error) {
	return llm.SummaryResult{}, llm.NewError(llm.ErrConnection, "not scripted", nil)
}

func (m *mockClient) Provider() string {
	return "openai"
}

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSource is an in-memory CategorySource.
type mockSource struct {
	categories []model.Category
	examples   []service.ClassificationExample
}

func (m *mockSource) GetCategories(_ context.Context) ([]model.Category, error) {
	return m.categories, nil
}

func (m *mockSource) GetClassificationExamples(_ context.Context) ([]service.ClassificationExample, error) {
	return m.examples, nil
}

func testCategories() []model.Category {
	return []model.Category{
		{ID: "cat-dining", Name: "Dining", Type: model.CategoryTypeExpense},
		{ID: "cat-groceries", Name: "Groceries", Type: model.CategoryTypeExpense},
		{ID: "cat-salary", Name: "Salary", Type: model.CategoryTypeIncome},
	}
}

func testExamples() []service.ClassificationExample {
	return []service.ClassificationExample{
		{Description: "starbucks coffee downtown", CategoryID: "cat-dining"},
		{Description: "chipotle lunch burrito", CategoryID: "cat-dining"},
		{Description: "whole foods market groceries", CategoryID: "cat-groceries"},
		{Description: "safeway weekly groceries run", CategoryID: "cat-groceries"},
	}
}
