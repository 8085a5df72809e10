// Package mocks provides test doubles for the openai client.
package mocks

import (
	"context"

	openai "github.com/sells-group/autotrans-cli/pkg/openai"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Embed provides a mock function with given fields: ctx, text
func (_m *MockClient) Embed(ctx context.Context, text string) (*openai.EmbedResult, error) {
	ret := _m.Called(ctx, text)

	if len(ret) == 0 {
		panic("no return value specified for Embed")
	}

	var r0 *openai.EmbedResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*openai.EmbedResult, error)); ok {
		return rf(ctx, text)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*openai.EmbedResult)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Chat provides a mock function with given fields: ctx, req
func (_m *MockClient) Chat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResult, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Chat")
	}

	var r0 *openai.ChatResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, openai.ChatRequest) (*openai.ChatResult, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*openai.ChatResult)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
