// Package mocks provides test doubles for the catalog client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	catalog "github.com/trailcraft-group/augment-cli/pkg/catalog"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// NewMockClient creates a new MockClient bound to the test's lifecycle.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Search provides a mock function with given fields: ctx, query, opts
func (_m *MockClient) Search(ctx context.Context, query string, opts ...catalog.SearchOption) (*catalog.SearchResponse, error) {
	varArgs := make([]interface{}, 0, len(opts)+2)
	varArgs = append(varArgs, ctx, query)
	for _, o := range opts {
		varArgs = append(varArgs, o)
	}
	ret := _m.Called(varArgs...)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 *catalog.SearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, ...catalog.SearchOption) (*catalog.SearchResponse, error)); ok {
		return rf(ctx, query, opts...)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, ...catalog.SearchOption) *catalog.SearchResponse); ok {
		r0 = rf(ctx, query, opts...)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*catalog.SearchResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, ...catalog.SearchOption) error); ok {
		r1 = rf(ctx, query, opts...)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}
