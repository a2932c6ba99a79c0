package connector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolverStripsSourceName(t *testing.T) {
	r, err := NewResolver("/data")
	require.NoError(t, err)

	p, err := r.Resolve(LogicalPath{"mysource", "sales", "orders"})
	require.NoError(t, err)
	require.Equal(t, "/data/sales/orders", p)
}

func TestResolverSourceOnly(t *testing.T) {
	r, err := NewResolver("/data")
	require.NoError(t, err)

	p, err := r.Resolve(LogicalPath{"mysource"})
	require.NoError(t, err)
	require.Equal(t, "/data", p)
}

func TestResolverStripsQuotes(t *testing.T) {
	r, err := NewResolver("/data")
	require.NoError(t, err)

	tests := []struct {
		name     string
		logical  LogicalPath
		expected string
	}{
		{"double quotes", LogicalPath{"src", `"sales"`, "orders"}, "/data/sales/orders"},
		{"backticks", LogicalPath{"src", "`sales`", "orders"}, "/data/sales/orders"},
		{"brackets", LogicalPath{"src", "[sales]", "orders"}, "/data/sales/orders"},
		{"unquoted", LogicalPath{"src", "sales", "orders"}, "/data/sales/orders"},
		{"single char", LogicalPath{"src", "a"}, "/data/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Resolve(tt.logical)
			require.NoError(t, err)
			require.Equal(t, tt.expected, p)
		})
	}
}

func TestResolverSandboxViolation(t *testing.T) {
	r, err := NewResolver("/data")
	require.NoError(t, err)

	tests := []struct {
		name    string
		logical LogicalPath
	}{
		{"parent traversal", LogicalPath{"src", ".."}},
		{"nested traversal", LogicalPath{"src", "sales", "..", "..", "etc"}},
		{"quoted traversal", LogicalPath{"src", `".."`, "secrets"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.logical)
			var violation *SandboxViolationError
			require.True(t, errors.As(err, &violation), "expected SandboxViolationError, got %v", err)
		})
	}
}

func TestResolverSiblingPrefixIsViolation(t *testing.T) {
	// /data-other shares the string prefix of /data but is outside it.
	r, err := NewResolver("/data")
	require.NoError(t, err)

	_, err = r.ResolveRelative("../data-other/x")
	var violation *SandboxViolationError
	require.True(t, errors.As(err, &violation))
}

func TestResolveRelative(t *testing.T) {
	r, err := NewResolver("/data")
	require.NoError(t, err)

	p, err := r.ResolveRelative("sales/.orders.view.meta")
	require.NoError(t, err)
	require.Equal(t, "/data/sales/.orders.view.meta", p)
}

func TestNewResolverRejectsRelativeRoot(t *testing.T) {
	_, err := NewResolver("data")
	require.Error(t, err)

	_, err = NewResolver("")
	require.Error(t, err)
}
