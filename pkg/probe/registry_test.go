package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stub(id string) Probe {
	return Func(Descriptor{ID: id, DisplayName: "Probe " + id}, func(context.Context, Target) Result {
		return Pass("ok", "", "")
	})
}

func ids(ds []Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func TestRegistry_PreservesDeclarationOrder(t *testing.T) {
	reg, err := NewRegistry(stub("c"), stub("a"), stub("b"))
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"c", "a", "b"}, ids(reg.Descriptors()))
}

func TestRegistry_DuplicateIsFatal(t *testing.T) {
	_, err := NewRegistry(stub("tls"), stub("headers"), stub("tls"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateProbe))
	assert.Contains(t, err.Error(), "tls")

	reg, err := NewRegistry(stub("tls"))
	require.NoError(t, err)
	assert.Panics(t, func() { reg.MustRegister(stub("tls")) })
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_RejectsInvalidProbes(t *testing.T) {
	var reg Registry

	err := reg.Register(nil)
	assert.True(t, errors.Is(err, ErrInvalidProbe))

	err = reg.Register(stub(""))
	assert.True(t, errors.Is(err, ErrInvalidProbe))

	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_ProbesReturnsSnapshot(t *testing.T) {
	reg, err := NewRegistry(stub("a"), stub("b"))
	require.NoError(t, err)

	snap := reg.Probes()
	snap[0] = stub("zzz")
	require.NoError(t, reg.Register(stub("c")))

	assert.Len(t, snap, 2)
	assert.Equal(t, []string{"a", "b", "c"}, ids(reg.Descriptors()))
}

func TestRegistry_Lookup(t *testing.T) {
	reg, err := NewRegistry(stub("a"), stub("b"))
	require.NoError(t, err)

	p, ok := reg.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "b", p.Descriptor().ID)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_Select(t *testing.T) {
	reg, err := NewRegistry(stub("a"), stub("b"), stub("c"), stub("d"))
	require.NoError(t, err)

	sub, err := reg.Select("d", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, ids(sub.Descriptors()))

	all, err := reg.Select()
	require.NoError(t, err)
	assert.Equal(t, 4, all.Len())

	_, err = reg.Select("a", "nope")
	assert.True(t, errors.Is(err, ErrUnknownProbe))
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	reg := &Registry{}
	for i := 0; i < 20; i++ {
		reg.MustRegister(stub(fmt.Sprintf("p%02d", i)))
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = reg.Probes()
				_, _ = reg.Lookup("p07")
				_ = reg.Len()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, reg.Len())
}
