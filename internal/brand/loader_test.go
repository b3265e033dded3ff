package brand

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKB struct {
	content string
	err     error
	fetches int
	saved   string
}

func (f *fakeKB) KnowledgeBase(context.Context) (string, error) {
	f.fetches++
	return f.content, f.err
}

func (f *fakeKB) SaveKnowledgeBase(_ context.Context, content string) error {
	f.saved = content
	return nil
}

func TestLoadDeliversOnceAndCaches(t *testing.T) {
	kb := &fakeKB{content: "Brand Name: Acme"}
	l := NewLoader(kb, zerolog.Nop())

	var got []Profile
	require.NoError(t, l.Load(context.Background(), func(p Profile) { got = append(got, p) }))
	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0].BrandName)

	require.NoError(t, l.Load(context.Background(), func(p Profile) { got = append(got, p) }))
	assert.Len(t, got, 2)
	assert.Equal(t, 1, kb.fetches)
}

func TestLoadFailureSkipsSink(t *testing.T) {
	kb := &fakeKB{err: errors.New("down")}
	l := NewLoader(kb, zerolog.Nop())
	called := false
	require.Error(t, l.Load(context.Background(), func(Profile) { called = true }))
	assert.False(t, called)

	kb.err = nil
	kb.content = "Brand Name: Later"
	require.NoError(t, l.Load(context.Background(), func(p Profile) { called = p.BrandName == "Later" }))
	assert.True(t, called)
}

func TestSaveUpdatesCache(t *testing.T) {
	kb := &fakeKB{}
	l := NewLoader(kb, zerolog.Nop())
	require.NoError(t, l.Save(context.Background(), Profile{BrandName: "Acme"}))
	assert.JSONEq(t, `{"brand_name":"Acme"}`, kb.saved)

	var got Profile
	require.NoError(t, l.Load(context.Background(), func(p Profile) { got = p }))
	assert.Equal(t, "Acme", got.BrandName)
	assert.Equal(t, 0, kb.fetches)
}
