package cookie

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_server/core/domain"
)

type fakeJar struct {
	in  map[string]string
	out map[string]*fiber.Cookie
}

func newFakeJar(in map[string]string) *fakeJar {
	return &fakeJar{in: in, out: map[string]*fiber.Cookie{}}
}

func (j *fakeJar) Cookies(key string, defaultValue ...string) string {
	if v, ok := j.in[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (j *fakeJar) Cookie(c *fiber.Cookie) {
	j.out[c.Name] = c
}

func TestStore_GetEmpty(t *testing.T) {
	s := NewStore(newFakeJar(nil), Options{Prefix: "rt_"})
	rec, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_GetDecodes(t *testing.T) {
	jar := newFakeJar(map[string]string{
		"rt_source":   "google",
		"rt_medium":   "organic",
		"rt_campaign": "spring%20sale",
		"rt_referrer": "https:%2F%2Fwww.google.com%2Fsearch%3Fq=x",
	})
	s := NewStore(jar, Options{Prefix: "rt_"})

	rec, err := s.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "google", rec.Source)
	assert.Equal(t, "spring sale", rec.Campaign)
	assert.Equal(t, "https://www.google.com/search?q=x", rec.Referrer)
}

func TestStore_ApplyAndClear(t *testing.T) {
	jar := newFakeJar(nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(jar, Options{Prefix: "rt_", Secure: true})
	s.now = func() time.Time { return now }

	err := s.Apply(context.Background(), []domain.StoreWrite{
		{Field: domain.FieldSource, Value: "news letter"},
		{Field: domain.FieldReferrer, Value: "https://a.b/c?d=e;f"},
	}, 30*24*time.Hour)
	require.NoError(t, err)

	src := jar.out["rt_source"]
	require.NotNil(t, src)
	assert.Equal(t, "news%20letter", src.Value)
	assert.Equal(t, "/", src.Path)
	assert.Equal(t, fiber.CookieSameSiteLaxMode, src.SameSite)
	assert.True(t, src.Secure)
	assert.False(t, src.HTTPOnly)
	assert.Equal(t, now.Add(30*24*time.Hour), src.Expires)

	ref := jar.out["rt_referrer"]
	require.NotNil(t, ref)
	assert.NotContains(t, ref.Value, ";")

	require.NoError(t, s.Clear(context.Background()))
	for _, f := range domain.AllFields {
		c := jar.out["rt_"+string(f)]
		require.NotNil(t, c, f)
		assert.True(t, c.Expires.Before(now), f)
		assert.Empty(t, c.Value)
	}
}

func TestStore_NilJar(t *testing.T) {
	s := NewStore(nil, Options{})
	rec, err := s.Get(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, s.Apply(context.Background(), []domain.StoreWrite{{Field: domain.FieldSource, Value: "x"}}, time.Hour))
	assert.NoError(t, s.Clear(context.Background()))
}

func TestStore_RawReferrerRoundTrip(t *testing.T) {
	ref := `android-app://com.google.android.gm/"><x>,\`
	jar := newFakeJar(nil)
	s := NewStore(jar, Options{Prefix: "rt_"})

	require.NoError(t, s.Apply(context.Background(), []domain.StoreWrite{
		{Field: domain.FieldReferrer, Value: ref},
	}, time.Hour))

	stored := jar.out["rt_referrer"].Value
	assert.NotContains(t, stored, `"`)
	assert.NotContains(t, stored, `<`)
	assert.NotContains(t, stored, `,`)
	assert.NotContains(t, stored, `\`)

	rec, err := NewStore(newFakeJar(map[string]string{"rt_referrer": stored}), Options{Prefix: "rt_"}).Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ref, rec.Referrer)
}
