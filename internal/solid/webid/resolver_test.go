package webid

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fedgate/internal/solid/oidc"
)

const master = "https://x/profile#me"

// fakeSource is an upstream that counts calls per audience and can be held
// open to keep a resolution in flight.
type fakeSource struct {
	mu      sync.Mutex
	calls   map[string]int
	aliases map[string]string
	failing map[string]bool
	gate    chan struct{}
	entered chan struct{}
}

func newFakeSource(aliases map[string]string) *fakeSource {
	return &fakeSource{
		calls:   map[string]int{},
		aliases: aliases,
		failing: map[string]bool{},
		entered: make(chan struct{}, 100),
	}
}

func (f *fakeSource) LookupAlias(ctx context.Context, webID, audience string) (string, error) {
	f.mu.Lock()
	f.calls[audience]++
	fail := f.failing[audience]
	gate := f.gate
	f.mu.Unlock()

	f.entered <- struct{}{}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", errors.New("identity provider unavailable")
	}
	return f.aliases[audience], nil
}

func (f *fakeSource) count(audience string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[audience]
}

func (f *fakeSource) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeSource) setFailing(audience string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[audience] = fail
}

func newTestResolver(src AliasSource, ttl time.Duration) (*Resolver, *Cache) {
	cache := NewCache(100, ttl)
	return NewResolver(ResolverArgs{
		Source:  src,
		Cache:   cache,
		Timeout: time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}), cache
}

func TestResolve_NoAudienceIsPassthrough(t *testing.T) {
	src := newFakeSource(nil)
	r, cache := newTestResolver(src, time.Minute)

	res := r.Resolve(context.Background(), master, "")

	assert.Equal(t, master, res.WebID)
	assert.Equal(t, StatusPassthrough, res.Status)
	assert.Equal(t, 0, src.total())
	assert.Equal(t, 0, cache.Len())
}

func TestResolve_AliasCachedWithinTTL(t *testing.T) {
	src := newFakeSource(map[string]string{"fep.gov.uk": "https://x/alias/fep#me"})
	r, _ := newTestResolver(src, time.Minute)
	ctx := context.Background()

	first := r.Resolve(ctx, master, "fep.gov.uk")
	assert.Equal(t, "https://x/alias/fep#me", first.WebID)
	assert.Equal(t, StatusAlias, first.Status)
	assert.Equal(t, 1, src.count("fep.gov.uk"))

	second := r.Resolve(ctx, master, "fep.gov.uk")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.count("fep.gov.uk"), "second call within TTL must not reach upstream")
}

func TestResolve_NoAliasIsCached(t *testing.T) {
	src := newFakeSource(map[string]string{})
	r, _ := newTestResolver(src, time.Minute)
	ctx := context.Background()

	res := r.Resolve(ctx, master, "bank.example")
	assert.Equal(t, master, res.WebID)
	assert.Equal(t, StatusNoAlias, res.Status)

	res = r.Resolve(ctx, master, "bank.example")
	assert.Equal(t, master, res.WebID)
	assert.Equal(t, 1, src.count("bank.example"))
}

func TestResolve_FailureIsNotCached(t *testing.T) {
	src := newFakeSource(map[string]string{"fep.gov.uk": "https://x/alias/fep#me"})
	src.setFailing("fep.gov.uk", true)
	r, cache := newTestResolver(src, time.Minute)
	ctx := context.Background()

	res := r.Resolve(ctx, master, "fep.gov.uk")
	assert.Equal(t, master, res.WebID)
	assert.Equal(t, StatusFallback, res.Status)
	assert.Equal(t, 0, cache.Len())

	src.setFailing("fep.gov.uk", false)
	res = r.Resolve(ctx, master, "fep.gov.uk")
	assert.Equal(t, "https://x/alias/fep#me", res.WebID)
	assert.Equal(t, 2, src.count("fep.gov.uk"), "the call after a failure must retry upstream")
}

func TestResolve_ConcurrentCallsShareOneUpstreamCall(t *testing.T) {
	const n = 10
	src := newFakeSource(map[string]string{"fep.gov.uk": "https://x/alias/fep#me"})
	src.gate = make(chan struct{})
	r, cache := newTestResolver(src, time.Minute)

	results := make([]Resolution, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), master, "fep.gov.uk")
		}()
	}

	<-src.entered
	require.Eventually(t, func() bool { return cache.pendingLen() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, 1, src.count("fep.gov.uk"))
	for _, res := range results {
		assert.Equal(t, "https://x/alias/fep#me", res.WebID)
		assert.Equal(t, StatusAlias, res.Status)
	}
	assert.Equal(t, 0, cache.pendingLen())
}

func TestResolve_ExpiredEntryIsRefetched(t *testing.T) {
	src := newFakeSource(map[string]string{"fep.gov.uk": "https://x/alias/fep#me"})
	r, _ := newTestResolver(src, 50*time.Millisecond)
	ctx := context.Background()

	r.Resolve(ctx, master, "fep.gov.uk")
	time.Sleep(120 * time.Millisecond)
	r.Resolve(ctx, master, "fep.gov.uk")

	assert.Equal(t, 2, src.count("fep.gov.uk"))
}

func TestResolve_KeysAreIndependent(t *testing.T) {
	src := newFakeSource(map[string]string{"a": "https://x/alias/a#me", "b": "https://x/alias/b#me"})
	r, _ := newTestResolver(src, time.Minute)
	ctx := context.Background()

	assert.Equal(t, "https://x/alias/a#me", r.Resolve(ctx, master, "a").WebID)
	assert.Equal(t, "https://x/alias/b#me", r.Resolve(ctx, master, "b").WebID)
	assert.Equal(t, "https://y/profile#me", r.Resolve(ctx, "https://y/profile#me", "c").WebID)
	assert.Equal(t, 3, src.total())
}

func TestResolve_FollowerGivesUpOnItsOwnContext(t *testing.T) {
	src := newFakeSource(map[string]string{"fep.gov.uk": "https://x/alias/fep#me"})
	src.gate = make(chan struct{})
	r, cache := newTestResolver(src, time.Minute)

	leaderDone := make(chan Resolution)
	go func() {
		leaderDone <- r.Resolve(context.Background(), master, "fep.gov.uk")
	}()
	<-src.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := r.Resolve(ctx, master, "fep.gov.uk")
	assert.Equal(t, master, res.WebID)
	assert.Equal(t, StatusFallback, res.Status)

	close(src.gate)
	leader := <-leaderDone
	assert.Equal(t, StatusAlias, leader.Status)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, src.count("fep.gov.uk"))
}

func TestResolve_LeaderCancellationDoesNotAbortUpstream(t *testing.T) {
	src := newFakeSource(map[string]string{"fep.gov.uk": "https://x/alias/fep#me"})
	r, _ := newTestResolver(src, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Resolve(ctx, master, "fep.gov.uk")
	assert.Equal(t, "https://x/alias/fep#me", res.WebID)
}

func TestResolveAll_OrderAndIndependentFallback(t *testing.T) {
	src := newFakeSource(map[string]string{
		"a": "https://x/alias/a#me",
		"b": "https://x/alias/b#me",
		"c": "https://x/alias/c#me",
	})
	src.setFailing("b", true)
	r, _ := newTestResolver(src, time.Minute)

	res := r.ResolveAll(context.Background(), master, []string{"a", "b", "c"})

	require.Len(t, res, 3)
	assert.Equal(t, "https://x/alias/a#me", res[0].WebID)
	assert.Equal(t, master, res[1].WebID)
	assert.Equal(t, StatusFallback, res[1].Status)
	assert.Equal(t, "https://x/alias/c#me", res[2].WebID)
	assert.Equal(t, []string{"a", "b", "c"}, []string{res[0].Audience, res[1].Audience, res[2].Audience})
}

func TestResolveAll_RunsInParallel(t *testing.T) {
	src := newFakeSource(map[string]string{"a": "A", "b": "B", "c": "C"})
	src.gate = make(chan struct{})
	r, _ := newTestResolver(src, time.Minute)

	done := make(chan []Resolution)
	go func() {
		done <- r.ResolveAll(context.Background(), master, []string{"a", "b", "c"})
	}()

	// All three upstream calls are in flight before any is released.
	for i := 0; i < 3; i++ {
		select {
		case <-src.entered:
		case <-time.After(time.Second):
			t.Fatal("audiences were not resolved in parallel")
		}
	}
	close(src.gate)

	res := <-done
	assert.Equal(t, []string{"A", "B", "C"}, []string{res[0].WebID, res[1].WebID, res[2].WebID})
}

func TestResolveAudiences(t *testing.T) {
	src := newFakeSource(map[string]string{"a": "https://x/alias/a#me"})
	r, _ := newTestResolver(src, time.Minute)
	ctx := context.Background()

	none := r.ResolveAudiences(ctx, master, NoAudience())
	require.Len(t, none, 1)
	assert.Equal(t, StatusPassthrough, none[0].Status)

	single := r.ResolveAudiences(ctx, master, SingleAudience("a"))
	require.Len(t, single, 1)
	assert.Equal(t, "https://x/alias/a#me", single[0].WebID)

	many := r.ResolveAudiences(ctx, master, Audiences("a", "z"))
	require.Len(t, many, 2)
	assert.Equal(t, "https://x/alias/a#me", many[0].WebID)
	assert.Equal(t, master, many[1].WebID)
	assert.Equal(t, StatusNoAlias, many[1].Status)
}

type fakeFetcher struct {
	doc *oidc.AliasDocument
	err error
}

func (f fakeFetcher) FetchAliases(context.Context, string) (*oidc.AliasDocument, error) {
	return f.doc, f.err
}

func TestProviderSource(t *testing.T) {
	ctx := context.Background()
	src := ProviderSource{Fetcher: fakeFetcher{doc: &oidc.AliasDocument{
		ID:      master,
		Aliases: map[string]string{"fep.gov.uk": "https://x/alias/fep#me"},
	}}}

	alias, err := src.LookupAlias(ctx, master, "fep.gov.uk")
	require.NoError(t, err)
	assert.Equal(t, "https://x/alias/fep#me", alias)

	alias, err = src.LookupAlias(ctx, master, "other")
	require.NoError(t, err)
	assert.Empty(t, alias)

	_, err = ProviderSource{Fetcher: fakeFetcher{err: errors.New("down")}}.LookupAlias(ctx, master, "x")
	assert.Error(t, err)
}

func TestParseAudience(t *testing.T) {
	tests := []struct {
		raw    string
		none   bool
		multi  bool
		values []string
	}{
		{"", true, false, nil},
		{"   ", true, false, nil},
		{"fep.gov.uk", false, false, []string{"fep.gov.uk"}},
		{" fep.gov.uk ", false, false, []string{"fep.gov.uk"}},
		{"a,b", false, true, []string{"a", "b"}},
		{"a, b ,,c", false, true, []string{"a", "b", "c"}},
		{"a,", false, true, []string{"a"}},
		{",", true, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			a := ParseAudience(tt.raw)
			assert.Equal(t, tt.none, a.IsNone())
			assert.Equal(t, tt.multi, a.IsMulti())
			assert.Equal(t, tt.values, a.Values())
		})
	}
}
