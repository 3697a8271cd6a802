package webid

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"Fedgate/internal/solid/oidc"
)

// Status says how a resolution was answered. The WebID is the same for
// no_alias and fallback; Status is what tells them apart.
type Status string

const (
	// StatusAlias: the provider has an alias for the audience.
	StatusAlias Status = "alias"
	// StatusNoAlias: the provider answered but has no alias for the audience.
	StatusNoAlias Status = "no_alias"
	// StatusFallback: the provider could not be reached or failed; the master WebID is returned and nothing is cached.
	StatusFallback Status = "fallback"
	// StatusPassthrough: no audience was requested.
	StatusPassthrough Status = "passthrough"
)

type Resolution struct {
	WebID    string `json:"webId"`
	Audience string `json:"audience,omitempty"`
	Status   Status `json:"status"`
}

// AliasSource looks up the alias of webID for one audience. An empty alias
// with a nil error means the upstream answered and has no alias.
type AliasSource interface {
	LookupAlias(ctx context.Context, webID, audience string) (string, error)
}

// AliasFetcher returns the full alias map of a WebID; *oidc.Registry implements it.
type AliasFetcher interface {
	FetchAliases(ctx context.Context, webID string) (*oidc.AliasDocument, error)
}

// ProviderSource adapts the identity provider's alias map to AliasSource.
type ProviderSource struct {
	Fetcher AliasFetcher
}

func (s ProviderSource) LookupAlias(ctx context.Context, webID, audience string) (string, error) {
	doc, err := s.Fetcher.FetchAliases(ctx, webID)
	if err != nil {
		return "", err
	}
	return doc.Aliases[audience], nil
}

// Resolver maps (master WebID, audience) to the WebID to present to that audience.
//
// At most one upstream call is in flight per key: concurrent callers for a
// key that is already resolving wait for that call. Successful answers,
// including "no alias", are cached for the cache TTL. Failures are never
// cached and degrade to the master WebID.
type Resolver struct {
	source  AliasSource
	cache   *Cache
	timeout time.Duration
	log     *slog.Logger
}

type ResolverArgs struct {
	Source AliasSource
	Cache  *Cache
	// Timeout bounds one upstream call. It is detached from the caller's
	// context so that one caller going away does not fail the others
	// waiting on the same call.
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewResolver(args ResolverArgs) *Resolver {
	if args.Cache == nil {
		args.Cache = NewCache(DefaultCapacity, DefaultTTL)
	}
	if args.Timeout <= 0 {
		args.Timeout = 10 * time.Second
	}
	if args.Logger == nil {
		args.Logger = slog.Default()
	}
	return &Resolver{
		source:  args.Source,
		cache:   args.Cache,
		timeout: args.Timeout,
		log:     args.Logger.With("component", "webid-resolver"),
	}
}

// Resolve resolves a single audience. An empty audience returns webID
// unchanged without touching the cache or the network.
func (r *Resolver) Resolve(ctx context.Context, webID, audience string) Resolution {
	if audience == "" {
		return Resolution{WebID: webID, Status: StatusPassthrough}
	}

	key := CacheKey(webID, audience)
	res, p, state := r.cache.begin(key)
	switch state {
	case lookupHit:
		aliasResolution.WithLabelValues(sourceCache).Inc()
		return res
	case lookupPending:
		aliasResolution.WithLabelValues(sourceCoalesced).Inc()
		select {
		case <-p.done:
			return p.res
		case <-ctx.Done():
			return Resolution{WebID: webID, Audience: audience, Status: StatusFallback}
		}
	}

	aliasResolution.WithLabelValues(sourceUpstream).Inc()
	settled := false
	defer func() {
		// The pending entry must go even if the source panics.
		if !settled {
			r.cache.settle(key, p, Resolution{WebID: webID, Audience: audience, Status: StatusFallback}, false)
		}
	}()

	res = r.fetch(ctx, webID, audience)
	r.cache.settle(key, p, res, res.Status != StatusFallback)
	settled = true
	return res
}

func (r *Resolver) fetch(ctx context.Context, webID, audience string) Resolution {
	res := Resolution{WebID: webID, Audience: audience}
	start := time.Now()
	defer func() {
		aliasResolutionDuration.WithLabelValues(string(res.Status)).Observe(time.Since(start).Seconds())
	}()

	if r.source == nil {
		res.Status = StatusFallback
		return res
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	alias, err := r.source.LookupAlias(ctx, webID, audience)
	if err != nil {
		r.log.Warn("alias resolution failed, falling back to master webid", "audience", audience, "error", err)
		res.Status = StatusFallback
		return res
	}

	if alias != "" {
		res.WebID = alias
		res.Status = StatusAlias
		return res
	}
	res.Status = StatusNoAlias
	return res
}

// ResolveAll resolves every audience in parallel. The result has one entry
// per input, in input order; each entry falls back on its own.
func (r *Resolver) ResolveAll(ctx context.Context, webID string, audiences []string) []Resolution {
	out := make([]Resolution, len(audiences))
	g, gctx := errgroup.WithContext(ctx)
	for i, aud := range audiences {
		g.Go(func() error {
			out[i] = r.Resolve(gctx, webID, aud)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ResolveAudiences resolves a tagged audience value: none gives one
// passthrough entry, a single audience one entry, a list one entry per audience.
func (r *Resolver) ResolveAudiences(ctx context.Context, webID string, aud Audience) []Resolution {
	switch {
	case aud.IsNone():
		return []Resolution{r.Resolve(ctx, webID, "")}
	case aud.IsMulti():
		return r.ResolveAll(ctx, webID, aud.Values())
	default:
		return []Resolution{r.Resolve(ctx, webID, aud.First())}
	}
}
