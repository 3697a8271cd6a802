// Package credentials reads and writes verifiable credentials in the
// customer's credential store, under whichever WebID alias each audience
// expects to see.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"Fedgate/internal/solid/pds"
	"Fedgate/internal/solid/webid"
)

// FormDataType is the credential type used for saved form data.
const FormDataType = "FormDataCredential"

var formDataContexts = []string{
	"https://www.w3.org/2018/credentials/v1",
	"https://www.w3.org/2018/credentials/examples/v1",
}

// RetrieveOptions filters a retrieval. Audience may be none, one or a list.
type RetrieveOptions struct {
	Type     string
	Audience webid.Audience
}

// FormDataResult is the outcome of StoreFormData.
type FormDataResult struct {
	CredentialID string          `json:"credentialId"`
	Result       json.RawMessage `json:"result"`
}

type ServiceArgs struct {
	Sessions SessionSource
	Resolver Resolver
	Store    Store
	// Aliases is optional; when set, alias resolutions are recorded against
	// the customer.
	Aliases AliasRecorder
	// Issuer is the issuer of credentials this service creates.
	Issuer string
	Logger *slog.Logger
}

type Service struct {
	sessions SessionSource
	resolver Resolver
	store    Store
	aliases  AliasRecorder
	issuer   string
	log      *slog.Logger
	now      func() time.Time
}

func NewService(args ServiceArgs) *Service {
	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions: args.Sessions,
		resolver: args.Resolver,
		store:    args.Store,
		aliases:  args.Aliases,
		issuer:   args.Issuer,
		log:      logger.With("component", "credentials"),
		now:      time.Now,
	}
}

// Store writes a credential to the credential store of the WebID presented
// to audience (the master WebID when audience is empty).
func (s *Service) Store(ctx context.Context, customerID string, credential any, audience string) (json.RawMessage, error) {
	if credential == nil {
		return nil, ErrInvalidCredential
	}

	target, err := s.target(ctx, customerID, audience)
	if err != nil {
		return nil, err
	}

	out, err := s.store.StoreCredential(ctx, target, credential)
	observe("store", err)
	if err != nil {
		return nil, storeFailed("store credential", err)
	}
	return out, nil
}

// Retrieve lists credentials. With several audiences the stores are queried
// in parallel, a failing audience contributes nothing, and the merged list
// keeps one credential per id.
func (s *Service) Retrieve(ctx context.Context, customerID string, opts RetrieveOptions) ([]Credential, error) {
	if opts.Audience.IsMulti() {
		return s.retrieveMulti(ctx, customerID, opts)
	}

	audience := opts.Audience.First()
	target, err := s.target(ctx, customerID, audience)
	if err != nil {
		return nil, err
	}

	list, err := s.store.ListCredentials(ctx, target, opts.Type)
	observe("list", err)
	if err != nil {
		return nil, storeFailed("retrieve credentials", err)
	}
	if audience == "" {
		return list, nil
	}

	out := make([]Credential, len(list))
	for i, cred := range list {
		out[i] = tag(cred, audience)
	}
	return out, nil
}

func (s *Service) retrieveMulti(ctx context.Context, customerID string, opts RetrieveOptions) ([]Credential, error) {
	session, err := s.sessions.Active(ctx, customerID)
	if err != nil {
		return nil, err
	}

	audiences := opts.Audience.Values()
	resolved := s.resolver.ResolveAll(ctx, session.WebID, audiences)
	s.recordAliases(ctx, customerID, resolved)

	lists := make([][]Credential, len(audiences))
	var g errgroup.Group
	for i, res := range resolved {
		aud := audiences[i]
		g.Go(func() error {
			lists[i] = s.listForAudience(ctx, session.AccessToken, res.WebID, aud, opts.Type)
			return nil
		})
	}
	_ = g.Wait()

	return merge(lists), nil
}

// listForAudience never fails: an audience whose store cannot be read
// contributes an empty list.
func (s *Service) listForAudience(ctx context.Context, accessToken, webID, audience, credType string) []Credential {
	base, err := pds.CredentialStoreURL(webID)
	if err != nil {
		s.log.Warn("cannot derive credential store for audience", "audience", audience, "error", err)
		return nil
	}

	list, err := s.store.ListCredentials(ctx, pds.Target{BaseURL: base, AccessToken: accessToken, Audience: audience}, credType)
	observe("list", err)
	if err != nil {
		s.log.Warn("credential retrieval failed for audience", "audience", audience, "error", err)
		return nil
	}

	out := make([]Credential, len(list))
	for i, cred := range list {
		out[i] = tag(cred, audience)
	}
	return out
}

// FormData returns the formData of the newest FormDataCredential, or nil
// when there is none. With several audiences the result names the audience
// it came from.
func (s *Service) FormData(ctx context.Context, customerID string, audience webid.Audience) (map[string]any, error) {
	creds, err := s.Retrieve(ctx, customerID, RetrieveOptions{Type: FormDataType, Audience: audience})
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, nil
	}

	sort.SliceStable(creds, func(i, j int) bool {
		return issuanceDate(creds[i]).After(issuanceDate(creds[j]))
	})
	newest := creds[0]

	subject, _ := newest["credentialSubject"].(map[string]any)
	formData, ok := subject["formData"].(map[string]any)
	if !ok {
		s.log.Warn("newest form data credential has no formData object", "credential_id", newest["id"])
		return nil, nil
	}

	if !audience.IsMulti() {
		return formData, nil
	}
	out := make(map[string]any, len(formData)+1)
	for k, v := range formData {
		out[k] = v
	}
	out[SourceAudienceField] = newest[SourceAudienceField]
	return out, nil
}

// GetByID fetches one credential. Any failure, including a missing session,
// yields nil: callers use this for optional look-ups.
func (s *Service) GetByID(ctx context.Context, customerID, credentialID, audience string) Credential {
	if credentialID == "" {
		return nil
	}

	target, err := s.target(ctx, customerID, audience)
	if err != nil {
		s.log.Debug("credential lookup skipped", "credential_id", credentialID, "error", err)
		return nil
	}

	cred, err := s.store.GetCredential(ctx, target, credentialID)
	observe("get", err)
	if err != nil {
		s.log.Debug("credential lookup failed", "credential_id", credentialID, "error", err)
		return nil
	}
	return cred
}

// StoreFormData wraps form data in a FormDataCredential and stores it.
func (s *Service) StoreFormData(ctx context.Context, customerID string, formData map[string]any, audience string) (*FormDataResult, error) {
	if formData == nil {
		return nil, ErrInvalidCredential
	}

	cred := s.newFormDataCredential(customerID, formData)
	result, err := s.Store(ctx, customerID, cred, audience)
	if err != nil {
		return nil, err
	}
	return &FormDataResult{CredentialID: cred["id"].(string), Result: result}, nil
}

func (s *Service) newFormDataCredential(customerID string, formData map[string]any) Credential {
	return Credential{
		"@context":     formDataContexts,
		"id":           "urn:uuid:" + uuid.NewString(),
		"type":         []string{"VerifiableCredential", FormDataType},
		"issuer":       s.issuer,
		"issuanceDate": s.now().UTC().Format(time.RFC3339Nano),
		"credentialSubject": map[string]any{
			"id":       customerID,
			"formData": formData,
		},
	}
}

// target resolves the session's WebID for audience and addresses its store.
func (s *Service) target(ctx context.Context, customerID, audience string) (pds.Target, error) {
	session, err := s.sessions.Active(ctx, customerID)
	if err != nil {
		return pds.Target{}, err
	}

	res := s.resolver.Resolve(ctx, session.WebID, audience)
	s.recordAliases(ctx, customerID, []webid.Resolution{res})

	base, err := pds.CredentialStoreURL(res.WebID)
	if err != nil {
		return pds.Target{}, storeFailed("derive credential store", err)
	}
	return pds.Target{BaseURL: base, AccessToken: session.AccessToken, Audience: audience}, nil
}

func (s *Service) recordAliases(ctx context.Context, customerID string, resolved []webid.Resolution) {
	if s.aliases == nil {
		return
	}
	for _, res := range resolved {
		if res.Status != webid.StatusAlias {
			continue
		}
		if err := s.aliases.RecordAlias(ctx, customerID, res.Audience, res.WebID); err != nil {
			s.log.Warn("failed to record webid alias", "audience", res.Audience, "error", err)
		}
	}
}

func storeFailed(op string, err error) error {
	var apiErr *pds.APIError
	if errors.As(err, &apiErr) {
		return &CredentialStoreFailedError{Operation: op, StatusCode: apiErr.StatusCode, Body: apiErr.Body, Err: err}
	}
	return &CredentialStoreFailedError{Operation: op, Err: err}
}
