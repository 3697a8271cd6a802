package challenges

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Fedgate/internal/core/registrations"
	"Fedgate/internal/core/signing"
)

const proofPurpose = "authentication"

// Request is an inbound DID challenge from a PDS provider.
type Request struct {
	RegistrationID string          `json:"registrationId"`
	Challenge      Challenge       `json:"challenge"`
	Timestamp      json.RawMessage `json:"timestamp,omitempty"`
	PDSURL         string          `json:"pdsUrl,omitempty"`
}

// Proof is the Data Integrity proof over the challenge.
type Proof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`
	ProofPurpose       string    `json:"proofPurpose"`
	ProofValue         string    `json:"proofValue"`
}

// Response answers a challenge. Challenge is only set for structured
// challenges, which are echoed back unchanged.
type Response struct {
	RegistrationID string     `json:"registrationId"`
	ServiceDID     string     `json:"serviceDid"`
	Signature      Proof      `json:"signature"`
	Challenge      *Challenge `json:"challenge,omitempty"`
}

type ServiceArgs struct {
	Registrations RegistrationStore
	Signer        signing.Signer
	PDS           StatusFetcher
	Logger        *slog.Logger
}

// Service answers PDS ownership challenges and tracks verification status.
// It keeps no per-call state.
type Service struct {
	regs   RegistrationStore
	signer signing.Signer
	pds    StatusFetcher
	log    *slog.Logger
	now    func() time.Time
}

func NewService(args ServiceArgs) *Service {
	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		regs:   args.Registrations,
		signer: args.Signer,
		pds:    args.PDS,
		log:    logger.With("component", "did-challenge"),
		now:    time.Now,
	}
}

// Respond signs the challenge with the service key.
func (s *Service) Respond(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.RegistrationID) == "" || req.Challenge.Form() == FormMissing {
		return nil, ErrInvalidChallenge
	}

	reg, err := s.lookup(ctx, req.RegistrationID)
	if err != nil {
		return nil, err
	}

	msg, err := req.Challenge.Signable()
	if err != nil {
		return nil, err
	}

	sig, err := s.signer.Sign([]byte(msg))
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}

	resp := &Response{
		RegistrationID: reg.RegistrationID,
		ServiceDID:     reg.ServiceDID,
		Signature: Proof{
			Type:               signing.ProofType,
			Created:            s.now().UTC(),
			VerificationMethod: reg.ServiceDID + "#" + signing.KeyID,
			ProofPurpose:       proofPurpose,
			ProofValue:         signing.EncodeProofValue(sig),
		},
	}
	if req.Challenge.Form() == FormStructured {
		echo := req.Challenge
		resp.Challenge = &echo
	}

	s.log.Info("answered DID challenge",
		slog.String("registration_id", reg.RegistrationID),
		slog.String("provider", reg.PDSProvider))
	return resp, nil
}

// CheckVerificationStatus asks the PDS for the registration's status,
// records it locally and returns the PDS payload unchanged. An empty pdsURL
// means the URL the registration was created against.
func (s *Service) CheckVerificationStatus(ctx context.Context, registrationID, pdsURL string) (map[string]any, error) {
	if strings.TrimSpace(registrationID) == "" {
		return nil, ErrInvalidChallenge
	}

	reg, err := s.lookup(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if pdsURL == "" {
		pdsURL = reg.PDSURL
	}

	payload, err := s.pds.RegistrationStatus(ctx, pdsURL, registrationID)
	if err != nil {
		s.log.Warn("verification status check failed",
			slog.String("registration_id", registrationID),
			slog.String("error", err.Error()))
		return nil, &StatusCheckFailedError{RegistrationID: registrationID, Err: err}
	}

	status, _ := payload["status"].(string)
	if !registrations.Status(status).Valid() {
		s.log.Warn("PDS returned unknown registration status",
			slog.String("registration_id", registrationID),
			slog.String("status", status))
		return payload, nil
	}

	var verifiedAt *time.Time
	if registrations.Status(status) == registrations.StatusVerified {
		now := s.now().UTC()
		verifiedAt = &now
	}
	if err := s.regs.UpdateStatus(ctx, registrationID, registrations.Status(status), verifiedAt); err != nil {
		return nil, fmt.Errorf("failed to record registration status: %w", err)
	}
	return payload, nil
}

func (s *Service) lookup(ctx context.Context, registrationID string) (*registrations.Registration, error) {
	reg, err := s.regs.GetByRegistrationID(ctx, registrationID)
	if errors.Is(err, registrations.ErrRegistrationNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegistration, registrationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	return reg, nil
}
