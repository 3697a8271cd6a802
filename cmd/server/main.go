package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	authhandlers "Fedgate/internal/api/handlers/auth"
	clienthandlers "Fedgate/internal/api/handlers/client"
	credentialhandlers "Fedgate/internal/api/handlers/credentials"
	pdshandlers "Fedgate/internal/api/handlers/pds"
	"Fedgate/internal/api/handlers/wellknown"
	"Fedgate/internal/api/middleware"
	"Fedgate/internal/api/routes"
	"Fedgate/internal/config"
	"Fedgate/internal/core/auth"
	"Fedgate/internal/core/challenges"
	"Fedgate/internal/core/credentials"
	"Fedgate/internal/core/registrations"
	"Fedgate/internal/core/sessions"
	"Fedgate/internal/core/signing"
	"Fedgate/internal/core/users"
	postgresRepo "Fedgate/internal/db/postgres"
	"Fedgate/internal/solid/oidc"
	"Fedgate/internal/solid/pds"
	"Fedgate/internal/solid/safehttp"
	"Fedgate/internal/solid/webid"
	"Fedgate/internal/vault"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal("Failed to load .env:", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	gw := cfg.Gateway()

	logLevel := slog.LevelInfo
	if !cfg.IsProduction() {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Failed to close database: %v", closeErr)
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}
	log.Println("Connected to database")

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("Failed to set goose dialect:", err)
	}
	if err := goose.Up(db, "internal/db/migrations"); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Println("Migrations completed successfully")

	// Secrets and tokens at rest
	key, err := vault.ParseKey(cfg.EncryptionKey)
	if err != nil {
		log.Fatal("Invalid ENCRYPTION_KEY:", err)
	}
	cipher, err := vault.NewCipher(key)
	if err != nil {
		log.Fatal("Failed to create cipher:", err)
	}
	secrets := vault.NewSecretStore(cipher, postgresRepo.NewSecretBackend(db))

	// Outbound calls go to user-supplied hosts (PDS URLs, alias lookups), so
	// they share the address-filtering client.
	httpClient := safehttp.NewClient(safehttp.Options{
		Timeout:      cfg.HTTPTimeout,
		AllowPrivate: cfg.AllowPrivateNetworks,
	})

	signer, created, err := signing.LoadOrGenerate(cfg.SigningKeyPath, !cfg.IsProduction())
	if err != nil {
		log.Fatal("Failed to load signing key:", err)
	}
	if created {
		log.Printf("Generated new signing key at %s", cfg.SigningKeyPath)
	}

	// Identity provider client
	registry, err := oidc.NewRegistry(oidc.RegistryArgs{
		Config: oidc.Config{
			ProviderURL:              cfg.ProviderURL,
			RedirectURI:              cfg.RedirectURI,
			Domain:                   cfg.ServiceDomain,
			ClientType:               oidc.ClientType(gw.ClientType),
			StaticClientID:           cfg.ClientID,
			StaticClientSecret:       cfg.ClientSecret,
			BypassDomainVerification: gw.BypassDomainVerification,
		},
		Store: &oidc.SealedStore{
			Inner:   oidc.NewFileStore(cfg.RegistrationPath),
			Secrets: secrets,
		},
		Verifier:   oidc.NewHTTPDomainVerifier(cfg.DNSVerifierURL, httpClient),
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		log.Fatal("Failed to create identity provider client:", err)
	}

	if _, err := registry.LoadOrRegister(ctx); err != nil {
		// The server still starts; POST /client/register retries.
		logger.Error("client registration failed", "error", err)
	} else if registry.ClientType() == oidc.ClientTypeGovernment {
		if _, err := registry.VerifyDomain(ctx); err != nil {
			logger.Warn("domain verification failed", "domain", cfg.ServiceDomain, "error", err)
		}
	}

	// Repositories
	userRepo := postgresRepo.NewUserRepository(db)
	sessionRepo := postgresRepo.NewSessionRepository(db)
	registrationRepo := postgresRepo.NewRegistrationRepository(db)

	// Services
	pdsClient := pds.NewClient(httpClient)
	pdsGrants := pdsClient.Grants(cfg.ServiceDID, strings.TrimRight(cfg.ServiceURL, "/")+"/pds/callback")

	userService := users.NewUserService(userRepo, gw.ClientType, logger)
	sessionManager := sessions.NewManager(sessions.ManagerArgs{
		Repo:              sessionRepo,
		Sealer:            cipher,
		Refresher:         registry,
		EndpointRefresher: pdsGrants,
		Logger:            logger,
	})
	authService := auth.NewService(registry, userService, sessionManager, logger)

	resolver := webid.NewResolver(webid.ResolverArgs{
		Source:  webid.ProviderSource{Fetcher: registry},
		Cache:   webid.NewCache(webid.DefaultCapacity, gw.CacheTTL),
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})
	credentialService := credentials.NewService(credentials.ServiceArgs{
		Sessions: sessionManager,
		Resolver: resolver,
		Store:    pdsClient,
		Aliases:  userService,
		Issuer:   cfg.ServiceURL,
		Logger:   logger,
	})

	registrationService := registrations.NewService(registrations.ServiceArgs{
		Identity: registrations.Identity{
			DID:        cfg.ServiceDID,
			Domain:     cfg.ServiceDomain,
			ServiceURL: cfg.ServiceURL,
		},
		Repo:        registrationRepo,
		PDS:         pdsClient,
		Keys:        signer,
		TokenSealer: cipher,
		Logger:      logger,
		Grants:      pdsGrants,
		Sessions:    sessionManager,
	})
	challengeService := challenges.NewService(challenges.ServiceArgs{
		Registrations: registrationRepo,
		Signer:        signer,
		PDS:           pdsClient,
		Logger:        logger,
	})

	// HTTP
	cookies, err := middleware.NewCookieAuth(cfg.SessionSecret, cfg.IsProduction())
	if err != nil {
		log.Fatal("Failed to create cookie store:", err)
	}
	didDoc, err := wellknown.NewDIDDocument(cfg.ServiceDID, cfg.ServiceURL, signer)
	if err != nil {
		log.Fatal("Failed to build DID document:", err)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	// Global rate limit: 100 requests per minute per IP
	rateLimiter := middleware.NewRateLimiter(ctx, 100, time.Minute)
	r.Use(rateLimiter.Middleware)

	routes.RegisterClientRoutes(r, clienthandlers.NewHandler(registry))
	routes.RegisterAuthRoutes(ctx, r,
		authhandlers.NewHandler(registry, authService, sessionManager, cookies),
		authhandlers.NewProfileHandler(userService),
		cookies, cfg.AllowedOrigins)
	routes.RegisterPDSRoutes(ctx, r, pdshandlers.NewHandler(challengeService, registrationService))
	routes.RegisterPDSConnectRoutes(r, pdshandlers.NewConnectHandler(registrationService, sessionManager, cookies), cookies)
	routes.RegisterCredentialRoutes(r, credentialhandlers.NewHandler(credentialService), cookies, cfg.AllowedOrigins)
	routes.RegisterWellKnownRoutes(r, wellknown.NewDIDHandler(didDoc))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Printf("Failed to write health response: %v", err)
		}
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
		}
	}()

	log.Printf("Fedgate gateway listening on %s (client type %s, DID %s)", cfg.HTTPAddr, gw.ClientType, cfg.ServiceDID)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
