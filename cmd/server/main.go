package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/oakgrove/go-token-server/clients"
	fakeclientrepo "github.com/oakgrove/go-token-server/clients/fakerepo"
	"github.com/oakgrove/go-token-server/exchange"
	"github.com/oakgrove/go-token-server/internal/config"
	"github.com/oakgrove/go-token-server/policy"
	"github.com/oakgrove/go-token-server/server"
	"github.com/oakgrove/go-token-server/ticket"
	"github.com/oakgrove/go-token-server/ticket/memstore"
	"github.com/oakgrove/go-token-server/ticket/redisstore"
	"github.com/oakgrove/go-token-server/token"
	"github.com/oakgrove/go-token-server/users"
	fakeuserrepo "github.com/oakgrove/go-token-server/users/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	displayAppname(c.GetAppName())

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if c.GetEnv() == "DEV" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	httpServer, err := buildServer(c, logger)
	if err != nil {
		return fmt.Errorf("buildServer: %w", err)
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: httpServer}
	go listenAndServe(srv)
	waitForStopSignal()
	returnError = shutdown(srv)
	return returnError
}

func buildServer(c config.Config, logger zerolog.Logger) (*server.Server, error) {
	store := ticketStore(c)

	signer, err := buildSigner(c)
	if err != nil {
		return nil, fmt.Errorf("buildSigner: %w", err)
	}

	issuer, err := token.New(store, signer, c.GetBaseURL(),
		token.WithAudience(audience(c)),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetIDTokenExpiry(), c.GetRefreshTokenExpiry()),
	)
	if err != nil {
		return nil, fmt.Errorf("token.New: %w", err)
	}

	clientRepo := fakeclientrepo.NewFakeClientRepo()
	userRepo := fakeuserrepo.NewFakeUserRepo()
	if c.GetEnv() == "DEV" {
		if err := seedDevRegistry(clientRepo, userRepo); err != nil {
			return nil, fmt.Errorf("seedDevRegistry: %w", err)
		}
	}

	hooks := policy.New(clientRepo, userRepo, policy.WithLogger(logger))

	exchangeService, err := exchange.NewService(store, issuer,
		exchange.Options{AuthorizationEndpointEnabled: c.GetAuthorizationEndpointEnabled()},
		exchange.WithHooks(hooks),
		exchange.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("exchange.NewService: %w", err)
	}

	return server.New(c, exchangeService, issuer, server.WithLogger(logger))
}

// ticketStore selects Redis-backed storage when REDIS_ADDR is set, otherwise
// the in-memory store.
func ticketStore(c config.Config) ticket.Store {
	if addr := c.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		return redisstore.New(client)
	}
	return memstore.New()
}

// buildSigner prefers a configured RSA key, falls back to an HMAC secret and
// finally generates an ephemeral RSA key pair for development.
func buildSigner(c config.Config) (token.Signer, error) {
	if pemData := c.GetSigningKeyPEM(); pemData != "" {
		privateKey, err := token.LoadRSAPrivateKeyFromPEM(pemData)
		if err != nil {
			return nil, err
		}
		return token.NewKeyPairSigner(&token.KeyPair{
			KeyID:      "primary",
			PrivateKey: privateKey,
			PublicKey:  &privateKey.PublicKey,
			Algorithm:  "RS256",
		}), nil
	}
	if secret := c.GetSigningSecret(); secret != "" {
		return token.NewHMACSigner(secret), nil
	}
	keyPair, err := token.GenerateRSAKeyPair("ephemeral", 2048)
	if err != nil {
		return nil, err
	}
	return token.NewKeyPairSigner(keyPair), nil
}

func audience(c config.Config) string {
	if aud := c.GetAudience(); aud != "" {
		return aud
	}
	return c.GetBaseURL()
}

// seedDevRegistry registers a confidential demo client and a demo user so
// the server is usable out of the box in development.
func seedDevRegistry(clientRepo clients.Repo, userRepo users.UserRepo) error {
	secretHash, err := clients.HashSecret(config.GetEnv("DEV_CLIENT_SECRET", "dev-secret"))
	if err != nil {
		return err
	}
	if err := clientRepo.Upsert(&clients.Client{
		ID:          config.GetEnv("DEV_CLIENT_ID", "dev-client"),
		Type:        clients.ClientTypeConfidential,
		Description: "Development client",
		SecretHash:  secretHash,
		Scopes:      []string{"openid", "offline_access", "api"},
	}); err != nil {
		return err
	}

	passwordHash, err := users.HashPassword(config.GetEnv("DEV_USER_PASSWORD", "dev-password"))
	if err != nil {
		return err
	}
	return userRepo.Upsert(&users.User{
		Username:     config.GetEnv("DEV_USER_NAME", "dev-user"),
		PasswordHash: passwordHash,
		Verified:     true,
		DateJoined:   time.Now(),
	})
}

func listenAndServe(srv *http.Server) error {
	log.Printf("Server listening on %s\n", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
