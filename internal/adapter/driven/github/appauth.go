package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v82/github"
)

// tokenSlack is subtracted from an installation token's expiry so a token is
// refreshed before GitHub would reject it mid-request.
const tokenSlack = time.Minute

// appAuth authenticates as a GitHub App and exchanges the app identity for
// per-repository installation tokens, cached until shortly before expiry.
type appAuth struct {
	appID int64
	key   *rsa.PrivateKey
	// apps is authenticated with short-lived app JWTs via appTransport.
	apps *gh.Client

	mu     sync.Mutex
	byRepo map[string]*installation
}

type installation struct {
	client  *gh.Client
	expires time.Time
}

func newAppAuth(appID int64, privateKeyPEM []byte) (*appAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing app private key: %w", err)
	}

	a := &appAuth{
		appID:  appID,
		key:    key,
		byRepo: make(map[string]*installation),
	}
	a.apps = gh.NewClient(&http.Client{Transport: &appTransport{auth: a}})
	return a, nil
}

// appJWT signs a short-lived RS256 JWT identifying the app, per GitHub's app
// authentication scheme. Issued 30s in the past to absorb clock skew.
func (a *appAuth) appJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(a.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("signing app JWT: %w", err)
	}
	return signed, nil
}

// installationClient returns a REST client holding a valid installation token
// for the given repository, exchanging a fresh token when the cached one is
// missing or about to expire.
func (a *appAuth) installationClient(ctx context.Context, repo string) (*gh.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if inst, ok := a.byRepo[repo]; ok && time.Now().Before(inst.expires.Add(-tokenSlack)) {
		return inst.client, nil
	}

	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	found, _, err := a.apps.Apps.FindRepositoryInstallation(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("finding installation for %s: %w", repo, err)
	}

	token, _, err := a.apps.Apps.CreateInstallationToken(ctx, found.GetID(), &gh.InstallationTokenOptions{})
	if err != nil {
		return nil, fmt.Errorf("creating installation token for %s: %w", repo, err)
	}

	inst := &installation{
		client:  newRESTClient().WithAuthToken(token.GetToken()),
		expires: token.GetExpiresAt().Time,
	}
	a.byRepo[repo] = inst

	return inst.client, nil
}

// botLogin returns the "<slug>[bot]" login GitHub attributes to comments the
// app posts, used for webhook echo suppression.
func (a *appAuth) botLogin(ctx context.Context) (string, error) {
	app, _, err := a.apps.Apps.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("resolving app identity: %w", err)
	}
	return app.GetSlug() + "[bot]", nil
}

// appTransport signs every request with a fresh app JWT.
type appTransport struct {
	auth *appAuth
}

func (t *appTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.auth.appJWT()
	if err != nil {
		return nil, err
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return http.DefaultTransport.RoundTrip(clone)
}
