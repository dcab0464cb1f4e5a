package session_test

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Container setup and assertions shared by the session service end-to-end
 * tests. The image is built once per run from cmd/sessiond/Dockerfile.
 */

const (
	testImageName = "sessiond-test:latest"

	issueToken = "e2e-issue-token-0123456789abcdef0123"
	issuer     = "https://sessions.e2e"
	audience   = "wolfinder"
)

// TestMain builds the image once before all tests and removes it afterwards.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building session service Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up session service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/sessiond/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // the image might not exist
}

// baseEnv runs sessiond on sqlite with relaxed rate limits, since the tests
// fire requests far faster than a real login flow would.
func baseEnv() map[string]string {
	return map[string]string{
		"SESSION_ISSUE_TOKEN":  issueToken,
		"SESSION_ISSUER":       issuer,
		"SESSION_AUDIENCE":     audience,
		"SESSION_STORE_DRIVER": "sqlite",
		"SESSION_DB_DSN":       "file:/home/nonroot/sessions.db?_pragma=busy_timeout(5000)",
		"ENV":                  "test",
		"LOG_LEVEL":            "info",
		"LOG_FORMAT":           "json",

		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_WINDOW_SEC": "60",
		"RATELIMIT_STRICT_BURST":      "1000",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	}
}

type containerOptions struct {
	env      map[string]string
	networks []string
}

// setupSessionContainer starts sessiond and returns its base URL.
func setupSessionContainer(t *testing.T, opts containerOptions) string {
	t.Helper()
	ctx := context.Background()

	env := opts.env
	if env == nil {
		env = baseEnv()
	}

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		Networks:     opts.networks,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// setupRedisBackedSession starts redis and sessiond on a private network with
// sessiond pointed at redis.
func setupRedisBackedSession(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	nw, err := network.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := nw.Remove(ctx); err != nil {
			t.Logf("failed to remove network: %v", err)
		}
	})

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          "redis:7-alpine",
			ExposedPorts:   []string{"6379/tcp"},
			Networks:       []string{nw.Name},
			NetworkAliases: map[string][]string{nw.Name: {"redis"}},
			WaitingFor:     wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis: %v", err)
		}
	})

	env := maps.Clone(baseEnv())
	env["SESSION_STORE_DRIVER"] = "redis"
	env["SESSION_REDIS_ADDR"] = "redis:6379"

	return setupSessionContainer(t, containerOptions{env: env, networks: []string{nw.Name}})
}

// login issues a session for userID through the SDK.
func login(t *testing.T, client *authsdk.Client, userID, role string) *authsdk.Session {
	t.Helper()
	session, err := client.Login(t.Context(), issueToken, authsdk.IssueRequest{UserID: userID, Role: role})
	require.NoError(t, err)
	return session
}

// assertTokenResponse verifies a token response has every field set.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.NotEmpty(t, resp.FamilyID, "Family id should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.Positive(t, resp.ExpiresIn)
}

// assertInvalidGrant checks the uniform refresh rejection.
func assertInvalidGrant(t *testing.T, err error, context string) {
	t.Helper()
	require.Error(t, err, context)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant, context)
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
