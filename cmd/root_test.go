package cmd

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/config"
)

type fakeRunner struct {
	onceCalls int
	onceErr   error
}

func (r *fakeRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (r *fakeRunner) RunOnce(context.Context) error {
	r.onceCalls++
	return r.onceErr
}

type fakeApp struct {
	runner *fakeRunner
	closed int
}

func (a *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (a *fakeApp) Config() config.Config { return config.Config{} }

func (a *fakeApp) Runner() Runner { return a.runner }

func (a *fakeApp) Handler() http.Handler { return http.NotFoundHandler() }

func (a *fakeApp) Close() error {
	a.closed++
	return nil
}

// These tests replace the package-level factory, so they do not run in parallel.
func withFakeApp(t *testing.T, fake *fakeApp, factoryErr error) *string {
	t.Helper()
	var gotPath string
	orig := newApp
	newApp = func(_ context.Context, cfgPath string) (App, error) {
		gotPath = cfgPath
		if factoryErr != nil {
			return nil, factoryErr
		}
		return fake, nil
	}
	t.Cleanup(func() { newApp = orig })
	return &gotPath
}

func TestOnceCommandRunsPipelineAndCloses(t *testing.T) {
	fake := &fakeApp{runner: &fakeRunner{}}
	gotPath := withFakeApp(t, fake, nil)

	root := newRootCmd()
	root.SetArgs([]string{"once", "--config", "config.yaml"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Equal(t, "config.yaml", *gotPath)
	assert.Equal(t, 1, fake.runner.onceCalls)
	assert.Equal(t, 1, fake.closed)
}

func TestOnceCommandReportsPipelineError(t *testing.T) {
	boom := errors.New("scan listing: page limit exceeded")
	fake := &fakeApp{runner: &fakeRunner{onceErr: boom}}
	withFakeApp(t, fake, nil)

	root := newRootCmd()
	root.SetArgs([]string{"once"})
	root.SilenceErrors = true
	err := root.ExecuteContext(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fake.closed)
}

func TestFactoryErrorStopsCommand(t *testing.T) {
	fake := &fakeApp{runner: &fakeRunner{}}
	withFakeApp(t, fake, errors.New("bad config"))

	root := newRootCmd()
	root.SetArgs([]string{"once"})
	root.SilenceErrors = true
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "failed to initialize application services")
	assert.Zero(t, fake.runner.onceCalls)
}

func TestResolveAppWithoutContainer(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	require.Error(t, err)
}

func TestRunServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	fake := &fakeApp{runner: &fakeRunner{}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, fake) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
