package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

func TestNewLauncherDefaults(t *testing.T) {
	t.Parallel()

	_, err := NewLauncher(Config{ActionTimeout: -1}, nil)
	require.Error(t, err)

	l, err := NewLauncher(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, l.cfg.NavigationTimeout)
	assert.Equal(t, 15*time.Second, l.cfg.ActionTimeout)
}

func TestAllocatorOptions(t *testing.T) {
	t.Parallel()

	base := len(allocatorOptions(Config{Headless: true}))
	full := allocatorOptions(Config{
		Headless:     true,
		NoSandbox:    true,
		ExecPath:     "/usr/bin/chromium",
		UserAgent:    "heir-finder-test",
		WindowWidth:  1280,
		WindowHeight: 900,
	})
	assert.Len(t, full, base+4)
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("cancel was not forwarded")
	}
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func TestSessionDrivesForm(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("chrome not available")
	}
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body>
<input id="q" value="stale">
<button id="go" onclick="document.getElementById('out').textContent = 'searched ' + document.getElementById('q').value">Go</button>
<div id="out"></div>
<div class="mask" style="display:none">loading</div>
</body></html>`)
	}))
	defer srv.Close()

	l, err := NewLauncher(Config{Headless: true, NoSandbox: true}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := l.Open(ctx)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Navigate(ctx, srv.URL))
	require.NoError(t, s.Fill(ctx, "#q", "DOE, JANE"))
	require.NoError(t, s.Click(ctx, "#go"))
	require.NoError(t, s.WaitHidden(ctx, ".mask", time.Second))

	text, err := s.Text(ctx, "#out")
	require.NoError(t, err)
	assert.Equal(t, "searched DOE, JANE", text)

	var count int
	require.NoError(t, s.Evaluate(ctx, `document.querySelectorAll('input').length`, &count))
	assert.Equal(t, 1, count)

	html, err := s.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, `id="out"`)

	loc, err := s.Location(ctx)
	require.NoError(t, err)
	assert.Contains(t, loc, srv.URL)
}

func TestSessionSurvivesRootCancel(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("chrome not available")
	}
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body>
<button id="btnSSSubmit" onclick="document.getElementById('out').textContent = 'submitted'">Search</button>
<div id="out"></div>
</body></html>`)
	}))
	defer srv.Close()

	l, err := NewLauncher(Config{Headless: true, NoSandbox: true}, nil)
	require.NoError(t, err)
	root, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	s, err := l.Open(root)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Navigate(root, srv.URL))

	// The worker finishes the item in hand on a detached context.
	cancelRoot()
	item := context.WithoutCancel(root)
	require.NoError(t, s.Click(item, "#btnSSSubmit"))
	text, err := s.Text(item, "#out")
	require.NoError(t, err)
	assert.Equal(t, "submitted", text)

	require.NoError(t, s.Close())
	err = s.Click(item, "#btnSSSubmit")
	require.ErrorIs(t, err, scraper.ErrSessionLost)
}

func TestOpenCanceledBeforeLaunch(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("chrome not available")
	}
	t.Parallel()

	l, err := NewLauncher(Config{Headless: true, NoSandbox: true}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = l.Open(ctx)
	require.Error(t, err)
}
