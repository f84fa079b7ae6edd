package appconfig

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/TimurManjosov/goappconfig/internal/devserver"
	"github.com/TimurManjosov/goappconfig/internal/testutil"
)

const testDoc = `{
	"features":[
		{"name":"Dark mode","feature_id":"dark-mode","type":"STRING","enabled":true,
		 "enabled_value":"on","disabled_value":"off",
		 "segment_rules":[{"order":1,"rules":[{"segments":["gold"]}],"value":"$default"}]},
		{"name":"Killed","feature_id":"killed","type":"BOOLEAN","enabled":false,
		 "enabled_value":true,"disabled_value":false}
	],
	"properties":[
		{"name":"Page size","property_id":"page-size","type":"NUMERIC","value":25,
		 "segment_rules":[{"order":1,"rules":[{"segments":["gold"]}],"value":100}]}
	],
	"segments":[
		{"name":"Gold plan","segment_id":"gold",
		 "rules":[{"attribute_name":"plan","operator":"is","values":["gold"]}]}
	]
}`

func startStub(t *testing.T) *httptest.Server {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/snap.json", []byte(testDoc), 0o600); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	srv, err := devserver.New(&devserver.Config{
		Guid:         "local",
		AdminAPIKey:  "admin",
		SnapshotPath: "/snap.json",
	}, fs, zerolog.Nop())
	if err != nil {
		t.Fatalf("devserver.New() error = %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, ts *httptest.Server, copts ...ContextOption) *Client {
	t.Helper()
	c, err := NewClient("us-south", "local", "apikey",
		WithBaseURL(ts.URL),
		WithFilesystem(afero.NewMemMapFs()),
		WithCacheDir("/cache"),
		WithRetryInterval(50*time.Millisecond),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.SetContext("web", "dev", copts...); err != nil {
		t.Fatalf("SetContext() error = %v", err)
	}
	return c
}

func TestNewClient_Validation(t *testing.T) {
	for _, args := range [][3]string{
		{"", "guid", "key"},
		{"us-south", "", "key"},
		{"us-south", "guid", " "},
	} {
		if _, err := NewClient(args[0], args[1], args[2]); !errors.Is(err, ErrInvalidInit) {
			t.Fatalf("NewClient(%q,%q,%q) error = %v, want ErrInvalidInit", args[0], args[1], args[2], err)
		}
	}
}

func TestClient_AccessorsRequireContext(t *testing.T) {
	c, err := NewClient("us-south", "local", "apikey", WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer c.Close()

	if _, err := c.GetFeature("x"); !errors.Is(err, ErrContextNotSet) {
		t.Fatalf("GetFeature error = %v, want ErrContextNotSet", err)
	}
	if _, err := c.GetProperties(); !errors.Is(err, ErrContextNotSet) {
		t.Fatalf("GetProperties error = %v, want ErrContextNotSet", err)
	}
	if err := c.FetchConfigurations(); !errors.Is(err, ErrContextNotSet) {
		t.Fatalf("FetchConfigurations error = %v, want ErrContextNotSet", err)
	}
}

func TestClient_SecondSetContextFails(t *testing.T) {
	ts := startStub(t)
	c := newTestClient(t, ts)

	if err := c.SetContext("web", "dev"); !errors.Is(err, ErrContextAlreadySet) {
		t.Fatalf("second SetContext error = %v, want ErrContextAlreadySet", err)
	}
}

func TestClient_EvaluatesAfterSync(t *testing.T) {
	ts := startStub(t)
	c := newTestClient(t, ts)

	testutil.Eventually(t, "initial sync", func() bool {
		_, err := c.GetFeature("dark-mode")
		return err == nil
	})

	f, err := c.GetFeature("dark-mode")
	if err != nil {
		t.Fatalf("GetFeature() error = %v", err)
	}
	if !f.IsEnabled() || f.Name() != "Dark mode" || f.DataType() != "STRING" {
		t.Fatalf("feature metadata = %q %q enabled=%v", f.Name(), f.DataType(), f.IsEnabled())
	}

	// No attributes: enabled value, rules skipped.
	if got := f.CurrentValue("alice", nil); got != "on" {
		t.Fatalf("CurrentValue(no attrs) = %v, want on", got)
	}
	// Matching segment with the sentinel value still serves the enabled value.
	if got := f.CurrentValue("alice", map[string]any{"plan": "gold"}); got != "on" {
		t.Fatalf("CurrentValue(gold) = %v, want on", got)
	}
	// Empty entity id is a caller error.
	if got := f.CurrentValue("", nil); got != nil {
		t.Fatalf("CurrentValue(empty entity) = %v, want nil", got)
	}

	killed, err := c.GetFeature("killed")
	if err != nil {
		t.Fatalf("GetFeature(killed) error = %v", err)
	}
	if got := killed.CurrentValue("alice", map[string]any{"plan": "gold"}); got != false {
		t.Fatalf("disabled feature value = %v, want false", got)
	}

	p, err := c.GetProperty("page-size")
	if err != nil {
		t.Fatalf("GetProperty() error = %v", err)
	}
	if got := p.CurrentValue("alice", nil); got != float64(25) {
		t.Fatalf("property base value = %v, want 25", got)
	}
	if got := p.CurrentValue("alice", map[string]any{"plan": "gold"}); got != float64(100) {
		t.Fatalf("property gold value = %v, want 100", got)
	}

	if _, err := c.GetFeature("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetFeature(missing) error = %v, want ErrNotFound", err)
	}
}

func TestClient_PushUpdateRefreshesValues(t *testing.T) {
	ts := startStub(t)
	c := newTestClient(t, ts)

	testutil.Eventually(t, "initial sync", func() bool {
		_, err := c.GetFeature("dark-mode")
		return err == nil
	})

	updated := make(chan struct{}, 4)
	if err := c.RegisterConfigurationUpdateListener(func() { updated <- struct{}{} }); err != nil {
		t.Fatalf("RegisterConfigurationUpdateListener() error = %v", err)
	}

	newDoc := strings.Replace(testDoc, `"enabled_value":"on"`, `"enabled_value":"bright"`, 1)
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/admin/config", strings.NewReader(newDoc))
	req.Header.Set("Authorization", "Bearer admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT config: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}

	select {
	case <-updated:
	case <-time.After(3 * time.Second):
		t.Fatalf("update listener never fired")
	}

	f, err := c.GetFeature("dark-mode")
	if err != nil {
		t.Fatalf("GetFeature() error = %v", err)
	}
	if got := f.CurrentValue("alice", nil); got != "bright" {
		t.Fatalf("CurrentValue after push = %v, want bright", got)
	}
}

func TestClient_OfflineBootstrap(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/bootstrap.json", []byte(testDoc), 0o600); err != nil {
		t.Fatalf("write bootstrap: %v", err)
	}

	c, err := NewClient("us-south", "local", "apikey",
		WithBaseURL("http://127.0.0.1:0"),
		WithFilesystem(fs),
		WithCacheDir("/cache"),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer c.Close()

	err = c.SetContext("web", "dev",
		WithBootstrapFile("/bootstrap.json"),
		WithLiveUpdates(false),
	)
	if err != nil {
		t.Fatalf("SetContext() error = %v", err)
	}

	testutil.Eventually(t, "bootstrap load", func() bool {
		_, err := c.GetFeature("dark-mode")
		return err == nil
	})

	features, err := c.GetFeatures()
	if err != nil {
		t.Fatalf("GetFeatures() error = %v", err)
	}
	if len(features) != 2 {
		t.Fatalf("features = %d, want 2", len(features))
	}
	props, err := c.GetProperties()
	if err != nil {
		t.Fatalf("GetProperties() error = %v", err)
	}
	if len(props) != 1 {
		t.Fatalf("properties = %d, want 1", len(props))
	}
}
