package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HannahMarsh/onion-router/config"
	"github.com/HannahMarsh/onion-router/internal/api/api_functions"
	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/HannahMarsh/onion-router/internal/model/registry"
	"github.com/HannahMarsh/onion-router/internal/model/relay"
	"github.com/HannahMarsh/onion-router/internal/model/user"
	"github.com/HannahMarsh/onion-router/internal/repositories"
	"github.com/HannahMarsh/onion-router/pkg/cm"
	"github.com/HannahMarsh/onion-router/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overlay runs every participant behind its own httptest server and resolves
// addresses through a table instead of real ports.
type overlay struct {
	cfg      *config.Config
	urls     cm.ConcurrentMap[int, string]
	registry *httptest.Server
	relays   []*relay.Relay
	users    []*httptest.Server
	servers  []*httptest.Server
}

func newOverlay(t *testing.T, numRelays int, compress bool) *overlay {
	t.Helper()
	o := &overlay{cfg: &config.Config{
		BaseOnionRouterPort: 4000,
		BaseUserPort:        9000,
		NumRelays:           numRelays,
		NumUsers:            2,
	}}
	t.Cleanup(func() {
		for _, s := range o.servers {
			s.Close()
		}
	})

	resolve := func(address int) string {
		url, _ := o.urls.Get(address)
		return url
	}
	transport := api_functions.NewHTTPTransport(resolve, 5*time.Second, compress)

	o.registry = httptest.NewServer(registry.NewRegistry(repositories.NewNodeRepository()).Router())
	o.servers = append(o.servers, o.registry)
	registryClient := api_functions.NewRegistryClient(o.registry.URL, 5*time.Second, 0)

	for id := 0; id < numRelays; id++ {
		r, err := relay.NewRelay(id, o.cfg, transport)
		require.NoError(t, err)
		s := httptest.NewServer(r.Router())
		o.servers = append(o.servers, s)
		o.urls.Set(r.Address, s.URL)
		require.NoError(t, r.RegisterWithRegistry(context.Background(), registryClient))
		o.relays = append(o.relays, r)
	}

	for id := 0; id < o.cfg.NumUsers; id++ {
		u := user.NewUser(id, o.cfg, registryClient, transport, nil)
		s := httptest.NewServer(u.Router())
		o.servers = append(o.servers, s)
		o.urls.Set(u.Address, s.URL)
		o.users = append(o.users, s)
	}
	return o
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getResult[T any](t *testing.T, url string) *T {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result structs.Result[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result.Result
}

func TestEndToEnd(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			o := newOverlay(t, 3, compress)

			resp := postJSON(t, o.users[0].URL+"/sendMessage", `{"message":"hello","destinationUserId":1}`)
			body, _ := io.ReadAll(resp.Body)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			received := getResult[string](t, o.users[1].URL+"/getLastReceivedMessage")
			require.NotNil(t, received)
			assert.Equal(t, "hello", *received)

			sent := getResult[string](t, o.users[0].URL+"/getLastSentMessage")
			require.NotNil(t, sent)
			assert.Equal(t, "hello", *sent)

			circuit := getResult[[]int](t, o.users[0].URL+"/getLastCircuit")
			require.NotNil(t, circuit)
			assert.ElementsMatch(t, []int{0, 1, 2}, *circuit)

			// the last relay of the circuit handed the plaintext to user 1
			lastRelay := o.relays[(*circuit)[2]]
			assert.Equal(t, 9001, *lastRelay.State().GetLastMessageDestination())
			assert.Equal(t, "hello", *lastRelay.State().GetLastReceivedDecryptedMessage())
		})
	}
}

func TestEndToEnd_InsufficientNodes(t *testing.T) {
	o := newOverlay(t, 2, false)

	resp := postJSON(t, o.users[0].URL+"/sendMessage", `{"message":"hello","destinationUserId":1}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Nil(t, getResult[string](t, o.users[0].URL+"/getLastSentMessage"))
	assert.Nil(t, getResult[string](t, o.users[1].URL+"/getLastReceivedMessage"))
}

func TestEndToEnd_DuplicateRegistration(t *testing.T) {
	o := newOverlay(t, 3, false)
	rc := api_functions.NewRegistryClient(o.registry.URL, time.Second, 0)

	err := o.relays[0].RegisterWithRegistry(context.Background(), rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Node is already registered")

	nodes, err := rc.GetNodeRegistry(context.Background())
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
}

func TestLaunch(t *testing.T) {
	port, err := utils.GetAvailablePort()
	require.NoError(t, err)
	cfg := &config.Config{
		Registry:            config.Registry{Host: "localhost", Port: port, Address: fmt.Sprintf("http://localhost:%d", port)},
		BaseOnionRouterPort: 4000,
		BaseUserPort:        9000,
	}

	nw, err := Launch(context.Background(), cfg)
	require.NoError(t, err)
	defer nw.Shutdown(context.Background())

	resp, err := http.Get(cfg.Registry.Address + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "live", string(body))

	_, err = Serve(port, http.NotFoundHandler())
	assert.Error(t, err, "port is already bound")
}
