package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/HannahMarsh/onion-router/internal/repositories"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(repositories.NewNodeRepository())
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestRegister(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(2, "b"))
	require.NoError(t, r.Register(0, "a"))

	err := r.Register(2, "c")
	assert.True(t, errors.Is(err, repositories.ErrNodeExists))

	nodes, err := r.ListNodes()
	require.NoError(t, err)
	assert.Equal(t, []structs.Node{{NodeID: 0, PubKey: "a"}, {NodeID: 2, PubKey: "b"}}, nodes)
}

func TestListParticipants(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(1, "k1"))
	require.NoError(t, r.Register(3, "k3"))

	participants, err := r.ListParticipants(func(id int) int { return 4000 + id })
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, 4001, participants[0].Address)
	assert.Equal(t, 3, participants[1].ID)
	assert.Equal(t, "k3", participants[1].PublicKey)
}

func TestHandleRegisterNode(t *testing.T) {
	h := newTestRegistry().Router()

	rec := post(t, h, "/registerNode", `{"nodeId":1,"pubKey":"key"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ok structs.RegisterNodeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ok))
	assert.Equal(t, "Node registered successfully", ok.Message)

	rec = post(t, h, "/registerNode", `{"nodeId":1,"pubKey":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var e structs.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	assert.Equal(t, "Node is already registered", e.Error)

	for _, body := range []string{`{"pubKey":"key"}`, `{"nodeId":2}`, `{"nodeId":"two","pubKey":"key"}`, `{"nodeId":2,"pubKey":""}`} {
		rec = post(t, h, "/registerNode", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		e = structs.ErrorResponse{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
		assert.Equal(t, "Missing nodeId or public key", e.Error, body)
	}
}

func TestHandleGetNodeRegistry(t *testing.T) {
	r := newTestRegistry()
	h := r.Router()

	for _, path := range []string{"/getNodeRegistry", "/nodes"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.JSONEq(t, `{"nodes":[]}`, rec.Body.String(), path)
	}

	require.NoError(t, r.Register(5, "k5"))
	require.NoError(t, r.Register(4, "k4"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/getNodeRegistry", nil))
	assert.JSONEq(t, `{"nodes":[{"nodeId":4,"pubKey":"k4"},{"nodeId":5,"pubKey":"k5"}]}`, rec.Body.String())
}

func TestHandleStatusAndUsers(t *testing.T) {
	h := newTestRegistry().Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, "live", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.JSONEq(t, `{"users":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registerNode", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
