package registry

import (
	"log/slog"
	"net/http"

	"github.com/HannahMarsh/onion-router/internal/api/api_functions"
	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/HannahMarsh/onion-router/internal/repositories"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// Router returns the registry's HTTP API.
func (r *Registry) Router() http.Handler {
	m := mux.NewRouter()
	m.HandleFunc("/status", api_functions.HandleStatus).Methods(http.MethodGet)
	m.HandleFunc("/registerNode", r.HandleRegisterNode).Methods(http.MethodPost)
	m.HandleFunc("/getNodeRegistry", r.HandleGetNodeRegistry).Methods(http.MethodGet)
	m.HandleFunc("/nodes", r.HandleGetNodeRegistry).Methods(http.MethodGet)
	m.HandleFunc("/users", r.HandleGetUsers).Methods(http.MethodGet)
	return api_functions.WithMiddleware(m)
}

// HandleRegisterNode processes HTTP requests for registering a relay node.
func (r *Registry) HandleRegisterNode(w http.ResponseWriter, req *http.Request) {
	var body structs.RegisterNodeBody
	if err := api_functions.DecodeJSON(req, &body); err != nil {
		// a non-integer nodeId fails here
		slog.Error("Error decoding node registration request", "err", err)
		api_functions.WriteError(w, http.StatusBadRequest, "Missing nodeId or public key")
		return
	}
	if body.NodeID == nil || body.PubKey == "" {
		api_functions.WriteError(w, http.StatusBadRequest, "Missing nodeId or public key")
		return
	}

	if err := r.Register(*body.NodeID, body.PubKey); err != nil {
		if errors.Is(err, repositories.ErrNodeExists) {
			api_functions.WriteError(w, http.StatusBadRequest, "Node is already registered")
			return
		}
		slog.Error("Error registering node", "id", *body.NodeID, "err", err)
		api_functions.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	api_functions.WriteJSON(w, http.StatusOK, structs.RegisterNodeResponse{Message: "Node registered successfully"})
}

func (r *Registry) HandleGetNodeRegistry(w http.ResponseWriter, _ *http.Request) {
	nodes, err := r.ListNodes()
	if err != nil {
		slog.Error("Error listing nodes", "err", err)
		api_functions.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api_functions.WriteJSON(w, http.StatusOK, structs.GetNodeRegistryBody{Nodes: nodes})
}

// HandleGetUsers lists registered users. Users never register, so the list is always empty.
func (r *Registry) HandleGetUsers(w http.ResponseWriter, _ *http.Request) {
	api_functions.WriteJSON(w, http.StatusOK, structs.GetUsersBody{Users: []int{}})
}
