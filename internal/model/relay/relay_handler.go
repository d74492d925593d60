package relay

import (
	"log/slog"
	"net/http"

	"github.com/HannahMarsh/onion-router/internal/api/api_functions"
	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/HannahMarsh/onion-router/internal/onion"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// Router returns the relay's HTTP API.
func (n *Relay) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", api_functions.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/getLastReceivedEncryptedMessage", n.HandleGetLastReceivedEncryptedMessage).Methods(http.MethodGet)
	r.HandleFunc("/getLastReceivedDecryptedMessage", n.HandleGetLastReceivedDecryptedMessage).Methods(http.MethodGet)
	r.HandleFunc("/getLastMessageDestination", n.HandleGetLastMessageDestination).Methods(http.MethodGet)
	r.HandleFunc("/getPrivateKey", n.HandleGetPrivateKey).Methods(http.MethodGet)
	r.HandleFunc("/message", api_functions.RateLimited(n.limiter, n.HandleMessage)).Methods(http.MethodPost)
	return api_functions.WithMiddleware(r)
}

// HandleMessage peels the received layer and answers according to the outcome.
func (n *Relay) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var body structs.MessageBody
	if err := api_functions.DecodeJSON(r, &body); err != nil {
		slog.Error("Error decoding message", "err", err)
		api_functions.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !body.Message.Present() {
		api_functions.WriteError(w, http.StatusBadRequest, "Missing message")
		return
	}

	outcome, err := n.Process(api_functions.ContextFromRequest(r), body.Message.Value)
	switch {
	case errors.Is(err, onion.ErrMalformedLayer):
		api_functions.WriteError(w, http.StatusBadRequest, "Malformed layer")
	case errors.Is(err, api_functions.ErrForwardingFailure):
		api_functions.WriteError(w, http.StatusBadGateway, "Failed to forward message to next hop")
	case err != nil:
		api_functions.WriteError(w, http.StatusInternalServerError, "Internal error while processing the message")
	case outcome.State == onion.Delivering:
		payload := outcome.Payload
		api_functions.WriteJSON(w, http.StatusOK, structs.StatusResponse{Status: "Final message reached the last node", Message: &payload})
	default:
		api_functions.WriteJSON(w, http.StatusOK, structs.StatusResponse{Status: "Message decrypted and forwarded successfully"})
	}
}

func (n *Relay) HandleGetLastReceivedEncryptedMessage(w http.ResponseWriter, _ *http.Request) {
	api_functions.WriteJSON(w, http.StatusOK, structs.Result[string]{Result: n.state.GetLastReceivedEncryptedMessage()})
}

func (n *Relay) HandleGetLastReceivedDecryptedMessage(w http.ResponseWriter, _ *http.Request) {
	api_functions.WriteJSON(w, http.StatusOK, structs.Result[string]{Result: n.state.GetLastReceivedDecryptedMessage()})
}

func (n *Relay) HandleGetLastMessageDestination(w http.ResponseWriter, _ *http.Request) {
	api_functions.WriteJSON(w, http.StatusOK, structs.Result[int]{Result: n.state.GetLastMessageDestination()})
}

// HandleGetPrivateKey exposes the private key; it exists so test harnesses can decrypt captured layers.
func (n *Relay) HandleGetPrivateKey(w http.ResponseWriter, _ *http.Request) {
	privateKey, err := n.ExportPrivateKey()
	if err != nil {
		slog.Error("Error exporting private key", "err", err)
		api_functions.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api_functions.WriteJSON(w, http.StatusOK, structs.Result[string]{Result: &privateKey})
}
