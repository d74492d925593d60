package user

import (
	"log/slog"
	"net/http"

	"github.com/HannahMarsh/onion-router/internal/api/api_functions"
	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/HannahMarsh/onion-router/internal/onion"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// Router returns the user's HTTP API.
func (u *User) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", api_functions.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/getLastReceivedMessage", u.HandleGetLastReceivedMessage).Methods(http.MethodGet)
	r.HandleFunc("/getLastSentMessage", u.HandleGetLastSentMessage).Methods(http.MethodGet)
	r.HandleFunc("/getLastCircuit", u.HandleGetLastCircuit).Methods(http.MethodGet)
	r.HandleFunc("/message", u.HandleMessage).Methods(http.MethodPost)
	r.HandleFunc("/sendMessage", u.HandleSendMessage).Methods(http.MethodPost)
	return api_functions.WithMiddleware(r)
}

// HandleMessage accepts the final plaintext from the last relay of a circuit.
func (u *User) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var body structs.MessageBody
	if err := api_functions.DecodeJSON(r, &body); err != nil {
		slog.Error("Error decoding message", "err", err)
		api_functions.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !body.Message.Present() {
		api_functions.WriteError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if err := u.Receive(api_functions.ContextFromRequest(r), body.Message.Value); err != nil {
		api_functions.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	api_functions.WriteText(w, http.StatusOK, "success")
}

// HandleSendMessage builds a circuit and sends the message through it.
func (u *User) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body structs.SendMessageBody
	if err := api_functions.DecodeJSON(r, &body); err != nil {
		slog.Error("Error decoding send request", "err", err)
		api_functions.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !body.Message.Present() || body.DestinationUserID == nil {
		api_functions.WriteError(w, http.StatusBadRequest, "MessageContent and recipientUserId are required")
		return
	}

	_, err := u.SendMessage(api_functions.ContextFromRequest(r), body.Message.Value, *body.DestinationUserID)
	switch {
	case errors.Is(err, onion.ErrInsufficientParticipants):
		api_functions.WriteError(w, http.StatusInternalServerError, "Insufficient nodes in the network")
	case errors.Is(err, api_functions.ErrForwardingFailure):
		slog.Error("Error while transmitting message", "user", u.ID, "err", err)
		api_functions.WriteError(w, http.StatusBadGateway, "Failed to send message to first node")
	case err != nil:
		slog.Error("Error while transmitting message", "user", u.ID, "err", err)
		api_functions.WriteError(w, http.StatusInternalServerError, "Internal error occurred during message transmission")
	default:
		api_functions.WriteJSON(w, http.StatusOK, structs.StatusResponse{Status: "Message successfully transmitted"})
	}
}

func (u *User) HandleGetLastReceivedMessage(w http.ResponseWriter, _ *http.Request) {
	api_functions.WriteJSON(w, http.StatusOK, structs.Result[string]{Result: u.state.GetLastReceivedMessage()})
}

func (u *User) HandleGetLastSentMessage(w http.ResponseWriter, _ *http.Request) {
	api_functions.WriteJSON(w, http.StatusOK, structs.Result[string]{Result: u.state.GetLastSentMessage()})
}

func (u *User) HandleGetLastCircuit(w http.ResponseWriter, _ *http.Request) {
	api_functions.WriteJSON(w, http.StatusOK, structs.Result[[]int]{Result: u.state.GetLastCircuit()})
}
