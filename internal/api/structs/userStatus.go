package structs

import (
	"sync"
)

// UserState is what a user remembers about its last exchange.
type UserState struct {
	LastReceivedMessage *string `json:"lastReceivedMessage"`
	LastSentMessage     *string `json:"lastSentMessage"`
	LastCircuit         []int   `json:"lastCircuit"`
	mu                  sync.RWMutex
}

func NewUserState() *UserState {
	return &UserState{}
}

func (us *UserState) SetReceived(message string) {
	us.mu.Lock()
	defer us.mu.Unlock()
	us.LastReceivedMessage = &message
}

// SetSent records a successful send together with the relay ids of its circuit.
func (us *UserState) SetSent(message string, circuit []int) {
	us.mu.Lock()
	defer us.mu.Unlock()
	us.LastSentMessage = &message
	us.LastCircuit = append([]int(nil), circuit...)
}

func (us *UserState) GetLastReceivedMessage() *string {
	us.mu.RLock()
	defer us.mu.RUnlock()
	return us.LastReceivedMessage
}

func (us *UserState) GetLastSentMessage() *string {
	us.mu.RLock()
	defer us.mu.RUnlock()
	return us.LastSentMessage
}

// GetLastCircuit returns nil until a message has been sent.
func (us *UserState) GetLastCircuit() *[]int {
	us.mu.RLock()
	defer us.mu.RUnlock()
	if us.LastCircuit == nil {
		return nil
	}
	c := append([]int(nil), us.LastCircuit...)
	return &c
}
