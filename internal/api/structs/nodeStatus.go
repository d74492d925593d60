package structs

import (
	"sync"
)

// NodeState is what a relay remembers about the last layer it handled.
// The fields are observational only and follow last-write-wins.
type NodeState struct {
	LastReceivedEncryptedMessage *string `json:"lastReceivedEncryptedMessage"`
	LastReceivedDecryptedMessage *string `json:"lastReceivedDecryptedMessage"`
	LastMessageDestination       *int    `json:"lastMessageDestination"`
	mu                           sync.RWMutex
}

func NewNodeState() *NodeState {
	return &NodeState{}
}

// Record stores the outcome of one successfully decoded layer. A nil destination means final delivery.
func (ns *NodeState) Record(encrypted, decrypted string, destination *int) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.LastReceivedEncryptedMessage = &encrypted
	ns.LastReceivedDecryptedMessage = &decrypted
	if destination != nil {
		d := *destination
		ns.LastMessageDestination = &d
	} else {
		ns.LastMessageDestination = nil
	}
}

func (ns *NodeState) GetLastReceivedEncryptedMessage() *string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.LastReceivedEncryptedMessage
}

func (ns *NodeState) GetLastReceivedDecryptedMessage() *string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.LastReceivedDecryptedMessage
}

func (ns *NodeState) GetLastMessageDestination() *int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.LastMessageDestination
}
