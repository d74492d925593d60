package structs

// Node is one directory entry.
type Node struct {
	NodeID int    `json:"nodeId"`
	PubKey string `json:"pubKey"`
}

// RegisterNodeBody is the registration request. NodeID is a pointer so that a missing id is detectable.
type RegisterNodeBody struct {
	NodeID *int   `json:"nodeId"`
	PubKey string `json:"pubKey"`
}

type RegisterNodeResponse struct {
	Message string `json:"message"`
}

type GetNodeRegistryBody struct {
	Nodes []Node `json:"nodes"`
}

type GetUsersBody struct {
	Users []int `json:"users"`
}
