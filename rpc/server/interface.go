package server

import (
	"github.com/ValentinKolb/dSO/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses of one service
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// If an error occurs, it should be set in the response
	Handle(req *common.Message) (resp *common.Message)
	// Disconnect drops all state the service keeps for a client and returns
	// the number of cleared items
	Disconnect(clientID string) int
}
