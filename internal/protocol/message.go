package protocol

import (
	"encoding/json"
	"fmt"
)

// jsonRPCVersion is the only framing version spoken on any transport.
const jsonRPCVersion = "2.0"

// RPCError is the error member of a JSON-RPC response. It rejects only the
// request it belongs to; the connection stays open.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcMessage is one JSON-RPC 2.0 frame: a request (method + id), a
// notification (method, no id), or a response (id + result or error).
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// inboundMessage mirrors rpcMessage with raw params, for decoding frames read
// off a transport.
type inboundMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func newRequest(id int64, method string, params any) rpcMessage {
	return rpcMessage{JSONRPC: jsonRPCVersion, ID: &id, Method: method, Params: params}
}

func newNotification(method string, params any) rpcMessage {
	return rpcMessage{JSONRPC: jsonRPCVersion, Method: method, Params: params}
}
