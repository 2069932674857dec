// Package protocol defines the wire formats spoken to the native engine:
// JSON command/response messages and the packed binary mesh sync frames.
// Both shapes are fixed by the engine and must not drift.
package protocol

import (
	"encoding/json"
)

// command ids. `CommandSetGroupAttr` and `CommandSyncObject` carry the same
// payload; the distinct ids keep engine telemetry able to tell a user edit
// from a drift repair.
const (
	CommandAuth                     = 1
	CommandSetGroupAttr             = 2
	CommandSyncObject               = 3
	CommandSyncGroupClassifications = 4
)

const (
	OpAuth                     = "auth"
	OpSetGroupAttr             = "set_group_attr"
	OpSyncGroupClassifications = "sync_group_classifications"
)

type Classification struct {
	GroupName   string `json:"group_name"`
	SurfaceType string `json:"surface_type"`
}

type Command struct {
	Id              int              `json:"id"`
	Op              string           `json:"op"`
	GroupName       string           `json:"group_name,omitempty"`
	Attr            string           `json:"attr,omitempty"`
	Value           any              `json:"value,omitempty"`
	Classifications []Classification `json:"classifications,omitempty"`
	Token           string           `json:"token,omitempty"`
}

type Response struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func EncodeCommand(command *Command) ([]byte, error) {
	return json.Marshal(command)
}

func DecodeResponse(message []byte) (*Response, error) {
	response := &Response{}
	if err := json.Unmarshal(message, response); err != nil {
		return nil, err
	}
	return response, nil
}

// helpers for the engine simulator and tests

func DecodeCommand(message []byte) (*Command, error) {
	command := &Command{}
	if err := json.Unmarshal(message, command); err != nil {
		return nil, err
	}
	return command, nil
}

func EncodeResponse(response *Response) ([]byte, error) {
	return json.Marshal(response)
}
