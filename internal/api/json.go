package api

import jsoniter "github.com/json-iterator/go"

// json mirrors the teacher's handler package convention of aliasing a
// faster drop-in for encoding/json. It decodes inbound websocket
// messages in ws.go; responses go through gin's c.JSON and outbound
// websocket messages through the connection's own WriteJSON.
var json = jsoniter.ConfigCompatibleWithStandardLibrary
