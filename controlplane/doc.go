// Package controlplane drives a voxroom library remotely.
//
// A Server answers JSON commands on GET /ws and pushes every engine event to
// all connected clients:
//
//	{"type":"create_room","id":"1","room_id":5}
//	{"type":"result","id":"1","ok":true,"error":"ok"}
//	{"type":"event","event":{"event":"create_room","room_id":5}}
//
// Audio never crosses the control plane.
package controlplane
