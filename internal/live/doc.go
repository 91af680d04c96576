// Package live implements the server side of the publish/broadcast channel
// that keeps dashboards current.
//
// # Overview
//
// Clients hold a websocket open to /ws. On join each one receives an
// initial_data snapshot; after that every committed change to the fleet is
// pushed as an envelope:
//
//	{"type":"uav_update","payload":{...uav...}}
//	{"type":"new_alert","payload":{...alert...}}
//	{"type":"uav_deleted","payload":{"id":2,"name":"UAV-Bravo02"}}
//
// Clients may send ping (answered with exactly {"type":"pong"}), telemetry
// and alert envelopes. Anything else is ignored.
//
// # Components
//
//	┌──────────┐  commit   ┌─────────────┐  Broadcast  ┌──────────┐
//	│ service  │──────────▶│ Broadcaster │────────────▶│ Registry │──▶ Conns
//	└──────────┘           └─────────────┘             └──────────┘
//	                              │ Publish                  ▲
//	                              ▼                          │ BroadcastFrame
//	                        ┌────────────┐   redis pub/sub   │
//	                        │ RedisRelay │───────────────────┘
//	                        └────────────┘   (other instances)
//
// Registry: ordered set of connections, join snapshot, fan-out.
// Broadcaster: maps domain changes onto envelopes.
// Dispatcher: routes inbound client messages, rate limited per connection.
// WSConn / Handler: gorilla websocket transport with a per-connection
// writer goroutine.
// RedisRelay: optional cross-instance fan-out.
//
// # Delivery Guarantees
//
//   - A joining connection receives initial_data before any broadcast
//   - Frames sent to one connection arrive in send order
//   - Broadcasts are best effort and at most once; there is no retry, ack
//     or replay
//   - No ordering is promised between racing broadcasts
//
// # Error Handling
//
// Nothing in this package reports delivery failures to its callers. A
// failed or panicking send is logged, counted in
// uav_live_send_failures_total, and delivery continues with the next
// connection. Bad inbound messages are logged and dropped without closing
// the connection.
package live
