// Package watch is the client side of the live channel: it keeps a
// websocket to the server open, probes it for liveness and reconnects with
// exponential back-off.
//
// Defaults follow the dashboard client: first retry after 5s, growing by
// 1.5× per attempt up to 30s, at most 10 attempts, a ping every 10s and a
// forced close after 30s without traffic.
//
// Usage:
//
//	client := watch.New(watch.WSDialer{URL: "ws://localhost:8080/ws"}, watch.Options{
//	    OnMessage: func(env live.Envelope) { fmt.Println(env.Type) },
//	    OnGiveUp:  func(err error) { log.Println(err) },
//	})
//	if err := client.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package watch
