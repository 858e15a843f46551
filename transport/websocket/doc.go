// Package websocket streams live simulation events to browsers.
//
// The websocket package implements:
//   - Run-scoped WebSocket connections
//   - Fan-out of vehicle motion, batch progress and run completion
//   - An observer adapter the simulation reports into
//   - Connection lifecycle management with ping keepalive
//
// Architecture:
//
// A central Hub owns all connections. Each connection has a reader and a
// writer goroutine; the hub's event loop registers, unregisters and fans out
// messages, so rental workers never touch a socket.
//
// Message Protocol:
//
// Every outgoing message is a JSON object:
//
//	{"run_id": "...", "event": "vehicle_moved", "data": {...}}
//
// Events are vehicle_moved, position_cleared, rental_completed, controls,
// batch_completed and run_completed. Incoming messages are read and discarded.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("run"))
//	})
//	svc := service.NewFleetService(store, configs, hub, logger)
package websocket
