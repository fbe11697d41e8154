// Package server exposes convomesh sessions over HTTP.
//
// Two surfaces share one runner.Runner:
//
//   - the realtime voice channel, a websocket at /ws carrying JSON frames
//     (see ClientFrame and ServerFrame)
//   - the text chat, POST /api/chat and POST /api/upload answering with a
//     server-sent event stream of {"content": ...} chunks ended by [DONE]
//
// Both mount GET /health.
package server
