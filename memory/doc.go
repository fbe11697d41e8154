// Package memory implements the persistent fact memory: a FactStore backend
// kept in process (InMemoryStore) and the Service that layers scope
// resolution, tier prefixes and the delete policy on top of any
// core.FactStore.
//
// Durable backends live in store/postgres and store/sqlite; select one at
// wiring time and pass it through Options.Store.
package memory
