// Package engine hosts the vault's relational database in memory and keeps a
// serialized copy of it in a blockstore.Store.
//
// Every successful mutation is followed by a snapshot of the whole database.
// Writes are coalesced so that bursts of mutations cost far fewer than one
// write each, while each caller still observes its own change persisted (or
// the write failure logged) before its call returns.
package engine
