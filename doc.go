// Package partysync keeps in-memory party membership synchronized with
// durable storage under a request budget.
//
// A Hub owns named registries; each registry owns parties, a FIFO mutation
// queue, and a batch processor that drains the queue on a fixed cadence.
// Party mutations (add, remove, capacity change) validate synchronously,
// enqueue an event, and return a Future that resolves once the event drains.
// Events touching the same party always resolve in the order they were
// issued.
//
// Durable registries write through to two NATS JetStream KeyValue buckets: a
// per-registry membership bucket holding the group record of each party, and
// a hub-shared lookup bucket mapping each player to the party they belong
// to. All store traffic is gated by a shared request budget so the library
// never exceeds the platform's allowance; when budget runs out, mutations
// wait rather than fail.
//
// Session recovery (Hub.RecoverSession) reconnects a returning player:
// the lookup bucket says which party they were in, the group record proves
// they still are, and the party is reinstated in memory if this process
// does not hold it yet. Stale lookup records are deleted along the way.
//
// Basic usage:
//
//	hub, err := partysync.NewHub(ctx, nc)
//	if err != nil {
//	    return err
//	}
//	defer hub.Close(ctx)
//
//	reg, err := hub.Register(ctx, partysync.DefaultConfig("matchmaking"))
//	if err != nil {
//	    return err
//	}
//
//	hub.Sessions().SetReady(playerID)
//
//	party, err := reg.Create(ctx, playerID)
//	if err != nil {
//	    return err
//	}
//
//	fut, err := party.Add(ctx, playerID)
//	if err != nil {
//	    return err
//	}
//	if err := fut.Wait(ctx); err != nil {
//	    return err
//	}
package partysync
