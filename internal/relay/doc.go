// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

/*
Package relay carries fan-out requests between IMConnect nodes.

A single node needs no relay: its Registry knows every live connection. When
several nodes serve the same users, each node delivers an event to its own
connections and publishes an Envelope. Peer nodes receive the envelope and
dispatch it to their local connections through a Sink (the fan-out Router).

Transports:

  - NewMemoryPubSub: watermill gochannel, in-process. Used in tests and for
    running several logical nodes in one process.
  - NewNATSPubSub: watermill-nats on core NATS with JetStream disabled.
  - NewEmbeddedServer: an in-process nats-server for single-host setups.

Envelopes published by a node carry its NodeID and are skipped when they come
back to it. Malformed messages are acked and counted, never redelivered.
*/
package relay
