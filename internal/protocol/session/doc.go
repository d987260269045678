// Package session correlates rpc requests and responses over one envelope
// type.
//
// Every message is an envelope struct (integer fields "type" and "session")
// followed by an optional payload struct, packed as one buffer. An envelope
// carrying "type" is a request; one carrying only "session" is the response
// to an earlier request sent with that session id.
//
// Ownership boundary:
// - envelope framing on top of wire and pack
// - the pending session table
// - response closures for incoming requests
package session
