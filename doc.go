/*
Package multidns implements a stub resolver that dispatches queries against a
set of upstream DNS servers in parallel and returns the best available
response. There are two fundamental types of objects in this library.

# Clients

A Client sends one query to one upstream server over UDP or TCP and owns the
transport configuration for that server: port, timeout, EDNS, TSIG signing and
truncation handling. Clients implement both a blocking send and an
asynchronous send delivering a callback.

# Groups

A Group wraps multiple per-server resolvers and implements the fan-out: each
query is dispatched against the members with bounded per-server retries, the
first successful response wins, and failed responses are arbitrated so that
authoritative non-existence beats generic failure. Groups implement the same
interface as clients, including the asynchronous send, and forward transport
settings to every member.
*/
package multidns
