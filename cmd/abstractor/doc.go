// Command abstractor is the CLI for the title search daemon. It talks to
// abstractord over a JSON-RPC Unix socket and renders search, chain, and
// recovery information for operators.
package main
