// Package acp implements the Agent Client Protocol (ACP) runtime: a
// bidirectional JSON-RPC 2.0 peer layered over a line-delimited byte stream,
// typically a child process's stdin/stdout.
//
// ACP defines two symmetric roles. A Client (an editor or host) drives an
// Agent (an AI backend) through session lifecycle methods (initialize,
// session/new, session/prompt, ...) and the Agent streams session/update
// notifications and may call back into the Client for permission decisions
// and file access. Either side may issue requests to the other at any time;
// long-running requests such as session/prompt are cancellable via a
// one-way notification; streaming updates for a session are delivered in
// the order they were sent while concurrent requests may complete out of
// order, correlated by id.
//
// [Conn] owns the wire: framing, outbound id allocation, the pending-request
// table, and inbound dispatch. [AgentSideConnection] and [ClientSideConnection]
// are thin role adapters over a Conn — one binds a user's [AgentHandler] to
// the agent-side inbound methods and exposes the client-directed outbound
// calls; the other does the mirror image with [ClientHandler].
//
// Typed payloads for every request, response, notification, and nested
// discriminated union live in the schema subpackage.
//
//	client := acp.NewClientSideConnection(myClientHandler, agentStdout, agentStdin)
//	go client.Conn().ReadLoop()
//	result, err := client.Initialize(ctx, schema.InitializeRequest{ProtocolVersion: acp.ProtocolVersion})
package acp
