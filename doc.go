/*
Package callflow is an interactive voice response (IVR) session manager.

A call is a walk through a menu catalog: each menu plays a prompt and binds
keypad tokens (or classified speech) to options that move to another menu,
end the call, transfer it to an agent, or collect a record reference and look
it up. The engine is deterministic; the session manager serializes input per
call, persists sessions through a pluggable store and keeps a history of
finished calls.

# Usage

	eng, err := callflow.New("airline")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	s, greeting, err := eng.Start(ctx, "+911234567890", "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(greeting.Prompt)

	d, err := eng.Press(ctx, s.CallID, "2")
	...

Catalogs can be built in, a YAML/JSON file, or a directory of Markdown menu
documents (see pkg/adapters/loam). Transports live under pkg/adapters: an HTTP
API, a Twilio voice webhook and an MCP server. The cmd/callflow binary wires
them together.
*/
package callflow
