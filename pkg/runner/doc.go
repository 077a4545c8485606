/*
Package runner implements the interactive call simulator.

It drives a single call through a session.Manager from a line-oriented input
source, so menus can be exercised from a terminal or a script without a
telephony provider.

# Input lines

  - A line made only of keypad keys (0-9, *, #) is sent key by key, so
    "123456#" enters a PNR and submits it.
  - "say <text>" (or any other text) is sent as a spoken utterance.
  - "hangup" ends the call as abandoned.

# Usage

	r := runner.NewRunner(manager,
		runner.WithCaller("+911234"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	final, err := r.Run(ctx)
*/
package runner
