package callflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/domain"
)

// ExampleNew_memory builds a catalog in code instead of loading one.
func ExampleNew_memory() {
	src, err := memory.NewSource(
		domain.MenuNode{
			ID:     domain.RootMenu,
			Prompt: "Press 1 for opening hours. Press 9 for an agent.",
			Options: map[string]domain.Option{
				"1": {Action: domain.ActionEndCall, Message: "We are open 9 to 5."},
				"9": {Action: domain.ActionTransferAgent, Message: "Transferring to agent."},
			},
		},
	)
	if err != nil {
		log.Fatal(err)
	}

	eng, err := callflow.New("", callflow.WithSource(src))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	s, greeting, err := eng.Start(ctx, "+911234567890", "example")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(greeting.Prompt)

	d, err := eng.Press(ctx, s.CallID, "1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(d.Kind, d.Message)

	// Output:
	// Press 1 for opening hours. Press 9 for an agent.
	// call_ended We are open 9 to 5.
}
