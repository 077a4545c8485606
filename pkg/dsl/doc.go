/*
Package dsl provides a fluent Go builder for menu catalogs.

It is an alternative to YAML catalogs for tests, embedded deployments and
catalogs generated at runtime.

	b := dsl.New()

	b.Main().
		Prompt("Press 1 for flight status. Press 9 for an agent.").
		Goto("1", "flight_status", "Flight Status selected.").
		Transfer("9", "Transferring to agent.").
		Alias("check_status", "1")

	b.Add("flight_status").
		Prompt("Enter your 6 digit PNR followed by the hash key.").
		Collect(6, "#").
		Lookup("#", "Looking up your PNR...")

	src, err := b.Build() // a ports.CatalogSource
	...
	eng, err := callflow.New("", callflow.WithSource(src))
*/
package dsl
