/*
Package ports defines the driven ports (interfaces) of the callflow engine.

These interfaces decouple the IVR core from external implementations, allowing
the engine to work with various session stores, catalog sources, reservation
systems and telephony providers.

# Key Interfaces

  - SessionStore: Owns live sessions and the termination history log.
  - CatalogSource: Produces the menu nodes the catalog is built from.
  - RecordResolver: Resolves a collected reference (e.g. a PNR) to a record.
  - DistributedLocker: Serializes access to a call across replicas.
  - Dialer: Places outbound calls into the IVR.
*/
package ports
