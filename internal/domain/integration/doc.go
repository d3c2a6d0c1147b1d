// Package integration contains the domain model for synchronizing orders and
// products between the PowerBody supplier API (SOAP) and a Shopify store
// (REST). It defines the identifier mappings, sync watermarks, domain
// outcomes, the dead-letter record, and the ports (MappingStore, ProductCache,
// DeadLetterQueue) that the application-layer orchestrators depend on.
//
// The package holds no transport or persistence code; adapters live under
// internal/infrastructure and implement the ports defined here.
package integration
