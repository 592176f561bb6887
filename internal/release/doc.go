// Package release defines the domain model for upcoming-release discovery:
// scan resume state, the rolling month window used to classify listing
// items, detail records fetched per item, and the collaborator interfaces
// implemented by the fetchers, stores, and publishers in sibling packages.
package release
