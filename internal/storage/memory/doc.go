// Package memory contains in-memory store implementations used for local
// runs and tests.
package memory
