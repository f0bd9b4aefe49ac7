// Package glossary defines the record shape, the relational and search-index
// entities, and the narrow interfaces the reconciliation pipeline is built on.
//
// Producers (site extractors, JSON Lines files, the HTTP API) emit Records.
// The pipeline reconciles each Record against a relational Store, where Terms,
// Variants and Definitions live, and then projects the Term's aggregate into an
// IndexDocument held by an IndexStore. The relational store is the source of
// truth; the index is a rebuildable cache that may lag it.
package glossary
