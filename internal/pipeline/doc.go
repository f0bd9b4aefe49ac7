// Package pipeline reconciles incoming glossary records with the relational
// store and the search index.
//
// One record flows through: TermResolver -> DefinitionRegistrar ->
// VariantRegistrar (per variant) -> commit -> IndexSynchronizer. The
// relational writes for a record are all-or-nothing; the index write happens
// only after the commit and its failure never undoes it. Records that commit
// but fail to index surface as glossary.ErrIndexSync so a caller can hand them
// to the Reconciler later.
//
// A Pipeline is not safe for concurrent use. Feed it from a single worker.
package pipeline
