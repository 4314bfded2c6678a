package pvr

import "context"

// deleteTask removes a catalogued resource, either because the server sent
// dvrEntryDelete or because it was orphaned by a sync reconciliation.
type deleteTask struct {
	resource string
	deleter  Deleter
}

func (t *deleteTask) Run(ctx context.Context) error {
	if t.deleter == nil {
		return nil
	}
	return t.deleter.Delete(ctx, t.resource)
}

// metadataRefreshTask defers to the host's post-processing hook once an
// entry becomes refreshable (spec.md §4.4's closing step).
type metadataRefreshTask struct {
	resource string
	fn       MetadataRefreshFunc
}

func (t *metadataRefreshTask) Run(ctx context.Context) error {
	if t.fn == nil {
		return nil
	}
	return t.fn(ctx, t.resource)
}
