/*
Package pipeline wires the import pipeline together and owns its lifetime.

A Coordinator holds, for every library type, one import queue, one
importer and one filesystem watcher. Watchers and the reconciliation
scanner both hand paths to the same admitter, which classifies them,
checks the catalog and pushes them onto the type's queue. After the video
scan of each cycle the coordinator backfills scene previews; after the full
cycle it records the scan time and checks for missing files.

	c := pipeline.New(cfg, pipeline.Deps{Catalog: cat, Index: idx, ...})
	if err := c.Start(); err != nil {
	    return err
	}
	defer c.Stop(ctx)

Everything is owned by the Coordinator instance; nothing is package level,
so tests can run several pipelines side by side.
*/
package pipeline
