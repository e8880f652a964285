package vgate

import (
	"github.com/mwantia/vgate/bus"
	"github.com/mwantia/vgate/data"
)

// directorySubscriber keeps the listing cache consistent with
// mutations. Object paths invalidate the containing listing; directory
// paths invalidate the whole subtree beneath them.
func (g *Gateway) directorySubscriber() bus.Subscriber {
	return bus.SubscriberFunc{
		SubscriberName: "directory-cache",
		Handler: func(evt bus.Event) error {
			if evt.Target != bus.TargetFS {
				return nil
			}

			switch {
			case evt.InvalidateAll:
				g.directories.InvalidateAll()

			case evt.MountID != "" && len(evt.Paths) == 0 && len(evt.DirPaths) == 0:
				g.directories.InvalidateMount(evt.MountID)

			default:
				for _, path := range evt.Paths {
					g.directories.Invalidate(evt.MountID, path)
					g.directories.Invalidate(evt.MountID, data.ParentPath(path))
				}
				for _, dir := range evt.DirPaths {
					g.directories.InvalidateTree(evt.MountID, dir)
					g.directories.Invalidate(evt.MountID, data.ParentPath(dir))
				}
			}

			return nil
		},
	}
}

// summarySubscriber drops cached folder summaries. Summaries aggregate
// recursively, so any change below a folder stales every ancestor up
// to the mount root.
func (g *Gateway) summarySubscriber() bus.Subscriber {
	return bus.SubscriberFunc{
		SubscriberName: "summary-cache",
		Handler: func(evt bus.Event) error {
			if evt.Target != bus.TargetFS {
				return nil
			}

			switch {
			case evt.InvalidateAll:
				g.summaries.InvalidateAll()

			case evt.MountID != "" && len(evt.Paths) == 0 && len(evt.DirPaths) == 0:
				g.summaries.InvalidateMount(evt.MountID)

			default:
				for _, path := range evt.Paths {
					g.summaries.InvalidateAncestors(evt.MountID, path)
				}
				for _, dir := range evt.DirPaths {
					g.summaries.InvalidateTree(evt.MountID, dir)
					g.summaries.InvalidateAncestors(evt.MountID, dir)
				}
			}

			return nil
		},
	}
}

// urlSubscriber drops cached resolved links. The URL cache cannot
// enumerate its keys, so anything broader than a point invalidation
// degrades to a full clear.
func (g *Gateway) urlSubscriber() bus.Subscriber {
	return bus.SubscriberFunc{
		SubscriberName: "url-cache",
		Handler: func(evt bus.Event) error {
			if evt.Target != bus.TargetFS {
				return nil
			}

			if evt.InvalidateAll || len(evt.DirPaths) > 0 ||
				(evt.MountID != "" && len(evt.Paths) == 0) {
				g.urls.InvalidateAll()
				return nil
			}

			for _, path := range evt.Paths {
				g.urls.Invalidate(evt.MountID, path)
			}

			return nil
		},
	}
}
