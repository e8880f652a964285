package vgate

import (
	"context"

	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/data/errors"
	"github.com/mwantia/vgate/driver"
)

// Link resolves a download URL for the virtual path.
//
// Resolution policy, in order: a forced proxy (per request or per
// mount) is terminal and never falls back; otherwise a direct link is
// attempted first and a direct-link failure degrades to the proxy URL
// instead of failing the request. A driver with neither capability
// yields a NOT_IMPLEMENTED error.
func (g *Gateway) Link(ctx context.Context, path string, args data.LinkArgs) (*data.Link, error) {
	path = data.NormalizePath(path)

	drv, mount, subPath, err := g.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	if mount.ForceProxy {
		args.ForceProxy = true
	}

	if link, hit := g.urls.Get(mount.ID, path, args); hit {
		return link, nil
	}

	link, err := g.resolveLink(ctx, drv, subPath, args)
	if err != nil {
		return nil, err
	}

	ttl := link.ExpiresIn
	if ttl <= 0 {
		ttl = mount.CacheTTL
	}
	g.urls.Set(mount.ID, path, args, link, ttl)

	return link, nil
}

func (g *Gateway) resolveLink(ctx context.Context, drv driver.Driver, subPath string, args data.LinkArgs) (*data.Link, error) {
	if args.ForceProxy {
		if !driver.Has(drv, driver.CapProxy) {
			return nil, errors.DriverNotImplemented(drv.Type(), string(driver.CapProxy))
		}

		return drv.(driver.Proxier).ProxyLink(ctx, subPath, args)
	}

	if driver.Has(drv, driver.CapDirectLink) {
		link, err := drv.(driver.DirectLinker).DirectLink(ctx, subPath, args)
		if err == nil {
			return link, nil
		}

		if !driver.Has(drv, driver.CapProxy) {
			return nil, err
		}

		g.logger.Warn("Direct link for '%s' failed, serving proxy URL instead: %v", subPath, err)
	}

	if driver.Has(drv, driver.CapProxy) {
		return drv.(driver.Proxier).ProxyLink(ctx, subPath, args)
	}

	return nil, errors.DriverNotImplemented(drv.Type(), string(driver.CapDirectLink))
}
