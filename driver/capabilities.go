package driver

import "slices"

// Capability names an independently checkable unit of driver functionality.
type Capability string

const (
	CapReader     Capability = "READER"
	CapWriter     Capability = "WRITER"
	CapMultipart  Capability = "MULTIPART"
	CapPagedList  Capability = "PAGED_LIST"
	CapDirectLink Capability = "DIRECT_LINK"
	CapProxy      Capability = "PROXY"
)

// Capabilities describes what a driver supports.
type Capabilities struct {
	Capabilities []Capability `json:"capabilities"`
}

// Contains checks if a capability is declared.
func (c Capabilities) Contains(cap Capability) bool {
	return slices.Contains(c.Capabilities, cap)
}

// Has reports whether the driver provides the capability. The check is
// structural: the driver must both declare the capability and satisfy
// the capability's interface. A driver declaring a capability whose
// interface it does not implement fails the check, as does a driver
// implementing an interface it never declared. Third-party drivers are
// plugged in by value, so neither signal alone is trustworthy.
func Has(drv Driver, cap Capability) bool {
	if drv == nil || !drv.Capabilities().Contains(cap) {
		return false
	}

	switch cap {
	case CapReader:
		_, ok := drv.(Reader)
		return ok
	case CapWriter:
		_, ok := drv.(Writer)
		return ok
	case CapMultipart:
		_, ok := drv.(Multiparter)
		return ok
	case CapPagedList:
		// Pagination additionally self-tests at runtime; a driver
		// may only support cursors for some bucket configurations.
		pl, ok := drv.(PagedLister)
		return ok && pl.SupportsPagination()
	case CapDirectLink:
		_, ok := drv.(DirectLinker)
		return ok
	case CapProxy:
		_, ok := drv.(Proxier)
		return ok
	default:
		return false
	}
}
