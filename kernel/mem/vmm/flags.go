package vmm

// PageTableEntryFlag describes a flag that can be applied to a page table
// entry.
type PageTableEntryFlag uintptr

const (
	// FlagPresent is set when the page is available in memory and not
	// swapped out.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this
	// page. If not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and
	// write-back caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage is set when using 2 MiB pages instead of 4 KiB pages.
	FlagHugePage

	// FlagGlobal, if set, prevents the TLB from flushing the cached
	// mapping for this page on a CR3 reload.
	FlagGlobal

	// FlagCopyOnWrite marks a read-only page whose first write should be
	// intercepted by the page-fault handler, copied, and remapped
	// writable. Mutually exclusive with FlagRW.
	FlagCopyOnWrite = 1 << 9

	// FlagNoExecute marks a page as containing non-executable data.
	FlagNoExecute = 1 << 63
)
