package vmm

import "pinekernel/kernel"

// Translate returns the physical address that corresponds to virtAddr, or
// ErrInvalidMapping if no mapping is installed for it. Only non-huge
// mappings are honoured, matching spec.md §4.C.
func Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	pte, err := pteForAddress(virtAddr)
	if err != nil {
		return 0, err
	}

	if pte.HasFlags(FlagHugePage) {
		return 0, errNoHugePageSupport
	}

	pageOffsetMask := uintptr(1)<<pageLevelShifts[pageLevels-1] - 1
	return pte.Frame().Address() + (virtAddr & pageOffsetMask), nil
}
