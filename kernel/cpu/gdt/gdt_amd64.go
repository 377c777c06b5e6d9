package gdt

// reloadSegments reloads CS with the given selector (via a far return,
// since amd64 long mode has no direct MOV-to-CS) and zeroes
// SS/DS/ES/FS/GS, matching the teacher's gdt.rs init(): CS set to the
// kernel code selector, every other segment register set to null.
func reloadSegments(codeSelector uint16)
