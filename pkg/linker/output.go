package linker

import "strings"

var prefixes = []string{
	".text.", ".data.rel.ro.", ".data.", ".rodata.", ".bss.rel.ro.", ".bss.",
	".init_array.", ".fini_array.", ".tbss.", ".tdata.", ".gcc_except_table.",
	".ctors.", ".dtors.",
}

// GetOutputName maps an input section's name to the output section it
// binds to (§4.5 binning key): known prefixes collapse to their stem,
// and mergeable .rodata variants route to one of two synthetic pools
// depending on whether they carry SHF_STRINGS.
func GetOutputName(name string, flags uint64) string {
	if (name == ".rodata" || strings.HasPrefix(name, ".rodata.")) && flags&ShfMerge != 0 {
		if flags&ShfStrings != 0 {
			return ".rodata.str"
		}
		return ".rodata.cst"
	}

	for _, prefix := range prefixes {
		stem := prefix[:len(prefix)-1]
		if name == stem || strings.HasPrefix(name, prefix) {
			return stem
		}
	}

	return name
}
