// internal/diff/patch.go
package diff

// Patch applies script to base and returns the rebuilt buffer.
//
// The scan is a single left-to-right pass over base: at every offset the
// pending insertion payloads are spliced in first, then the base byte is kept
// unless it falls inside a deletion range. Insertions anchored at or past the
// end of base are appended after the scan, in order.
func Patch(base []byte, script Script) []byte {
	result := make([]byte, 0, patchSizeHint(base, script))

	dels := script.Deletions
	inss := script.Insertions

	for idx := 0; idx < len(base); idx++ {
		for len(inss) > 0 && inss[0].Start == idx {
			result = append(result, inss[0].Data...)
			inss = inss[1:]
		}

		for len(dels) > 0 && dels[0].End <= idx {
			dels = dels[1:]
		}
		if len(dels) > 0 && dels[0].Start <= idx {
			continue
		}

		result = append(result, base[idx])
	}

	for _, ins := range inss {
		result = append(result, ins.Data...)
	}

	return result
}

func patchSizeHint(base []byte, script Script) int {
	hint := len(base)
	for _, d := range script.Deletions {
		hint -= d.End - d.Start
	}
	for _, ins := range script.Insertions {
		hint += len(ins.Data)
	}
	if hint < 0 {
		hint = 0
	}
	return hint
}
