package inspect

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Print writes a human readable rendition of rep to out.
func Print(out io.Writer, rep *Report) error {
	fmt.Fprintf(out, "Library:      %s (id %d)\n", emptyDash(rep.Library), rep.LibraryID)
	fmt.Fprintf(out, "Legacy CRC:   %s\n", emptyDash(rep.LegacyCRC))
	fmt.Fprintf(out, "SHA-256:      %s\n", rep.Sha256)
	fmt.Fprintf(out, "Transfer CRC: %s\n", rep.TransferCRC)
	fmt.Fprintf(out, "Map entries:  %d\n\n", rep.MapEntries)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SECTION\tOFFSET\tSIZE\tRECORDS\tVALID\tEMPTY\tINVALID")
	for _, s := range rep.Sections {
		fmt.Fprintf(w, "%s\t0x%05X\t%d\t%d\t%d\t%d\t%d\n", s.Name, s.Offset, s.Size, s.Records, s.Valid, s.Empty, s.Invalid)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "LAYER\tNODES\tCAPACITY")
	for _, l := range rep.Layers {
		fmt.Fprintf(w, "%s\t%d\t%d\n", l.Name, l.Count, l.Capacity)
	}
	if len(rep.Protocols) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "#\tPROTOCOL\tMODE\tDRUG\tSWITCHES\tRATE FACTOR")
		for _, p := range rep.Protocols {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%08X\t%d\n", p.Index, p.Name, p.Mode, emptyDash(p.Drug), p.Switches, p.RateFactor)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(out, "FAIL %s[%d] at 0x%05X: %s\n", f.Section, f.Index, f.Offset, f.Status)
	}
	if rep.OK {
		fmt.Fprintln(out, "\nAll records verified.")
	}
	return nil
}

func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
