// Command lsmtctl is a small developer tool for inspecting LSMT layer
// files: header/trailer fields, the index, and ad-hoc byte ranges. It
// is not the SCSI/TCMU device frontend (out of scope for this module);
// it only talks to the on-disk layer format directly.
package main

import (
	"fmt"
	"os"

	"github.com/KarpelesLab/lsmtfs"
	"github.com/KarpelesLab/lsmtfs/lsmt"
)

const usage = `lsmtctl - LSMT layer inspection tool

Usage:
  lsmtctl info <layer_file>                 Show header/trailer fields
  lsmtctl index <layer_file>                Dump the sealed index
  lsmtctl read <layer_file> <offset> <len>   Read and hex-dump a byte range
  lsmtctl help                               Show this help message
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "info":
		err = requireArgs(2, func() error { return showInfo(os.Args[2]) })
	case "index":
		err = requireArgs(2, func() error { return showIndex(os.Args[2]) })
	case "read":
		err = requireArgs(4, func() error { return readRange(os.Args[2], os.Args[3], os.Args[4]) })
	case "help":
		fmt.Print(usage)
		return
	default:
		fmt.Printf("unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func requireArgs(n int, fn func() error) error {
	if len(os.Args) < n+1 {
		fmt.Print(usage)
		os.Exit(1)
	}
	return fn()
}

func openTrailer(path string) (*lsmt.HeaderTrailer, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	buf := make([]byte, lsmt.RecordSize)
	if _, err := f.ReadAt(buf, st.Size()-lsmt.RecordSize); err != nil {
		f.Close()
		return nil, nil, err
	}
	var ht lsmt.HeaderTrailer
	if err := ht.UnmarshalBinary(buf); err != nil {
		// Not sealed (or truncated): fall back to the header record.
		if _, herr := f.ReadAt(buf, 0); herr != nil {
			f.Close()
			return nil, nil, herr
		}
		if err := ht.UnmarshalBinary(buf); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return &ht, f, nil
}

func showInfo(path string) error {
	ht, f, err := openTrailer(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Printf("uuid:         %s\n", ht.UUID)
	fmt.Printf("parent_uuid:  %s\n", ht.ParentUUID)
	fmt.Printf("flags:        sealed=%v data_file=%v sparse_rw=%v\n",
		ht.Flags.Has(lsmt.FlagIsSealed), ht.Flags.Has(lsmt.FlagIsDataFile), ht.Flags.Has(lsmt.FlagIsSparseRW))
	fmt.Printf("virtual_size: %d\n", ht.VirtualSize)
	fmt.Printf("index_offset: %d\n", ht.IndexOffset)
	fmt.Printf("index_size:   %d entries\n", ht.IndexSize)
	return nil
}

func showIndex(path string) error {
	ht, f, err := openTrailer(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, ht.IndexSize*lsmtfs.SegmentMappingSize)
	if _, err := f.ReadAt(buf, int64(ht.IndexOffset)); err != nil {
		return err
	}

	for i := uint64(0); i < ht.IndexSize; i++ {
		var m lsmtfs.SegmentMapping
		if err := m.UnmarshalBinary(buf[i*lsmtfs.SegmentMappingSize:]); err != nil {
			return err
		}
		if m.IsInvalid() {
			continue
		}
		fmt.Printf("%6d: offset=%-10d length=%-6d moffset=%-10d zeroed=%-5v tag=%d\n",
			i, m.Offset, m.Length, m.Moffset, m.Zeroed, m.Tag)
	}
	return nil
}

func readRange(path, offsetArg, lenArg string) error {
	var offset, length uint64
	if _, err := fmt.Sscanf(offsetArg, "%d", &offset); err != nil {
		return err
	}
	if _, err := fmt.Sscanf(lenArg, "%d", &length); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && n == 0 {
		return err
	}
	hexDump(buf[:n], offset)
	return nil
}

func hexDump(buf []byte, base uint64) {
	for off := 0; off < len(buf); off += 16 {
		end := off + 16
		if end > len(buf) {
			end = len(buf)
		}
		row := buf[off:end]
		fmt.Printf("%08x  ", base+uint64(off))
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Printf("%02x ", row[i])
			} else {
				fmt.Print("   ")
			}
			if i == 7 {
				fmt.Print(" ")
			}
		}
		fmt.Print(" |")
		for _, b := range row {
			if b >= 0x20 && b < 0x7f {
				fmt.Printf("%c", b)
			} else {
				fmt.Print(".")
			}
		}
		fmt.Println("|")
	}
}
